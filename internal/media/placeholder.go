package media

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"hash/fnv"

	"github.com/mmcdole/camroll/internal/domain"
)

const placeholderMIME = "image/svg+xml"

var placeholderPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#E17055", "#74B9FF",
}

// PaletteIndex picks a palette slot for an item. Synthetic items use their
// number; other identities hash so the colour is still stable.
func PaletteIndex(n int, identity string) int {
	if n > 0 {
		return n % len(placeholderPalette)
	}
	h := fnv.New32a()
	h.Write([]byte(identity))
	return int(h.Sum32() % uint32(len(placeholderPalette)))
}

// Placeholder renders a gradient tile labelled with label.
// Output depends only on its arguments.
func Placeholder(paletteIndex int, label string, res domain.Resolution) *domain.Image {
	w, h := 400, 300
	if res == domain.ResolutionFull {
		w, h = 1600, 1200
	}
	color := placeholderPalette[paletteIndex%len(placeholderPalette)]

	var text bytes.Buffer
	xml.EscapeText(&text, []byte(label))

	svg := fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`+
		`<defs><linearGradient id="g%d" x1="0%%" y1="0%%" x2="100%%" y2="100%%">`+
		`<stop offset="0%%" style="stop-color:%s;stop-opacity:1"/>`+
		`<stop offset="100%%" style="stop-color:%s;stop-opacity:1"/>`+
		`</linearGradient></defs>`+
		`<rect width="%d" height="%d" fill="url(#g%d)"/>`+
		`<circle cx="%d" cy="%d" r="%d" fill="rgba(255,255,255,0.2)"/>`+
		`<text x="%d" y="%d" font-size="%d" fill="white" text-anchor="middle" font-family="Arial">%s</text>`+
		`</svg>`,
		w, h, paletteIndex,
		color, adjustColor(color, -30),
		w, h, paletteIndex,
		w/2, h/2, h/6,
		w/2, h/2+h/30, h/21, text.String(),
	)

	return &domain.Image{Data: []byte(svg), MIMEType: placeholderMIME, Placeholder: true}
}

// adjustColor shifts each channel of a #RRGGBB colour by amount, clamped to 0..255
func adjustColor(hex string, amount int) string {
	var r, g, b int
	fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	return fmt.Sprintf("#%02x%02x%02x", clamp(r+amount), clamp(g+amount), clamp(b+amount))
}

func clamp(v int) int {
	return max(0, min(255, v))
}
