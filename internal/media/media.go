// Package media holds file-type rules and image downscaling shared by backends.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultThumbnailSize is the longest thumbnail side when none is configured
const DefaultThumbnailSize = 400

// Extensions collected from DCIM folders
var mediaExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".heic": "image/heic",
	".heif": "image/heif",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
}

// IsMediaFile reports whether name has a collected photo or video extension
func IsMediaFile(name string) bool {
	_, ok := mediaExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MIMEType returns the MIME type for name, or application/octet-stream
func MIMEType(name string) string {
	if mt, ok := mediaExts[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Thumbnail decodes data, fits it within maxSide x maxSide and encodes a JPEG.
// HEIC and video payloads fail to decode; callers fall back to a placeholder.
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		maxSide = DefaultThumbnailSize
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions reads width and height from an image header without decoding pixels
func Dimensions(data []byte) (int, int, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// FileDimensions reads width and height from the header of a JPEG or PNG file.
// Other formats report false without opening the file.
func FileDimensions(path string) (int, int, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return 0, 0, false
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
