package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/tui/styles"
)

const (
	nameWidth   = 18
	folderWidth = 10
	dateWidth   = 16
	chromeLines = 8 // header, input, footer, help and padding
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.mode {
	case modeFilter:
		b.WriteString(m.filter.View())
	case modeSearch, modeDestination:
		b.WriteString(m.prompt.View())
	default:
		if v := m.filter.Value(); v != "" {
			b.WriteString(styles.FilterStyle.Render("/ " + v))
		} else if m.query != "" {
			b.WriteString(styles.DimStyle.Render("search: " + m.query + "  (esc to clear)"))
		}
	}
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " " + styles.SubtitleStyle.Render(m.busy))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderRows())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	b.WriteString("\n")
	b.WriteString(m.help.View(Keys))

	return styles.BrowserStyle.Render(b.String())
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("camroll")

	source := m.info.Source
	if source == "" {
		source = domain.NoBackend
	}
	badge := styles.DimBadgeStyle.Render(source)
	if source != domain.NoBackend {
		badge = styles.BadgeStyle.Render(source)
	}

	count := styles.SubtitleStyle.Render(fmt.Sprintf("%d items", m.page.Total))
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", badge, "  ", count)

	if m.info.Hint != "" {
		header += "\n" + styles.WarningStyle.Render(m.info.Hint)
	}
	return header
}

func (m Model) renderRows() string {
	items := m.visible()
	if len(items) == 0 {
		if m.page.Total == 0 && m.query == "" {
			return styles.DimStyle.Render("No photos found. Connect a device and press r to reload.") + "\n"
		}
		return styles.DimStyle.Render("No matches.") + "\n"
	}

	// Keep the cursor inside a window that fits the terminal
	rows := len(items)
	if m.height > chromeLines {
		rows = min(rows, m.height-chromeLines)
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(len(items), start+rows)

	width := m.width - 4
	if width < 40 {
		width = 72
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(items[i], i == m.cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderRow(e domain.MediaEntry, selected bool, width int) string {
	marker := styles.UnmarkedChar
	var markerFg *lipgloss.Color
	if m.marked[e.Identity] {
		marker = styles.MarkedChar
		markerFg = &styles.Accent
	}

	kind := " "
	var kindFg *lipgloss.Color
	if e.IsVideo() {
		kind = styles.VideoChar
		kindFg = &styles.Amber
	}

	created := ""
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.Local().Format("2006-01-02 15:04")
	}

	parts := []styles.RowPart{
		{Text: marker + " ", Foreground: markerFg},
		{Text: kind + " ", Foreground: kindFg},
		{Text: styles.Pad(styles.Truncate(e.Filename, nameWidth), nameWidth) + " "},
		{Text: styles.Pad(styles.Truncate(e.Folder, folderWidth), folderWidth) + " "},
		{Text: styles.Pad(created, dateWidth) + " "},
		{Text: styles.HumanBytes(e.SizeBytes)},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (m Model) renderFooter() string {
	left := m.paginator.View()
	if n := len(m.markOrder); n > 0 {
		left += "  " + styles.AccentStyle.Render(fmt.Sprintf("%d marked", n))
	}
	if m.status == "" {
		return left
	}
	style := styles.SuccessStyle
	if m.statusErr {
		style = styles.ErrorStyle
	}
	return left + "  " + style.Render(m.status)
}
