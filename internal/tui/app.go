// Package tui implements the terminal browser over the photo service.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/service"
	"github.com/mmcdole/camroll/internal/tui/styles"
)

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeSearch
	modeDestination
)

// Model is the root browser model
type Model struct {
	svc    Browser
	viewer Viewer

	page     domain.Page
	pageSize int
	query    string // active roll-wide search
	cursor   int

	marked    map[string]bool
	markOrder []string

	mode        mode
	filter      textinput.Model
	prompt      textinput.Model
	paginator   paginator.Model
	spinner     spinner.Model
	help        help.Model
	defaultDest string

	loading   bool
	busy      string
	status    string
	statusErr bool
	info      service.Status

	width  int
	height int
}

// NewModel creates the browser. pageSize <= 0 uses the service default.
func NewModel(svc Browser, viewer Viewer, pageSize int, defaultDest string) Model {
	if pageSize <= 0 {
		pageSize = service.DefaultPageSize
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.PromptStyle = styles.FilterPromptStyle
	filter.TextStyle = styles.FilterStyle
	filter.Placeholder = "filter this page"

	prompt := textinput.New()
	prompt.PromptStyle = styles.FilterPromptStyle

	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = pageSize

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return Model{
		svc:         svc,
		viewer:      viewer,
		pageSize:    pageSize,
		marked:      make(map[string]bool),
		filter:      filter,
		prompt:      prompt,
		paginator:   p,
		spinner:     s,
		help:        help.New(),
		defaultDest: defaultDest,
		loading:     true,
		busy:        "Looking for devices...",
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadPageCmd(m.svc, "", 0, m.pageSize))
}

// visible returns the page items after the quick filter
func (m Model) visible() []domain.MediaEntry {
	return quickFilter(m.filter.Value(), m.page.Items)
}

// selected returns the entry under the cursor
func (m Model) selected() (domain.MediaEntry, bool) {
	items := m.visible()
	if m.cursor < 0 || m.cursor >= len(items) {
		return domain.MediaEntry{}, false
	}
	return items[m.cursor], true
}

// Marked returns marked identities in the order they were marked
func (m Model) Marked() []string {
	return append([]string(nil), m.markOrder...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PageLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Failed to load: %v", msg.Err), true)
			return m, nil
		}
		m.page = msg.Page
		m.query = msg.Query
		m.info = m.svc.Status()
		m.paginator.SetTotalPages(msg.Page.Total)
		m.paginator.Page = msg.Page.Offset / m.pageSize
		m.cursor = 0
		if len(msg.Page.Items) == 0 {
			return m, nil
		}
		return m, prefetchCmd(m.svc, msg.Page)

	case PrefetchDoneMsg:
		return m, nil

	case TransferDoneMsg:
		m.loading = false
		r := msg.Result
		if len(r.Failures) == 0 {
			m.setStatus(fmt.Sprintf("Copied %d of %d to %s", r.Transferred, r.Requested, r.Destination), false)
			m.clearMarks()
		} else {
			m.setStatus(fmt.Sprintf("Copied %d of %d to %s; %d failed (%s)",
				r.Transferred, r.Requested, r.Destination, len(r.Failures), r.Failures[0].Reason), true)
		}
		return m, nil

	case PairDoneMsg:
		if !msg.OK {
			m.loading = false
			m.setStatus("Pairing failed. Unlock the device and try again.", true)
			return m, nil
		}
		m.setStatus("Paired via "+msg.Backend, false)
		m.busy = "Reloading..."
		return m, reloadCmd(m.svc)

	case ReloadDoneMsg:
		if msg.Err != nil {
			m.loading = false
			m.setStatus(fmt.Sprintf("Reload failed: %v", msg.Err), true)
			return m, nil
		}
		m.info = msg.Status
		m.busy = "Loading..."
		return m, loadPageCmd(m.svc, m.query, 0, m.pageSize)

	case OpenedMsg:
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Could not open image: %v", msg.Err), true)
		} else {
			m.setStatus("Opened "+msg.Path, false)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeSearch, modeDestination:
			return m.updatePrompt(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) clearMarks() {
	m.marked = make(map[string]bool)
	m.markOrder = nil
}

func (m *Model) toggleMark(id string) {
	if m.marked[id] {
		delete(m.marked, id)
		for i, v := range m.markOrder {
			if v == id {
				m.markOrder = append(m.markOrder[:i], m.markOrder[i+1:]...)
				break
			}
		}
		return
	}
	m.marked[id] = true
	m.markOrder = append(m.markOrder, id)
}

func (m Model) startLoad(offset int) (tea.Model, tea.Cmd) {
	m.loading = true
	m.busy = "Loading..."
	return m, tea.Batch(m.spinner.Tick, loadPageCmd(m.svc, m.query, offset, m.pageSize))
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.loading {
		return m, nil
	}

	items := m.visible()
	switch {
	case key.Matches(msg, Keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, Keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}

	case key.Matches(msg, Keys.PageDown):
		if next := m.page.Offset + m.pageSize; next < m.page.Total {
			return m.startLoad(next)
		}

	case key.Matches(msg, Keys.PageUp):
		if m.page.Offset > 0 {
			return m.startLoad(max(0, m.page.Offset-m.pageSize))
		}

	case key.Matches(msg, Keys.Home):
		if m.page.Offset > 0 {
			return m.startLoad(0)
		}
		m.cursor = 0

	case key.Matches(msg, Keys.End):
		if m.page.Total > 0 {
			last := (m.page.Total - 1) / m.pageSize * m.pageSize
			if last != m.page.Offset {
				return m.startLoad(last)
			}
		}
		m.cursor = max(0, len(items)-1)

	case key.Matches(msg, Keys.Filter):
		m.mode = modeFilter
		return m, m.filter.Focus()

	case key.Matches(msg, Keys.Search):
		m.mode = modeSearch
		m.prompt.Prompt = "search: "
		m.prompt.Placeholder = "filename or folder/filename"
		m.prompt.SetValue(m.query)
		return m, m.prompt.Focus()

	case key.Matches(msg, Keys.Escape):
		if m.filter.Value() != "" {
			m.filter.Reset()
			m.cursor = 0
			return m, nil
		}
		if m.query != "" {
			m.query = ""
			return m.startLoad(0)
		}

	case key.Matches(msg, Keys.Refresh):
		m.loading = true
		m.busy = "Reloading..."
		return m, tea.Batch(m.spinner.Tick, reloadCmd(m.svc))

	case key.Matches(msg, Keys.Mark):
		if e, ok := m.selected(); ok {
			m.toggleMark(e.Identity)
			if m.cursor < len(items)-1 {
				m.cursor++
			}
		}

	case key.Matches(msg, Keys.Open):
		if e, ok := m.selected(); ok && m.viewer != nil {
			return m, openCmd(m.viewer, e.Identity)
		}

	case key.Matches(msg, Keys.Transfer):
		if len(m.markOrder) == 0 {
			if e, ok := m.selected(); ok {
				m.toggleMark(e.Identity)
			}
		}
		if len(m.markOrder) == 0 {
			return m, nil
		}
		m.mode = modeDestination
		m.prompt.Prompt = "copy to: "
		m.prompt.Placeholder = "destination directory"
		m.prompt.SetValue(m.defaultDest)
		return m, m.prompt.Focus()

	case key.Matches(msg, Keys.Pair):
		m.loading = true
		m.busy = "Pairing... confirm on the device"
		return m, tea.Batch(m.spinner.Tick, pairCmd(m.svc))
	}

	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Escape):
		m.filter.Reset()
		m.filter.Blur()
		m.mode = modeBrowse
		m.cursor = 0
		return m, nil
	case key.Matches(msg, Keys.Submit):
		m.filter.Blur()
		m.mode = modeBrowse
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Escape):
		m.prompt.Blur()
		m.mode = modeBrowse
		return m, nil

	case key.Matches(msg, Keys.Submit):
		value := strings.TrimSpace(m.prompt.Value())
		m.prompt.Blur()
		submitted := m.mode
		m.mode = modeBrowse

		if submitted == modeSearch {
			m.query = value
			m.filter.Reset()
			return m.startLoad(0)
		}
		if value == "" {
			m.setStatus("No destination given", true)
			return m, nil
		}
		m.loading = true
		m.busy = fmt.Sprintf("Copying %d items...", len(m.markOrder))
		return m, tea.Batch(m.spinner.Tick, transferCmd(m.svc, m.Marked(), value))
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}
