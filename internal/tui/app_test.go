package tui

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/camroll/internal/catalog"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/search"
	"github.com/mmcdole/camroll/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeZero = time.Unix(0, 0)

type fakeBrowser struct {
	cat        *domain.Catalog
	transfers  [][]string
	dest       string
	pairOK     bool
	reloads    int
	searchedBy string
}

func newFakeBrowser(n int) *fakeBrowser {
	entries := make([]domain.MediaEntry, n)
	for i := range entries {
		entries[i] = domain.MediaEntry{
			Identity: fmt.Sprintf("demo:%d", i+1),
			Filename: fmt.Sprintf("IMG_%04d.JPG", i+1),
			Folder:   "100APPLE",
		}
	}
	return &fakeBrowser{cat: domain.NewCatalog(entries, "synthetic", timeZero)}
}

func (f *fakeBrowser) GetPage(ctx context.Context, offset, limit int) (domain.Page, error) {
	return catalog.Paginate(f.cat, offset, limit), nil
}

func (f *fakeBrowser) Search(ctx context.Context, query string, offset, limit int, kinds ...search.Kind) (domain.Page, error) {
	f.searchedBy = query
	matched := search.Entries(search.Filter(query, f.cat.Entries(), kinds...))
	return catalog.Paginate(domain.NewCatalog(matched, "synthetic", timeZero), offset, limit), nil
}

func (f *fakeBrowser) Prefetch(ctx context.Context, page domain.Page) error { return nil }

func (f *fakeBrowser) Transfer(ctx context.Context, ids []string, dest string) domain.TransferResult {
	f.transfers = append(f.transfers, ids)
	f.dest = dest
	return domain.TransferResult{Requested: len(ids), Transferred: len(ids), Destination: dest}
}

func (f *fakeBrowser) Pair(ctx context.Context) (string, bool) { return "usb", f.pairOK }

func (f *fakeBrowser) ReloadAndWait(ctx context.Context) (service.Status, error) {
	f.reloads++
	return f.Status(), nil
}

func (f *fakeBrowser) Status() service.Status {
	return service.Status{State: domain.LoadLoaded, Source: "synthetic", Total: f.cat.Len()}
}

type fakeViewer struct{ opened []string }

func (v *fakeViewer) Open(ctx context.Context, id string) (string, error) {
	v.opened = append(v.opened, id)
	return "/tmp/" + id, nil
}

// drive applies msg and then runs any resulting commands until none remain,
// skipping spinner ticks and batched commands it cannot resolve
func drive(t *testing.T, m tea.Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 && len(queue) < 100 {
		var cmd tea.Cmd
		m, cmd = m.Update(queue[0])
		queue = queue[1:]
		queue = append(queue, run(cmd)...)
	}
	return m.(Model)
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case PageLoadedMsg, TransferDoneMsg, PairDoneMsg, ReloadDoneMsg, OpenedMsg:
		return []tea.Msg{msg}
	default:
		return nil
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func started(t *testing.T, f *fakeBrowser, v Viewer) Model {
	t.Helper()
	m := NewModel(f, v, 10, "/photos")
	// Blinking cursors would make focus commands block
	m.filter.Cursor.SetMode(cursor.CursorStatic)
	m.prompt.Cursor.SetMode(cursor.CursorStatic)
	msgs := run(loadPageCmd(f, "", 0, 10))
	require.Len(t, msgs, 1)
	return drive(t, m, msgs[0])
}

func TestInitialPage(t *testing.T) {
	m := started(t, newFakeBrowser(25), nil)
	assert.False(t, m.loading)
	assert.Equal(t, 25, m.page.Total)
	assert.Len(t, m.visible(), 10)
	assert.Equal(t, 3, m.paginator.TotalPages)
	assert.Contains(t, m.View(), "IMG_0001.JPG")
}

func TestPaging(t *testing.T) {
	f := newFakeBrowser(25)
	m := started(t, f, nil)

	m = drive(t, m, keyMsg("l"))
	assert.Equal(t, 10, m.page.Offset)
	assert.Equal(t, 1, m.paginator.Page)

	m = drive(t, m, keyMsg("G"))
	assert.Equal(t, 20, m.page.Offset)
	assert.Len(t, m.page.Items, 5)

	m = drive(t, m, keyMsg("l"))
	assert.Equal(t, 20, m.page.Offset, "no page past the end")

	m = drive(t, m, keyMsg("g"))
	assert.Equal(t, 0, m.page.Offset)
}

func TestQuickFilter(t *testing.T) {
	m := started(t, newFakeBrowser(25), nil)

	m = drive(t, m, keyMsg("/"))
	assert.Equal(t, modeFilter, m.mode)
	for _, r := range "07" {
		m = drive(t, m, keyMsg(string(r)))
	}
	m = drive(t, m, keyMsg("enter"))
	assert.Equal(t, modeBrowse, m.mode)

	items := m.visible()
	require.Len(t, items, 1)
	assert.Equal(t, "IMG_0007.JPG", items[0].Filename)

	m = drive(t, m, keyMsg("esc"))
	assert.Len(t, m.visible(), 10)
}

func TestRollSearch(t *testing.T) {
	f := newFakeBrowser(25)
	m := started(t, f, nil)

	m = drive(t, m, keyMsg("f"))
	for _, r := range "0021" {
		m = drive(t, m, keyMsg(string(r)))
	}
	m = drive(t, m, keyMsg("enter"))

	assert.Equal(t, "0021", f.searchedBy)
	assert.Equal(t, "0021", m.query)
	require.Equal(t, 1, m.page.Total)
	assert.Equal(t, "IMG_0021.JPG", m.page.Items[0].Filename)

	m = drive(t, m, keyMsg("esc"))
	assert.Empty(t, m.query)
	assert.Equal(t, 25, m.page.Total)
}

func TestMarkAndTransfer(t *testing.T) {
	f := newFakeBrowser(25)
	m := started(t, f, nil)

	m = drive(t, m, keyMsg(" "))
	m = drive(t, m, keyMsg(" "))
	assert.Equal(t, []string{"demo:1", "demo:2"}, m.Marked())
	assert.Equal(t, 2, m.cursor)

	m = drive(t, m, keyMsg("t"))
	assert.Equal(t, modeDestination, m.mode)
	assert.Equal(t, "/photos", m.prompt.Value())

	m = drive(t, m, keyMsg("enter"))
	require.Len(t, f.transfers, 1)
	assert.Equal(t, []string{"demo:1", "demo:2"}, f.transfers[0])
	assert.Equal(t, "/photos", f.dest)
	assert.Empty(t, m.Marked())
	assert.False(t, m.statusErr)
	assert.Contains(t, m.status, "Copied 2 of 2")
}

func TestTransferWithoutMarksUsesCursor(t *testing.T) {
	f := newFakeBrowser(3)
	m := started(t, f, nil)

	m = drive(t, m, keyMsg("j"))
	m = drive(t, m, keyMsg("t"))
	m = drive(t, m, keyMsg("enter"))
	require.Len(t, f.transfers, 1)
	assert.Equal(t, []string{"demo:2"}, f.transfers[0])
}

func TestPairReloads(t *testing.T) {
	f := newFakeBrowser(3)
	f.pairOK = true
	m := started(t, f, nil)

	m = drive(t, m, keyMsg("p"))
	assert.Equal(t, 1, f.reloads)
	assert.False(t, m.loading)

	f.pairOK = false
	m = drive(t, m, keyMsg("p"))
	assert.True(t, m.statusErr)
	assert.Equal(t, 1, f.reloads)
}

func TestOpen(t *testing.T) {
	v := &fakeViewer{}
	m := started(t, newFakeBrowser(3), v)

	m = drive(t, m, keyMsg("enter"))
	assert.Equal(t, []string{"demo:1"}, v.opened)
	assert.Contains(t, m.status, "/tmp/demo:1")
}
