package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/search"
	"github.com/mmcdole/camroll/internal/service"
)

const (
	loadTimeout     = 2 * time.Minute
	transferTimeout = 30 * time.Minute
)

// Browser is the subset of the photo service the TUI drives
type Browser interface {
	GetPage(ctx context.Context, offset, limit int) (domain.Page, error)
	Search(ctx context.Context, query string, offset, limit int, kinds ...search.Kind) (domain.Page, error)
	Prefetch(ctx context.Context, page domain.Page) error
	Transfer(ctx context.Context, identities []string, destination string) domain.TransferResult
	Pair(ctx context.Context) (string, bool)
	ReloadAndWait(ctx context.Context) (service.Status, error)
	Status() service.Status
}

// Viewer opens a full-size image externally
type Viewer interface {
	Open(ctx context.Context, identity string) (string, error)
}

func loadPageCmd(svc Browser, query string, offset, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var page domain.Page
		var err error
		if query != "" {
			page, err = svc.Search(ctx, query, offset, limit)
		} else {
			page, err = svc.GetPage(ctx, offset, limit)
		}
		return PageLoadedMsg{Page: page, Query: query, Err: err}
	}
}

func prefetchCmd(svc Browser, page domain.Page) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		svc.Prefetch(ctx, page)
		return PrefetchDoneMsg{}
	}
}

func transferCmd(svc Browser, ids []string, dest string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
		defer cancel()
		return TransferDoneMsg{Result: svc.Transfer(ctx, ids, dest)}
	}
}

func pairCmd(svc Browser) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		backend, ok := svc.Pair(ctx)
		return PairDoneMsg{Backend: backend, OK: ok}
	}
}

func reloadCmd(svc Browser) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		st, err := svc.ReloadAndWait(ctx)
		return ReloadDoneMsg{Status: st, Err: err}
	}
}

func openCmd(viewer Viewer, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		path, err := viewer.Open(ctx, id)
		return OpenedMsg{Path: path, Err: err}
	}
}
