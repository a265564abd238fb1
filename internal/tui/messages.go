package tui

import (
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/service"
)

// Message types for the TUI

// PageLoadedMsg carries a catalog page, or a filtered page when Query is set
type PageLoadedMsg struct {
	Page  domain.Page
	Query string
	Err   error
}

// TransferDoneMsg signals that a transfer finished
type TransferDoneMsg struct {
	Result domain.TransferResult
}

// PairDoneMsg signals the outcome of a pairing attempt
type PairDoneMsg struct {
	Backend string
	OK      bool
}

// ReloadDoneMsg signals that the catalog was re-resolved
type ReloadDoneMsg struct {
	Status service.Status
	Err    error
}

// OpenedMsg signals that an image was handed to the viewer
type OpenedMsg struct {
	Path string
	Err  error
}

// PrefetchDoneMsg signals that thumbnails for the current page are cached
type PrefetchDoneMsg struct{}
