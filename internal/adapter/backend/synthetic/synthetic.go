// Package synthetic provides the always-available placeholder backend.
package synthetic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/mmcdole/camroll/internal/media"
)

// ID is the backend identifier
const ID = "synthetic"

// epoch anchors generated timestamps so every list is identical
var epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// Backend generates a fixed set of placeholder entries
type Backend struct {
	count  int
	logger *slog.Logger
}

// New creates a synthetic backend producing count entries
func New(count int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{count: count, logger: logger}
}

func (b *Backend) ID() string { return ID }

// Probe always succeeds
func (b *Backend) Probe(ctx context.Context) bool { return true }

// List returns count entries named IMG_0001.JPG upward
func (b *Backend) List(ctx context.Context) ([]domain.MediaEntry, error) {
	entries := make([]domain.MediaEntry, 0, b.count)
	for n := 1; n <= b.count; n++ {
		entries = append(entries, Entry(n))
	}
	b.logger.Debug("generated synthetic entries", "count", len(entries))
	return entries, nil
}

// Entry returns the n-th synthetic entry
func Entry(n int) domain.MediaEntry {
	created := epoch.Add(time.Duration(n) * 37 * time.Hour)
	return domain.MediaEntry{
		Identity:       identity.Synthetic(n),
		Filename:       fmt.Sprintf("IMG_%04d.JPG", n),
		Folder:         fmt.Sprintf("%dAPPLE", 100+(n-1)/1000),
		CreatedAt:      created,
		ModifiedAt:     created.Add(time.Duration(n%48) * time.Hour),
		SizeBytes:      2_000_000 + int64(n*7919%3_000_000),
		Width:          4032,
		Height:         3024,
		OwnerBackendID: ID,
	}
}

// Fetch renders the placeholder for a synthetic identity
func (b *Backend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	n, ok := identity.SyntheticIndex(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidIdentity, id)
	}
	return media.Placeholder(media.PaletteIndex(n, id), id, res), nil
}

// Pair is not supported
func (b *Backend) Pair(ctx context.Context) bool { return false }
