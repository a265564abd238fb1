// Package thumbnail serves thumbnail and full-size images for catalog entries,
// falling back to a generated placeholder whenever the real image is unavailable.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/mmcdole/camroll/internal/media"
	"github.com/mmcdole/camroll/internal/store"
	"golang.org/x/sync/errgroup"
)

// EntryLookup finds catalog entries
type EntryLookup interface {
	Lookup(ctx context.Context, identity string) (domain.MediaEntry, bool, error)
}

// BackendRegistry finds backends by ID
type BackendRegistry interface {
	Backend(id string) (domain.Backend, bool)
}

// Provider fetches images through the backend that owns them
type Provider struct {
	entries     EntryLookup
	backends    BackendRegistry
	cache       *store.ThumbStore
	concurrency int
	logger      *slog.Logger
}

// New creates a Provider. cache may be nil.
func New(entries EntryLookup, backends BackendRegistry, cache *store.ThumbStore, concurrency int, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Provider{
		entries:     entries,
		backends:    backends,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Get returns the image for identity at res. The only error is
// domain.ErrInvalidIdentity; every other failure yields a placeholder.
func (p *Provider) Get(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	if n, ok := identity.SyntheticIndex(id); ok {
		return media.Placeholder(media.PaletteIndex(n, id), id, res), nil
	}
	if _, err := identity.Decode(id); err != nil {
		return nil, err
	}

	entry, ok, err := p.entries.Lookup(ctx, id)
	if err != nil || !ok {
		p.logger.Debug("no catalog entry for image", "identity", id, "error", err)
		return fallback(id, id, res), nil
	}

	if res == domain.ResolutionThumbnail && p.cache != nil {
		if img, hit := p.cache.Get(entry.OwnerBackendID, id); hit {
			return img, nil
		}
	}

	img, err := p.fetch(ctx, entry, res)
	if err != nil {
		p.logger.Warn("image fetch failed, using placeholder",
			"identity", id, "backend", entry.OwnerBackendID, "resolution", res.String(), "error", err)
		return fallback(id, entry.Filename, res), nil
	}

	if res == domain.ResolutionThumbnail && p.cache != nil {
		if err := p.cache.Put(entry.OwnerBackendID, id, img); err != nil {
			p.logger.Warn("failed to cache thumbnail", "identity", id, "error", err)
		}
	}
	return img, nil
}

func (p *Provider) fetch(ctx context.Context, entry domain.MediaEntry, res domain.Resolution) (*domain.Image, error) {
	b, ok := p.backends.Backend(entry.OwnerBackendID)
	if !ok {
		return nil, fmt.Errorf("%w: backend %q not configured", domain.ErrBackendUnavailable, entry.OwnerBackendID)
	}
	img, err := b.Fetch(ctx, entry.Identity, res)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrFetchFailed)
	}
	return img, nil
}

func fallback(id, label string, res domain.Resolution) *domain.Image {
	return media.Placeholder(media.PaletteIndex(0, id), label, res)
}

// Prefetch warms the thumbnail cache for ids, a few at a time.
// Invalid identities are skipped.
func (p *Provider) Prefetch(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, id := range ids {
		if identity.IsSynthetic(id) {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Get(ctx, id, domain.ResolutionThumbnail)
			return nil
		})
	}
	return g.Wait()
}
