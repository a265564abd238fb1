// Package catalog holds the current media catalog and serves pages from it,
// loading it on first use.
package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"golang.org/x/sync/singleflight"
)

var timeNow = time.Now

// Resolver produces a fresh catalog
type Resolver interface {
	Resolve(ctx context.Context) *domain.Catalog
}

// Catalog serves pages from the latest committed snapshot.
// Readers never see a partially built catalog.
type Catalog struct {
	current atomic.Pointer[domain.Catalog]
	guard   *LoadGuard
	logger  *slog.Logger
}

// New creates an unloaded Catalog backed by resolver
func New(resolver Resolver, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{logger: logger}
	c.guard = NewLoadGuard(context.Background(), resolver.Resolve, c.store)
	return c
}

func (c *Catalog) store(cat *domain.Catalog) {
	c.current.Store(cat)
	c.logger.Info("catalog committed", "source", cat.SourceBackendID, "entries", cat.Len())
}

// State returns the load state
func (c *Catalog) State() domain.LoadState {
	return c.guard.State()
}

// Snapshot returns the committed catalog without loading, or nil
func (c *Catalog) Snapshot() *domain.Catalog {
	return c.current.Load()
}

// Current returns the committed catalog, loading it first if nothing has been
// committed yet. A reload in progress does not block readers of an existing catalog.
func (c *Catalog) Current(ctx context.Context) (*domain.Catalog, error) {
	if cat := c.current.Load(); cat != nil {
		return cat, nil
	}
	return await(ctx, c.guard.Ensure(), c)
}

func await(ctx context.Context, ch <-chan singleflight.Result, c *Catalog) (*domain.Catalog, error) {
	if ch == nil {
		return c.current.Load(), nil
	}
	select {
	case r := <-ch:
		return r.Val.(*domain.Catalog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetPage returns up to limit entries starting at offset. Out-of-range
// offsets and non-positive limits give an empty page; Total is always the
// catalog size.
func (c *Catalog) GetPage(ctx context.Context, offset, limit int) (domain.Page, error) {
	cat, err := c.Current(ctx)
	if err != nil {
		return domain.Page{}, err
	}
	return Paginate(cat, offset, limit), nil
}

// Paginate slices cat into a page
func Paginate(cat *domain.Catalog, offset, limit int) domain.Page {
	if offset < 0 {
		offset = 0
	}
	return domain.Page{
		Items:  cat.Slice(offset, limit),
		Offset: offset,
		Total:  cat.Len(),
	}
}

// Lookup finds an entry in the current catalog
func (c *Catalog) Lookup(ctx context.Context, identity string) (domain.MediaEntry, bool, error) {
	cat, err := c.Current(ctx)
	if err != nil {
		return domain.MediaEntry{}, false, err
	}
	e, ok := cat.Lookup(identity)
	return e, ok, nil
}

// Reload starts a fresh resolution and returns immediately.
// It does nothing while a load is already running.
func (c *Catalog) Reload() {
	c.guard.Force()
}

// ReloadAndWait starts (or joins) a resolution and waits for its catalog
func (c *Catalog) ReloadAndWait(ctx context.Context) (*domain.Catalog, error) {
	return await(ctx, c.guard.Force(), c)
}
