// Package resolver tries device backends in priority order and builds a catalog
// from the first one that produces media.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
)

// AccessHint is shown when a device is present but locked or untrusted
const AccessHint = "Unlock your device and tap \"Trust\" when asked, then reload."

// Discoverer finds network devices within a bounded window
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) []domain.DeviceDescriptor
}

// Chain is an ordered list of backends sharing one discovery pass
type Chain struct {
	backends         []domain.Backend
	discoverer       Discoverer
	discoveryTimeout time.Duration
	backendTimeout   time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// Option configures a Chain
type Option func(*Chain)

// WithDiscoverer sets the discovery step run before backends are probed
func WithDiscoverer(d Discoverer, timeout time.Duration) Option {
	return func(c *Chain) {
		c.discoverer = d
		c.discoveryTimeout = timeout
	}
}

// WithBackendTimeout bounds probe plus list for each backend
func WithBackendTimeout(d time.Duration) Option {
	return func(c *Chain) { c.backendTimeout = d }
}

// WithClock overrides time.Now for catalog timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// New creates a Chain over backends in priority order
func New(backends []domain.Backend, logger *slog.Logger, opts ...Option) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{
		backends:         backends,
		discoveryTimeout: 3 * time.Second,
		backendTimeout:   10 * time.Second,
		now:              time.Now,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backends returns the backends in priority order
func (c *Chain) Backends() []domain.Backend {
	return append([]domain.Backend(nil), c.backends...)
}

// Backend returns the backend with id
func (c *Chain) Backend(id string) (domain.Backend, bool) {
	for _, b := range c.backends {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

// Discover runs the discovery step alone and hands results to device-aware backends
func (c *Chain) Discover(ctx context.Context) []domain.DeviceDescriptor {
	if c.discoverer == nil {
		return nil
	}
	devices := c.discoverer.Discover(ctx, c.discoveryTimeout)
	for _, b := range c.backends {
		if da, ok := b.(domain.DeviceAware); ok {
			da.UseDevices(devices)
		}
	}
	return devices
}

// Resolve runs one resolution pass. It never fails: when every backend is
// unavailable the result is an empty catalog with SourceBackendID "none".
func (c *Chain) Resolve(ctx context.Context) *domain.Catalog {
	devices := c.Discover(ctx)
	c.logger.Info("resolving media", "devices", len(devices), "backends", len(c.backends))

	var hint string
	for _, b := range c.backends {
		if ctx.Err() != nil {
			break
		}

		entries, err := c.attempt(ctx, b)
		switch {
		case err == nil && len(entries) > 0:
			c.logger.Info("backend resolved", "backend", b.ID(), "entries", len(entries))
			cat := domain.NewCatalog(entries, b.ID(), c.now())
			cat.Hint = hint
			return cat
		case err == nil:
			c.logger.Info("backend returned no media", "backend", b.ID())
		case errors.Is(err, domain.ErrAccessDenied):
			c.logger.Warn("device access denied", "backend", b.ID(), "error", err)
			if hint == "" {
				hint = AccessHint
			}
		default:
			c.logger.Info("backend unavailable", "backend", b.ID(), "error", err)
		}
	}

	c.logger.Warn("no backend produced media")
	cat := domain.EmptyCatalog(c.now())
	cat.Hint = hint
	return cat
}

type attemptResult struct {
	entries []domain.MediaEntry
	err     error
}

// attempt runs probe then list under the backend timeout. A backend that
// overruns is treated as unavailable; its late result is dropped.
func (c *Chain) attempt(ctx context.Context, b domain.Backend) ([]domain.MediaEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()

	ch := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- attemptResult{err: fmt.Errorf("%w: panic: %v", domain.ErrBackendUnavailable, r)}
			}
		}()
		if !b.Probe(ctx) {
			ch <- attemptResult{err: domain.ErrBackendUnavailable}
			return
		}
		entries, err := b.List(ctx)
		ch <- attemptResult{entries: entries, err: err}
	}()

	select {
	case r := <-ch:
		return r.entries, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", b.ID(), domain.ErrTimeout)
	}
}
