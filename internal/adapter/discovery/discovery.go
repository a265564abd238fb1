// Package discovery finds devices reachable over the network within a bounded window.
package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Probe is one discovery mechanism. It reports devices through emit as they
// are seen and returns when ctx is done or it has nothing more to find.
type Probe interface {
	Name() string
	Run(ctx context.Context, emit func(domain.DeviceDescriptor)) error
}

// Discoverer runs every probe concurrently under one deadline
type Discoverer struct {
	probes []Probe
	logger *slog.Logger
}

// New creates a Discoverer over probes
func New(logger *slog.Logger, probes ...Probe) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{probes: probes, logger: logger}
}

// collector dedups descriptors by ID and stops accepting once closed
type collector struct {
	mu     sync.Mutex
	closed bool
	seen   map[string]bool
	found  []domain.DeviceDescriptor
}

func (c *collector) add(d domain.DeviceDescriptor) {
	if d.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.seen[d.ID] {
		return
	}
	c.seen[d.ID] = true
	c.found = append(c.found, d)
}

func (c *collector) close() []domain.DeviceDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	out := make([]domain.DeviceDescriptor, len(c.found))
	copy(out, c.found)
	return out
}

// Discover returns every device seen before timeout elapses. Probes still
// running at the deadline are abandoned; whatever they reported is kept.
// Probe failures are logged, never returned.
func (d *Discoverer) Discover(ctx context.Context, timeout time.Duration) []domain.DeviceDescriptor {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := &collector{seen: make(map[string]bool)}
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range d.probes {
		g.Go(func() error {
			if err := p.Run(gctx, c.add); err != nil && gctx.Err() == nil {
				d.logger.Debug("discovery probe failed", "probe", p.Name(), "error", err)
			}
			// A failed probe must not cancel its siblings.
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	found := c.close()
	d.logger.Debug("discovery finished", "devices", len(found))
	return found
}
