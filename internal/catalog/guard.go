package catalog

import (
	"context"
	"sync"

	"github.com/mmcdole/camroll/internal/domain"
	"golang.org/x/sync/singleflight"
)

const loadKey = "catalog"

// LoadFunc produces a catalog. It must not fail; total failure is an empty catalog.
type LoadFunc func(ctx context.Context) *domain.Catalog

// LoadGuard ensures at most one load runs at a time. Callers that arrive while
// a load is running share its result instead of starting another.
type LoadGuard struct {
	load   LoadFunc
	commit func(*domain.Catalog)
	base   context.Context

	mu    sync.Mutex
	state domain.LoadState
	group singleflight.Group
}

// NewLoadGuard creates a guard that runs load and hands results to commit.
// Loads run under base, detached from any caller's cancellation.
func NewLoadGuard(base context.Context, load LoadFunc, commit func(*domain.Catalog)) *LoadGuard {
	return &LoadGuard{
		load:   load,
		commit: commit,
		base:   context.WithoutCancel(base),
	}
}

// State returns the current load state
func (g *LoadGuard) State() domain.LoadState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ensure starts a load from Idle, or joins the running one. It returns nil
// when a catalog is already loaded.
func (g *LoadGuard) Ensure() <-chan singleflight.Result {
	return g.begin(false)
}

// Force starts a load unless one is already running, in which case it joins it
func (g *LoadGuard) Force() <-chan singleflight.Result {
	return g.begin(true)
}

func (g *LoadGuard) begin(force bool) <-chan singleflight.Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case domain.LoadLoading:
		return g.group.DoChan(loadKey, g.run)
	case domain.LoadLoaded:
		if !force {
			return nil
		}
	}

	g.state = domain.LoadLoading
	return g.group.DoChan(loadKey, g.run)
}

func (g *LoadGuard) run() (any, error) {
	cat := g.load(g.base)
	if cat == nil {
		cat = domain.EmptyCatalog(timeNow())
	}

	g.mu.Lock()
	g.commit(cat)
	g.state = domain.LoadLoaded
	// Callers arriving after this point start a fresh load instead of joining this one.
	g.group.Forget(loadKey)
	g.mu.Unlock()

	return cat, nil
}
