package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingResolver returns a catalog of size n, optionally waiting on gate
type countingResolver struct {
	calls atomic.Int32
	size  atomic.Int32
	gate  chan struct{}
}

func newResolver(n int) *countingResolver {
	r := &countingResolver{}
	r.size.Store(int32(n))
	return r
}

func (r *countingResolver) Resolve(ctx context.Context) *domain.Catalog {
	call := r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	n := int(r.size.Load())
	entries := make([]domain.MediaEntry, n)
	for i := range entries {
		entries[i] = domain.MediaEntry{
			Identity: fmt.Sprintf("id-%d-%d", call, i),
			Filename: fmt.Sprintf("IMG_%04d.JPG", i+1),
		}
	}
	return domain.NewCatalog(entries, "fake", time.Now())
}

func TestGetPage(t *testing.T) {
	c := New(newResolver(250), nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		offset    int
		limit     int
		wantLen   int
		wantFirst string
	}{
		{"first page", 0, 50, 50, "IMG_0001.JPG"},
		{"tail clipped", 240, 50, 10, "IMG_0241.JPG"},
		{"exact end", 200, 50, 50, "IMG_0201.JPG"},
		{"offset at total", 250, 50, 0, ""},
		{"offset past total", 1000, 50, 0, ""},
		{"zero limit", 0, 0, 0, ""},
		{"negative limit", 10, -5, 0, ""},
		{"negative offset", -3, 2, 2, "IMG_0001.JPG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := c.GetPage(ctx, tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, 250, page.Total)
			require.Len(t, page.Items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, page.Items[0].Filename)
			}
		})
	}
}

func TestGetPageReturnsCopies(t *testing.T) {
	c := New(newResolver(5), nil)
	ctx := context.Background()

	page, err := c.GetPage(ctx, 0, 5)
	require.NoError(t, err)
	page.Items[0].Filename = "mutated"

	again, err := c.GetPage(ctx, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "IMG_0001.JPG", again.Items[0].Filename)
}

func TestConcurrentFirstCallsResolveOnce(t *testing.T) {
	r := newResolver(250)
	r.gate = make(chan struct{})
	c := New(r, nil)

	const callers = 64
	var wg sync.WaitGroup
	pages := make([]domain.Page, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.GetPage(context.Background(), i, 1)
			assert.NoError(t, err)
			pages[i] = p
		}(i)
	}

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, domain.LoadLoading, c.State())
	close(r.gate)
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, domain.LoadLoaded, c.State())
	for i, p := range pages {
		assert.Equal(t, 250, p.Total)
		require.Len(t, p.Items, 1)
		assert.Equal(t, fmt.Sprintf("id-1-%d", i), p.Items[0].Identity)
	}
}

func TestReloadWhileLoadingIsNoop(t *testing.T) {
	r := newResolver(3)
	r.gate = make(chan struct{})
	c := New(r, nil)

	c.Reload()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	c.Reload()
	c.Reload()
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, domain.LoadLoading, c.State())

	close(r.gate)
	cat, err := c.ReloadAndWait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cat)

	// The wait above either joined the first load or started a second one
	// after it committed; never more.
	assert.LessOrEqual(t, r.calls.Load(), int32(2))
}

func TestReloadKeepsOldCatalogVisible(t *testing.T) {
	r := newResolver(10)
	c := New(r, nil)
	ctx := context.Background()

	page, err := c.GetPage(ctx, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 10, page.Total)

	r.gate = make(chan struct{})
	r.size.Store(20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.ReloadAndWait(ctx)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return c.State() == domain.LoadLoading }, time.Second, time.Millisecond)

	during, err := c.GetPage(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, during.Total, "old catalog stays visible during reload")

	close(r.gate)
	<-done

	after, err := c.GetPage(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, after.Total)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestCallerCancellationDoesNotAbortLoad(t *testing.T) {
	r := newResolver(4)
	r.gate = make(chan struct{})
	c := New(r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetPage(ctx, 0, 10)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(r.gate)
	page, err := c.GetPage(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStateTransitions(t *testing.T) {
	c := New(newResolver(1), nil)
	assert.Equal(t, domain.LoadIdle, c.State())
	assert.Nil(t, c.Snapshot())

	_, err := c.GetPage(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LoadLoaded, c.State())
	assert.NotNil(t, c.Snapshot())
}

func TestLookup(t *testing.T) {
	c := New(newResolver(3), nil)

	e, ok, err := c.Lookup(context.Background(), "id-1-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "IMG_0003.JPG", e.Filename)

	_, ok, err = c.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

type nilResolver struct{}

func (nilResolver) Resolve(ctx context.Context) *domain.Catalog { return nil }

func TestNilResolutionBecomesEmptyCatalog(t *testing.T) {
	c := New(nilResolver{}, nil)
	page, err := c.GetPage(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
	assert.True(t, c.Snapshot().IsEmpty())
}
