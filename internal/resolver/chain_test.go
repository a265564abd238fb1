package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/camroll/internal/adapter/backend/synthetic"
	"github.com/mmcdole/camroll/internal/adapter/discovery"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	id       string
	probe    bool
	entries  []domain.MediaEntry
	listErr  error
	delay    time.Duration
	probes   atomic.Int32
	lists    atomic.Int32
	devices  []domain.DeviceDescriptor
	deviceOK bool
}

func (f *fakeBackend) ID() string { return f.id }

func (f *fakeBackend) Probe(ctx context.Context) bool {
	f.probes.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false
		}
	}
	return f.probe
}

func (f *fakeBackend) List(ctx context.Context) ([]domain.MediaEntry, error) {
	f.lists.Add(1)
	return f.entries, f.listErr
}

func (f *fakeBackend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	return nil, domain.ErrFetchFailed
}

func (f *fakeBackend) Pair(ctx context.Context) bool { return false }

type deviceAwareBackend struct {
	*fakeBackend
}

func (d deviceAwareBackend) UseDevices(devices []domain.DeviceDescriptor) {
	d.devices = devices
	d.deviceOK = true
}

func entries(owner string, n int) []domain.MediaEntry {
	out := make([]domain.MediaEntry, n)
	for i := range out {
		out[i] = domain.MediaEntry{Identity: owner + string(rune('a'+i)), Filename: "f", OwnerBackendID: owner}
	}
	return out
}

type staticDiscoverer struct {
	devices []domain.DeviceDescriptor
	calls   int
}

func (s *staticDiscoverer) Discover(ctx context.Context, timeout time.Duration) []domain.DeviceDescriptor {
	s.calls++
	return s.devices
}

func TestFirstNonEmptyBackendWins(t *testing.T) {
	a := &fakeBackend{id: "a", probe: false}
	b := &fakeBackend{id: "b", probe: true, entries: entries("b", 3)}
	c := &fakeBackend{id: "c", probe: true, entries: entries("c", 5)}

	cat := New([]domain.Backend{a, b, c}, nil).Resolve(context.Background())

	assert.Equal(t, "b", cat.SourceBackendID)
	assert.Equal(t, 3, cat.Len())
	assert.Zero(t, a.lists.Load())
	assert.Zero(t, c.probes.Load(), "lower priority backend is never invoked")
	assert.Zero(t, c.lists.Load())
}

func TestEmptyListFallsThrough(t *testing.T) {
	a := &fakeBackend{id: "a", probe: true}
	b := &fakeBackend{id: "b", probe: true, entries: entries("b", 2)}

	cat := New([]domain.Backend{a, b}, nil).Resolve(context.Background())
	assert.Equal(t, "b", cat.SourceBackendID)
}

func TestAccessDeniedContinuesWithHint(t *testing.T) {
	a := &fakeBackend{id: "a", probe: true, listErr: domain.ErrAccessDenied}
	b := &fakeBackend{id: "b", probe: true, entries: entries("b", 1)}

	cat := New([]domain.Backend{a, b}, nil).Resolve(context.Background())
	assert.Equal(t, "b", cat.SourceBackendID)
	assert.Equal(t, AccessHint, cat.Hint)
}

func TestTimeoutTreatedAsUnavailable(t *testing.T) {
	slow := &fakeBackend{id: "slow", probe: true, entries: entries("slow", 9), delay: time.Second}
	b := &fakeBackend{id: "b", probe: true, entries: entries("b", 1)}

	start := time.Now()
	cat := New([]domain.Backend{slow, b}, nil, WithBackendTimeout(20*time.Millisecond)).Resolve(context.Background())

	assert.Equal(t, "b", cat.SourceBackendID)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// stallOnceBackend hangs on its first probe only
type stallOnceBackend struct {
	fakeBackend
}

func (s *stallOnceBackend) Probe(ctx context.Context) bool {
	if s.probes.Add(1) == 1 {
		<-ctx.Done()
		return false
	}
	return true
}

func TestTimeoutIsNotPermanent(t *testing.T) {
	slow := &stallOnceBackend{fakeBackend{id: "slow", entries: entries("slow", 2)}}
	chain := New([]domain.Backend{slow}, nil, WithBackendTimeout(10*time.Millisecond))

	first := chain.Resolve(context.Background())
	assert.True(t, first.IsEmpty())

	second := chain.Resolve(context.Background())
	assert.Equal(t, "slow", second.SourceBackendID)
}

func TestAllUnavailableYieldsEmptyCatalog(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &fakeBackend{id: "a", probe: false}
	b := &fakeBackend{id: "b", probe: true, listErr: domain.ErrBackendUnavailable}

	cat := New([]domain.Backend{a, b}, nil, WithClock(func() time.Time { return now })).Resolve(context.Background())

	assert.True(t, cat.IsEmpty())
	assert.Equal(t, domain.NoBackend, cat.SourceBackendID)
	assert.Zero(t, cat.Len())
	assert.Equal(t, now, cat.GeneratedAt)
	assert.Empty(t, cat.Hint)
}

func TestDiscoveryFeedsDeviceAwareBackends(t *testing.T) {
	devices := []domain.DeviceDescriptor{{ID: "p", Transport: domain.TransportNetwork, Address: "h:1"}}
	d := &staticDiscoverer{devices: devices}
	inner := &fakeBackend{id: "net", probe: true, entries: entries("net", 1)}

	chain := New([]domain.Backend{deviceAwareBackend{inner}}, nil, WithDiscoverer(d, time.Second))
	cat := chain.Resolve(context.Background())

	assert.Equal(t, 1, d.calls)
	assert.True(t, inner.deviceOK)
	assert.Equal(t, devices, inner.devices)
	assert.Equal(t, "net", cat.SourceBackendID)
}

// silentProbe hears nothing until the discovery window closes
type silentProbe struct{}

func (silentProbe) Name() string { return "silent" }

func (silentProbe) Run(ctx context.Context, emit func(domain.DeviceDescriptor)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDiscoveryTimeoutFallsBackToSynthetic(t *testing.T) {
	// A discovery window that finds nothing, unavailable device backends, then
	// the synthetic set.
	disc := discovery.New(nil, silentProbe{})
	usb := &fakeBackend{id: "usb", probe: false}
	net := &fakeBackend{id: "network", probe: false}
	plat := &fakeBackend{id: "platform", probe: true, listErr: domain.ErrBackendUnavailable}

	chain := New([]domain.Backend{usb, net, plat, synthetic.New(250, nil)}, nil,
		WithDiscoverer(disc, 20*time.Millisecond))

	cat := chain.Resolve(context.Background())
	require.Equal(t, synthetic.ID, cat.SourceBackendID)
	assert.Equal(t, 250, cat.Len())
	page := cat.Slice(240, 50)
	assert.Len(t, page, 10)
}

func TestBackendLookup(t *testing.T) {
	a := &fakeBackend{id: "a"}
	chain := New([]domain.Backend{a}, nil)

	got, ok := chain.Backend("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID())

	_, ok = chain.Backend("zzz")
	assert.False(t, ok)
	assert.Len(t, chain.Backends(), 1)
}
