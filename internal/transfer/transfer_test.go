package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryMap map[string]domain.MediaEntry

func (m entryMap) Lookup(ctx context.Context, id string) (domain.MediaEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaEntry{}, false, err
	}
	e, ok := m[id]
	return e, ok, nil
}

type registry map[string]domain.Backend

func (r registry) Backend(id string) (domain.Backend, bool) {
	b, ok := r[id]
	return b, ok
}

// flakyBackend fails the first failures fetches of every item
type flakyBackend struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyBackend) ID() string                     { return "usb" }
func (f *flakyBackend) Probe(ctx context.Context) bool { return true }
func (f *flakyBackend) Pair(ctx context.Context) bool  { return false }

func (f *flakyBackend) List(ctx context.Context) ([]domain.MediaEntry, error) { return nil, nil }

func (f *flakyBackend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if n <= f.failures {
		return nil, errors.New("usb reset")
	}
	locator, _ := identity.Decode(id)
	return &domain.Image{Data: []byte(locator), MIMEType: "image/jpeg"}, nil
}

func deviceEntry(path string) domain.MediaEntry {
	return domain.MediaEntry{
		Identity:       identity.Encode(path),
		Filename:       filepath.Base(path),
		OwnerBackendID: "usb",
	}
}

func newCoordinator(entries entryMap, b domain.Backend) *Coordinator {
	c := New(entries, registry{"usb": b}, nil, WithRetries(2), WithMaxInterval(5*time.Millisecond))
	c.initialInterval = time.Millisecond
	return c
}

func catalogOf(entries ...domain.MediaEntry) entryMap {
	m := entryMap{}
	for _, e := range entries {
		m[e.Identity] = e
	}
	return m
}

func TestTransferAccounting(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	b := deviceEntry("/DCIM/100APPLE/IMG_0002.JPG")
	synth := domain.MediaEntry{Identity: identity.Synthetic(3), Filename: "IMG_0003.JPG", OwnerBackendID: "synthetic"}
	c := newCoordinator(catalogOf(a, b, synth), &flakyBackend{})

	dest := filepath.Join(t.TempDir(), "out")
	ids := []string{a.Identity, "bm90LWluLWNhdGFsb2c=", synth.Identity, b.Identity}
	res := c.Transfer(context.Background(), ids, dest)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, 2, res.Transferred)
	assert.Equal(t, res.Requested, res.Transferred+len(res.Failures))
	assert.Equal(t, []domain.TransferFailure{
		{Identity: "bm90LWluLWNhdGFsb2c=", Reason: ReasonUnknown},
		{Identity: synth.Identity, Reason: ReasonNoSource},
	}, res.Failures)

	data, err := os.ReadFile(filepath.Join(dest, "IMG_0001.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "/DCIM/100APPLE/IMG_0001.JPG", string(data))
	assert.FileExists(t, filepath.Join(dest, "IMG_0002.JPG"))
}

func TestTransferEmptyInput(t *testing.T) {
	c := newCoordinator(entryMap{}, &flakyBackend{})
	res := c.Transfer(context.Background(), nil, t.TempDir())
	assert.Zero(t, res.Requested)
	assert.Zero(t, res.Transferred)
	assert.Empty(t, res.Failures)
}

func TestTransferRetriesTransientFailures(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	backend := &flakyBackend{failures: 2}
	c := newCoordinator(catalogOf(a), backend)

	res := c.Transfer(context.Background(), []string{a.Identity}, t.TempDir())
	assert.Equal(t, 1, res.Transferred)
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestTransferGivesUpAfterRetries(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	backend := &flakyBackend{failures: 100}
	c := newCoordinator(catalogOf(a), backend)

	res := c.Transfer(context.Background(), []string{a.Identity}, t.TempDir())
	assert.Zero(t, res.Transferred)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason, "fetch failed")
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestTransferDoesNotRetryAccessDenied(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	backend := &flakyBackend{err: domain.ErrAccessDenied}
	c := newCoordinator(catalogOf(a), backend)

	res := c.Transfer(context.Background(), []string{a.Identity}, t.TempDir())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestTransferNameCollisions(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	b := deviceEntry("/DCIM/101APPLE/IMG_0001.JPG")
	c := newCoordinator(catalogOf(a, b), &flakyBackend{})

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "IMG_0001.JPG"), []byte("existing"), 0644))

	res := c.Transfer(context.Background(), []string{a.Identity, b.Identity}, dest)
	assert.Equal(t, 2, res.Transferred)

	existing, err := os.ReadFile(filepath.Join(dest, "IMG_0001.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))

	first, err := os.ReadFile(filepath.Join(dest, "IMG_0001_1.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "/DCIM/100APPLE/IMG_0001.JPG", string(first))

	second, err := os.ReadFile(filepath.Join(dest, "IMG_0001_2.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "/DCIM/101APPLE/IMG_0001.JPG", string(second))

	leftovers, err := filepath.Glob(filepath.Join(dest, ".camroll-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestTransferUnusableDestination(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	c := newCoordinator(catalogOf(a), &flakyBackend{})

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	res := c.Transfer(context.Background(), []string{a.Identity, "zzzz"}, filepath.Join(file, "sub"))
	assert.Zero(t, res.Transferred)
	require.Len(t, res.Failures, 2)
	assert.Contains(t, res.Failures[0].Reason, "cannot create destination")
}

func TestTransferCancelled(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	c := newCoordinator(catalogOf(a), &flakyBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Transfer(ctx, []string{a.Identity, a.Identity}, t.TempDir())
	assert.Zero(t, res.Transferred)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, ReasonCancelled, res.Failures[0].Reason)
}

func TestTransferMissingBackend(t *testing.T) {
	a := deviceEntry("/DCIM/100APPLE/IMG_0001.JPG")
	c := New(catalogOf(a), registry{}, nil)

	res := c.Transfer(context.Background(), []string{a.Identity}, t.TempDir())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonNoBackend, res.Failures[0].Reason)
}
