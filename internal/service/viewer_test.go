package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcdole/camroll/internal/adapter/backend/synthetic"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLauncher struct {
	opened []string
	err    error
}

func (r *recordingLauncher) Open(path string) error {
	r.opened = append(r.opened, path)
	return r.err
}

func TestViewerStagesAndOpens(t *testing.T) {
	photos := newService(t, synthetic.New(3, nil))
	l := &recordingLauncher{}
	v := NewViewerService(photos, l, t.TempDir(), nil)

	path, err := v.Open(context.Background(), identity.Synthetic(2))
	require.NoError(t, err)
	require.Equal(t, []string{path}, l.opened)
	assert.Equal(t, ".svg", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `width="1600"`)
}

func TestViewerRealImageKeepsExtension(t *testing.T) {
	phone := &lockedPhone{}
	phone.paired.Store(true)
	photos := newService(t, phone)
	l := &recordingLauncher{}
	v := NewViewerService(photos, l, t.TempDir(), nil)

	path, err := v.Open(context.Background(), identity.Encode("/DCIM/100APPLE/IMG_0001.HEIC"))
	require.NoError(t, err)
	assert.Equal(t, ".heic", filepath.Ext(path))
}

func TestViewerErrors(t *testing.T) {
	photos := newService(t, synthetic.New(3, nil))
	l := &recordingLauncher{err: errors.New("no viewer")}
	v := NewViewerService(photos, l, t.TempDir(), nil)

	_, err := v.Open(context.Background(), identity.Synthetic(1))
	assert.EqualError(t, err, "no viewer")

	_, err = v.Open(context.Background(), identity.Synthetic(99))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, l.opened, 1)
}
