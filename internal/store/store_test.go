package store

import (
	"fmt"
	"testing"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOnly(t *testing.T) {
	s, err := NewThumbStore("", "")
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get("usb", "id1")
	assert.False(t, ok)

	require.NoError(t, s.Put("usb", "id1", &domain.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}))
	img, ok := s.Get("usb", "id1")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, img.Data)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	_, ok = s.Get("platform", "id1")
	assert.False(t, ok, "entries are scoped by owner")
}

func TestPlaceholdersNotCached(t *testing.T) {
	s, err := NewThumbStore("", "")
	require.NoError(t, err)

	require.NoError(t, s.Put("usb", "id", &domain.Image{Data: []byte("svg"), Placeholder: true}))
	_, ok := s.Get("usb", "id")
	assert.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewThumbStore(dir, "00008110-ABC")
	require.NoError(t, err)
	require.NoError(t, s.Put("usb", "id", &domain.Image{Data: []byte("jpeg"), MIMEType: "image/jpeg"}))
	require.NoError(t, s.Close())

	s, err = NewThumbStore(dir, "00008110-abc")
	require.NoError(t, err)
	defer s.Close()

	img, ok := s.Get("usb", "id")
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg"), img.Data)

	s.InvalidateAll()
	_, ok = s.Get("usb", "id")
	assert.False(t, ok)
}

func TestMemoryBound(t *testing.T) {
	s, err := NewThumbStore("", "")
	require.NoError(t, err)
	s.maxEntries = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put("usb", fmt.Sprint(i), &domain.Image{Data: []byte{byte(i)}}))
	}
	assert.Equal(t, 3, s.Len())

	_, ok := s.Get("usb", "0")
	assert.False(t, ok)
	_, ok = s.Get("usb", "4")
	assert.True(t, ok)
}
