package synthetic

import (
	"context"
	"testing"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDeterministic(t *testing.T) {
	b := New(250, nil)
	ctx := context.Background()

	first, err := b.List(ctx)
	require.NoError(t, err)
	second, err := b.List(ctx)
	require.NoError(t, err)

	require.Len(t, first, 250)
	assert.Equal(t, first, second)

	assert.Equal(t, "demo:1", first[0].Identity)
	assert.Equal(t, "IMG_0001.JPG", first[0].Filename)
	assert.Equal(t, "IMG_0250.JPG", first[249].Filename)
	assert.Equal(t, ID, first[10].OwnerBackendID)
	assert.Equal(t, 4032, first[10].Width)
}

func TestListEmpty(t *testing.T) {
	entries, err := New(0, nil).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchPlaceholder(t *testing.T) {
	b := New(10, nil)
	ctx := context.Background()

	a, err := b.Fetch(ctx, "demo:4", domain.ResolutionThumbnail)
	require.NoError(t, err)
	c, err := b.Fetch(ctx, "demo:4", domain.ResolutionThumbnail)
	require.NoError(t, err)

	assert.Equal(t, a.Data, c.Data)
	assert.True(t, a.Placeholder)
}

func TestFetchRejectsRealIdentity(t *testing.T) {
	_, err := New(10, nil).Fetch(context.Background(), "L0RDSU0=", domain.ResolutionFull)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestProbeAndPair(t *testing.T) {
	b := New(1, nil)
	assert.True(t, b.Probe(context.Background()))
	assert.False(t, b.Pair(context.Background()))
}
