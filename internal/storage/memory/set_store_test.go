package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSetStore()

	ok, err := s.Contains(ctx, "visited", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "visited", "a"))
	require.NoError(t, s.Add(ctx, "visited", "a"))
	require.NoError(t, s.Add(ctx, "products", "1"))
	assert.Equal(t, 1, s.Size("visited"))

	ok, err = s.Contains(ctx, "visited", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "visited", "products", "never-created"))
	assert.Zero(t, s.Size("visited"))
	assert.Zero(t, s.Size("products"))

	require.NoError(t, s.Close())
	require.Error(t, s.Add(ctx, "visited", "a"))
	_, err = s.Contains(ctx, "visited", "a")
	require.Error(t, err)
}
