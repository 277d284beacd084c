package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*SetStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewSetStore(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestSetStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newStore(t)

	ok, err := store.Contains(ctx, "visitedUrls-example.com", "http://www.example.com/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "visitedUrls-example.com", "http://www.example.com/"))
	ok, err = store.Contains(ctx, "visitedUrls-example.com", "http://www.example.com/")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := mr.Members("visitedUrls-example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://www.example.com/"}, members)

	require.NoError(t, store.Add(ctx, "parsedProductIds-example.com", "42"))
	require.NoError(t, store.Delete(ctx, "visitedUrls-example.com", "parsedProductIds-example.com"))
	assert.False(t, mr.Exists("visitedUrls-example.com"))
	assert.False(t, mr.Exists("parsedProductIds-example.com"))
	require.NoError(t, store.Delete(ctx))
}

func TestSetStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newStore(t)
	mr.SetError("READONLY replica")

	require.Error(t, store.Add(ctx, "k", "v"))
	_, err := store.Contains(ctx, "k", "v")
	require.Error(t, err)
	require.Error(t, store.Delete(ctx, "k"))
}

func TestNewSetStoreFailures(t *testing.T) {
	t.Parallel()

	_, err := NewSetStore(context.Background(), Config{})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewSetStore(context.Background(), Config{Addr: addr})
	require.Error(t, err)
}

func TestNewSetStoreWithClient(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store := NewSetStoreWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	require.NoError(t, store.Add(context.Background(), "k", "v"))
	assert.True(t, mr.Exists("k"))
	require.NoError(t, store.Close())
}
