package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(ctx, "capabilities::role:7", []byte("map"), time.Minute))
	require.True(t, srv.Exists("menuguard:capabilities:role:7"))

	value, ok, err := store.Get(ctx, "capabilities:role:7")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("map"), value)

	srv.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "capabilities:role:7")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "k"))
	require.False(t, srv.Exists("menuguard:k"))
}

func TestNewRedisStoreValidatesAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.Error(t, err)

	_, err = NewRedisStore(context.Background(), RedisConfig{Address: "127.0.0.1:1", Timeout: 100 * time.Millisecond})
	require.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, "a:b:c", normalizeKey("a::b:::c"))
	require.Equal(t, "menuguard:x", prefixed("menuguard:x"))
	require.Equal(t, "menuguard:x", prefixed("x"))
}
