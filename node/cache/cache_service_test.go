package cache

import (
	"testing"

	"comlake-node/types"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/require"
)

func TestLruCache(t *testing.T) {
	svc, err := NewLruCacheSvc(2)
	require.NoError(t, err)
	defer svc.Close()

	svc.Put("aaa", []byte("1"))
	svc.Put("bbb", []byte("2"))

	v, ok := svc.Get("aaa")
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	svc.Put("ccc", []byte("3"))
	_, ok = svc.Get("bbb")
	require.False(t, ok)
	require.Equal(t, 2, svc.Len())

	svc.Evict("aaa")
	_, ok = svc.Get("aaa")
	require.False(t, ok)
	require.Equal(t, 1, svc.Len())
}

func TestRedisCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	svc, err := NewCacheSvc(Options{Type: "redis", RedisConn: server.Addr(), RedisPoolSize: 2})
	require.NoError(t, err)
	defer svc.Close()

	_, ok := svc.Get("bafkreiabc")
	require.False(t, ok)

	svc.Put("bafkreiabc", []byte("content"))
	v, ok := svc.Get("bafkreiabc")
	require.True(t, ok)
	require.Equal(t, []byte("content"), v)
	stored, err := server.Get(redisKeyPrefix + "bafkreiabc")
	require.NoError(t, err)
	require.Equal(t, "content", stored)

	svc.Evict("bafkreiabc")
	_, ok = svc.Get("bafkreiabc")
	require.False(t, ok)
}

func TestNewCacheSvc(t *testing.T) {
	svc, err := NewCacheSvc(Options{})
	require.NoError(t, err)
	require.IsType(t, &LruCacheSvc{}, svc)

	_, err = NewCacheSvc(Options{Type: "memcached"})
	require.ErrorIs(t, err, types.ErrInvalidParameters)

	_, err = NewCacheSvc(Options{Type: "redis"})
	require.ErrorIs(t, err, types.ErrInvalidParameters)
}
