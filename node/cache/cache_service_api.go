package cache

import (
	"strings"

	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("cache")

// CacheSvcApi caches content bytes by CID. Content is immutable under its
// CID, so entries never need invalidation, only eviction.
type CacheSvcApi interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
	Evict(key string)
	Close() error
}

const (
	TypeLru   = "lru"
	TypeRedis = "redis"
)

type Options struct {
	Type          string
	Capacity      int
	RedisConn     string
	RedisPassword string
	RedisPoolSize int
}

func NewCacheSvc(opts Options) (CacheSvcApi, error) {
	switch strings.ToLower(opts.Type) {
	case "", TypeLru:
		return NewLruCacheSvc(opts.Capacity)
	case TypeRedis:
		return NewRedisCacheSvc(opts.RedisConn, opts.RedisPassword, opts.RedisPoolSize)
	default:
		return nil, types.Wrapf(types.ErrInvalidParameters, "unsupported cache type %q", opts.Type)
	}
}
