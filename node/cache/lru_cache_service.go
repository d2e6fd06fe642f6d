package cache

import (
	"comlake-node/types"

	lru "github.com/hashicorp/golang-lru"
)

type LruCacheSvc struct {
	cache *lru.Cache
}

func NewLruCacheSvc(capacity int) (*LruCacheSvc, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, types.Wrap(types.ErrInvalidParameters, err)
	}
	return &LruCacheSvc{cache: c}, nil
}

func (svc *LruCacheSvc) Get(key string) ([]byte, bool) {
	v, ok := svc.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (svc *LruCacheSvc) Put(key string, value []byte) {
	svc.cache.Add(key, value)
}

func (svc *LruCacheSvc) Evict(key string) {
	svc.cache.Remove(key)
}

func (svc *LruCacheSvc) Len() int {
	return svc.cache.Len()
}

func (svc *LruCacheSvc) Close() error {
	svc.cache.Purge()
	return nil
}
