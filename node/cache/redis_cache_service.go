package cache

import (
	"runtime"

	"comlake-node/types"

	"github.com/go-redis/redis"
)

const redisKeyPrefix = "comlake_content_"

type RedisCacheSvc struct {
	client *redis.Client
}

func NewRedisCacheSvc(conn string, password string, poolSize int) (*RedisCacheSvc, error) {
	if conn == "" {
		return nil, types.Wrapf(types.ErrInvalidParameters, "redis cache needs a connection")
	}
	if poolSize < 1 {
		poolSize = 4 * runtime.NumCPU()
	}
	log.Infof("init redis client: %v", conn)

	client := redis.NewClient(&redis.Options{
		Addr:     conn,
		Password: password,
		PoolSize: poolSize,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, types.Wrapf(types.ErrInvalidParameters, "redis %s: %v", conn, err)
	}
	return &RedisCacheSvc{client: client}, nil
}

func (svc *RedisCacheSvc) Get(key string) ([]byte, bool) {
	value, err := svc.client.Get(redisKeyPrefix + key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warnf("redis get %s: %v", key, err)
		return nil, false
	}
	return value, true
}

func (svc *RedisCacheSvc) Put(key string, value []byte) {
	if err := svc.client.Set(redisKeyPrefix+key, value, 0).Err(); err != nil {
		log.Error(err.Error())
	}
}

func (svc *RedisCacheSvc) Evict(key string) {
	if err := svc.client.Del(redisKeyPrefix + key).Err(); err != nil {
		log.Error(err.Error())
	}
}

func (svc *RedisCacheSvc) Close() error {
	return svc.client.Close()
}
