package config

import "time"

type Node struct {
	Catalog Catalog
	Storage Storage
	Gateway Gateway
	Cache   Cache
}

// Catalog contains configs for the metadata database
type Catalog struct {
	// database/sql driver, postgres or sqlite3
	Driver string

	// connection string; a relative sqlite3 path is resolved inside the repo
	Conn string

	// upper bound of open connections, 0 means driver default
	MaxOpenConns int
}

// Storage contains configs for backend content stores
type Storage struct {
	// the first backend is the primary, the rest receive replicas
	Backends []Backend

	// per request timeout for remote backends
	Timeout time.Duration
}

// Backend contains configs for one content store
type Backend struct {

	// ipfs+http://host:port, ipfs+https://host:port, leveldb:<path>, badger:<path> or memory
	Conn string
}

// Gateway contains configs for the http gateway
type Gateway struct {
	// Enable the http gateway
	Enable bool

	// Binding address for the http gateway
	ListenAddress string

	EnableLog bool

	// per request timeout, 0 disables it
	Timeout time.Duration
}

// Cache contains configs for the fetched content cache
type Cache struct {
	EnableCache bool

	// lru or redis
	Type string

	CacheCapacity int

	// content larger than this many bytes is never cached
	ContentLimit int

	RedisConn     string
	RedisPassword string
	RedisPoolSize int
}
