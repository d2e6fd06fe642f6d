package config

import (
	"bytes"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

func DefaultNode() *Node {
	return &Node{
		Catalog: Catalog{
			Driver: "sqlite3",
			Conn:   "catalog.db",
		},
		Storage: Storage{
			Backends: []Backend{
				{Conn: "leveldb:blocks"},
			},
			Timeout: 30 * time.Second,
		},
		Gateway: Gateway{
			Enable:        true,
			ListenAddress: "127.0.0.1:5151",
			EnableLog:     true,
			Timeout:       time.Minute,
		},
		Cache: Cache{
			EnableCache:   true,
			Type:          "lru",
			CacheCapacity: 1000,
			ContentLimit:  2097152,
		},
	}
}

func NodeBytes(cfg interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding node config: %w", err)
	}

	return []byte(buf.String()), nil
}
