package store

import (
	"path/filepath"
	"strings"
	"time"

	"comlake-node/types"

	"github.com/mitchellh/go-homedir"
)

const (
	connMemory  = "memory"
	connLeveldb = "leveldb:"
	connBadger  = "badger:"
)

// NewBackend builds a backend from its connection string:
// ipfs+http://host:port, ipfs+https://host:port, leveldb:<path>,
// badger:<path> or memory. Relative paths are resolved against base.
func NewBackend(conn string, base string, timeout time.Duration) (StoreBackend, error) {
	conn = strings.TrimSpace(conn)
	switch {
	case strings.HasPrefix(conn, "ipfs+"):
		return NewIpfsBackend(conn, timeout)
	case conn == connMemory:
		return NewLocalBackend(""), nil
	case strings.HasPrefix(conn, connLeveldb):
		p, err := backendPath(strings.TrimPrefix(conn, connLeveldb), base)
		if err != nil {
			return nil, err
		}
		return NewLocalBackend(p), nil
	case strings.HasPrefix(conn, connBadger):
		p, err := backendPath(strings.TrimPrefix(conn, connBadger), base)
		if err != nil {
			return nil, err
		}
		return NewBadgerBackend(p), nil
	default:
		return nil, types.Wrapf(types.ErrInvalidParameters, "unsupported content backend: %s", conn)
	}
}

func backendPath(p string, base string) (string, error) {
	p, err := homedir.Expand(p)
	if err != nil {
		return "", types.Wrapf(types.ErrInvalidRepoPath, "%v", err)
	}
	if p == "" {
		return "", types.Wrapf(types.ErrInvalidParameters, "backend needs a path")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return p, nil
}
