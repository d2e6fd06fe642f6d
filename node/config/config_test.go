package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comlake-node/types"

	"github.com/stretchr/testify/require"
)

func TestDefaultRoundTrip(t *testing.T) {
	raw, err := NodeBytes(DefaultNode())
	require.NoError(t, err)

	cfg, err := FromReader(bytes.NewReader(raw), &Node{})
	require.NoError(t, err)
	require.Equal(t, DefaultNode(), cfg)
}

func TestFromReader(t *testing.T) {
	doc := `
[Catalog]
  Driver = "postgres"
  Conn = "postgres://comlake@localhost/comlake?sslmode=disable"
  MaxOpenConns = 8

[[Storage.Backends]]
  Conn = "ipfs+http://127.0.0.1:5001"

[[Storage.Backends]]
  Conn = "memory"

[Cache]
  Type = "redis"
  RedisConn = "127.0.0.1:6379"
`
	raw, err := FromReader(strings.NewReader(doc), DefaultNode())
	require.NoError(t, err)
	cfg := raw.(*Node)

	require.Equal(t, "postgres", cfg.Catalog.Driver)
	require.Equal(t, 8, cfg.Catalog.MaxOpenConns)
	require.Equal(t, []Backend{{Conn: "ipfs+http://127.0.0.1:5001"}, {Conn: "memory"}}, cfg.Storage.Backends)
	require.Equal(t, "redis", cfg.Cache.Type)
	require.Equal(t, 1000, cfg.Cache.CacheCapacity)
	require.Equal(t, "127.0.0.1:5151", cfg.Gateway.ListenAddress)

	_, err = FromReader(strings.NewReader("[Catalog\nDriver ="), DefaultNode())
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COMLAKE_CATALOG_DRIVER", "postgres")
	t.Setenv("COMLAKE_GATEWAY_TIMEOUT", "5s")
	t.Setenv("COMLAKE_GATEWAY_ENABLE", "false")

	cfg, err := LoadNode(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Catalog.Driver)
	require.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	require.False(t, cfg.Gateway.Enable)

	t.Setenv("COMLAKE_CACHE_CACHECAPACITY", "many")
	_, err = LoadNode(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestLoadNodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Gateway]\n  ListenAddress = \"0.0.0.0:8080\"\n"), 0644))

	cfg, err := LoadNode(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.Gateway.ListenAddress)
	require.Equal(t, "sqlite3", cfg.Catalog.Driver)

	require.NoError(t, os.WriteFile(path, []byte("[Gateway\n"), 0644))
	_, err = LoadNode(path)
	require.ErrorIs(t, err, types.ErrDecodeConfigFailed)
}

func TestConfigUpdateComments(t *testing.T) {
	out, err := ConfigUpdate(DefaultNode(), DefaultNode(), true)
	require.NoError(t, err)

	s := string(out)
	require.Contains(t, s, "# database/sql driver, postgres or sqlite3")
	require.Contains(t, s, "# env var: COMLAKE_CATALOG_DRIVER")
	require.Contains(t, s, `#Driver = "sqlite3"`)
	require.Contains(t, s, "[[Storage.Backends]]")
	require.NotContains(t, s, `#Conn = "leveldb:blocks"`)

	cfg, err := FromReader(strings.NewReader(s), &Node{})
	require.NoError(t, err)
	require.Equal(t, DefaultNode().Storage.Backends, cfg.(*Node).Storage.Backends)
}
