package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "node")
	r, err := NewRepo(dir)
	require.NoError(t, err)

	exist, err := r.Exists()
	require.NoError(t, err)
	require.False(t, exist)

	require.NoError(t, r.Init())
	exist, err = r.Exists()
	require.NoError(t, err)
	require.True(t, exist)

	cfg, err := r.Config()
	require.NoError(t, err)
	require.Equal(t, "sqlite3", cfg.Catalog.Driver)
	require.Equal(t, "leveldb:blocks", cfg.Storage.Backends[0].Conn)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Catalog]\n  Driver = \"postgres\"\n"), 0644))
	require.NoError(t, r.Init())
	cfg, err = r.Config()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Catalog.Driver)
}

func TestResolve(t *testing.T) {
	r, err := NewRepo("/var/lib/comlake")
	require.NoError(t, err)

	require.Equal(t, "/var/lib/comlake/catalog.db", r.Resolve("catalog.db"))
	require.Equal(t, "/tmp/catalog.db", r.Resolve("/tmp/catalog.db"))
	require.Equal(t, "", r.Resolve(""))
}

func TestNewRepoEmpty(t *testing.T) {
	_, err := NewRepo("")
	require.Error(t, err)
}
