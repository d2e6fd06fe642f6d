package store

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"comlake-node/types"
	"comlake-node/utils"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

type failingBackend struct {
	opened bool
	closed bool
}

func (f *failingBackend) Id() string   { return "failing" }
func (f *failingBackend) Type() string { return "failing" }
func (f *failingBackend) Open() error  { f.opened = true; return nil }
func (f *failingBackend) Close() error { f.closed = true; return nil }

func (f *failingBackend) Put(ctx context.Context, reader io.Reader) (cid.Cid, error) {
	return cid.Undef, types.Wrapf(types.ErrStorageUnavailable, "unreachable")
}

func (f *failingBackend) PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error) {
	return cid.Undef, types.Wrapf(types.ErrStorageUnavailable, "unreachable")
}

func (f *failingBackend) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	return nil, types.Wrapf(types.ErrStorageUnavailable, "unreachable")
}

func TestManagerReplicates(t *testing.T) {
	ctx := context.Background()
	primary := NewLocalBackend("")
	replica := NewLocalBackend("")
	sm := NewStoreManager([]StoreBackend{primary, replica})
	require.NoError(t, sm.Open())
	defer sm.Close()

	c, err := sm.Put(ctx, strings.NewReader("replicated"))
	require.NoError(t, err)

	for _, b := range []*LocalBackend{primary, replica} {
		r, err := b.Get(ctx, c)
		require.NoError(t, err)
		require.Equal(t, []byte("replicated"), readAll(t, r))
	}

	dir, err := sm.PutDirectory(ctx, []DirEntry{{Path: "x", Content: strings.NewReader("1")}})
	require.NoError(t, err)
	_, err = replica.Get(ctx, dir)
	require.NoError(t, err)
}

func TestManagerReplicaFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreManager([]StoreBackend{NewLocalBackend(""), &failingBackend{}})
	require.NoError(t, sm.Open())
	defer sm.Close()

	c, err := sm.Put(ctx, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	expected, err := utils.CalculateCid([]byte("abc"))
	require.NoError(t, err)
	require.True(t, expected.Equals(c))
}

func TestManagerPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreManager([]StoreBackend{&failingBackend{}, NewLocalBackend("")})
	require.NoError(t, sm.Open())
	defer sm.Close()

	_, err := sm.Put(ctx, strings.NewReader("abc"))
	require.ErrorIs(t, err, types.ErrStorageUnavailable)
}

func TestManagerGetFallsThrough(t *testing.T) {
	ctx := context.Background()
	empty := NewLocalBackend("")
	holder := NewLocalBackend("")
	sm := NewStoreManager([]StoreBackend{empty, holder})
	require.NoError(t, sm.Open())
	defer sm.Close()

	c, err := holder.Put(ctx, strings.NewReader("only here"))
	require.NoError(t, err)

	r, err := sm.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("only here"), readAll(t, r))

	miss, err := utils.CalculateCid([]byte("nowhere"))
	require.NoError(t, err)
	_, err = sm.Get(ctx, miss)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestManagerGetReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreManager([]StoreBackend{&failingBackend{}, NewLocalBackend("")})
	require.NoError(t, sm.Open())
	defer sm.Close()

	miss, err := utils.CalculateCid([]byte("nowhere"))
	require.NoError(t, err)
	_, err = sm.Get(ctx, miss)
	require.ErrorIs(t, err, types.ErrStorageUnavailable)
}

func TestManagerClosesAll(t *testing.T) {
	a, b := &failingBackend{}, &failingBackend{}
	sm := NewStoreManager([]StoreBackend{a, b})
	require.NoError(t, sm.Open())
	require.NoError(t, sm.Close())
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestManagerWithoutBackends(t *testing.T) {
	sm := NewStoreManager(nil)
	_, err := sm.Put(context.Background(), strings.NewReader("abc"))
	require.ErrorIs(t, err, types.ErrStorageUnavailable)
}
