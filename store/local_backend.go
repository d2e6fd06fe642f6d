package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"comlake-node/types"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	measure "github.com/ipfs/go-ds-measure"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
	"golang.org/x/xerrors"
)

var blocksPrefix = datastore.NewKey("/blocks")

// LocalBackend keeps content in a datastore keyed by CID. Files are stored as
// raw blocks; directories as a dag-json manifest naming each file's block.
type LocalBackend struct {
	path string
	ds   datastore.Batching
}

// NewLocalBackend returns a leveldb-backed store at path, or an in-memory
// store when path is empty.
func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{path: path}
}

func (b *LocalBackend) Id() string {
	if b.path == "" {
		return fmt.Sprintf("%s-memory", b.Type())
	}
	return fmt.Sprintf("%s-%s", b.Type(), b.path)
}

func (b *LocalBackend) Type() string {
	return "local"
}

func (b *LocalBackend) Open() error {
	if b.path == "" {
		b.ds = dssync.MutexWrap(datastore.NewMapDatastore())
		return nil
	}

	ds, err := levelds.NewDatastore(b.path, &levelds.Options{
		Compression: ldbopts.NoCompression,
		NoSync:      false,
		Strict:      ldbopts.StrictAll,
	})
	if err != nil {
		return types.Wrap(types.ErrOpenDataStoreFailed, err)
	}
	b.ds = measure.New("store.leveldb", ds)
	return nil
}

func (b *LocalBackend) Close() error {
	if b.ds == nil {
		return nil
	}
	return b.ds.Close()
}

func (b *LocalBackend) Put(ctx context.Context, reader io.Reader) (cid.Cid, error) {
	c, err := putFile(ctx, reader, b.putBlock)
	if err != nil {
		return cid.Undef, err
	}
	log.Debugf("%s store cid: %v", b.Id(), c)
	return c, nil
}

func (b *LocalBackend) PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error) {
	c, err := putManifest(ctx, entries, b.putBlock)
	if err != nil {
		return cid.Undef, err
	}
	log.Debugf("%s store directory cid: %v", b.Id(), c)
	return c, nil
}

func (b *LocalBackend) putBlock(ctx context.Context, c cid.Cid, content []byte) error {
	if b.ds == nil {
		return types.Wrapf(types.ErrStorageUnavailable, "%s is not open", b.Id())
	}
	if err := b.ds.Put(ctx, blockKey(c), content); err != nil {
		return types.Wrap(types.ErrStorageUnavailable, err)
	}
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if b.ds == nil {
		return nil, types.Wrapf(types.ErrStorageUnavailable, "%s is not open", b.Id())
	}
	content, err := b.ds.Get(ctx, blockKey(c))
	if xerrors.Is(err, datastore.ErrNotFound) {
		return nil, types.Wrapf(types.ErrNotFound, "content %v", c)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrStorageUnavailable, err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func blockKey(c cid.Cid) datastore.Key {
	return blocksPrefix.ChildString(c.String())
}
