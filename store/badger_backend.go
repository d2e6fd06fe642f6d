package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"comlake-node/types"

	"github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

// BadgerBackend keeps content in a badger key value store using the same
// block layout as LocalBackend.
type BadgerBackend struct {
	path string
	db   *badger.DB
}

func NewBadgerBackend(path string) *BadgerBackend {
	return &BadgerBackend{path: path}
}

func (b *BadgerBackend) Id() string {
	return fmt.Sprintf("%s-%s", b.Type(), b.path)
}

func (b *BadgerBackend) Type() string {
	return "badger"
}

func (b *BadgerBackend) Open() error {
	opts := badger.DefaultOptions(b.path).
		WithLogger(nil).
		WithValueThreshold(1 << 10)
	db, err := badger.Open(opts)
	if err != nil {
		return types.Wrap(types.ErrOpenDataStoreFailed, err)
	}
	b.db = db
	return nil
}

func (b *BadgerBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *BadgerBackend) Put(ctx context.Context, reader io.Reader) (cid.Cid, error) {
	c, err := putFile(ctx, reader, b.putBlock)
	if err != nil {
		return cid.Undef, err
	}
	log.Debugf("%s store cid: %v", b.Id(), c)
	return c, nil
}

func (b *BadgerBackend) PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error) {
	c, err := putManifest(ctx, entries, b.putBlock)
	if err != nil {
		return cid.Undef, err
	}
	log.Debugf("%s store directory cid: %v", b.Id(), c)
	return c, nil
}

func (b *BadgerBackend) putBlock(ctx context.Context, c cid.Cid, content []byte) error {
	if b.db == nil {
		return types.Wrapf(types.ErrStorageUnavailable, "%s is not open", b.Id())
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(c).Bytes(), content)
	})
	if err != nil {
		return types.Wrap(types.ErrStorageUnavailable, err)
	}
	return nil
}

func (b *BadgerBackend) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if b.db == nil {
		return nil, types.Wrapf(types.ErrStorageUnavailable, "%s is not open", b.Id())
	}

	var content []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(c).Bytes())
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if xerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.Wrapf(types.ErrNotFound, "content %v", c)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrStorageUnavailable, err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
