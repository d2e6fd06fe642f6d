package store

import (
	"bytes"
	"context"
	"io"

	"comlake-node/types"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/zeebo/errs"
	"golang.org/x/xerrors"
)

var log = logging.Logger("store")

// ContentStore persists bytes under their content identifier.
type ContentStore interface {
	Put(ctx context.Context, reader io.Reader) (cid.Cid, error)
	PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error)
	Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error)
}

type StoreBackend interface {
	ContentStore

	Id() string
	Type() string
	Open() error
	Close() error
}

// StoreManager fans content out over several backends. The first backend is
// the primary: its identifier is returned and its failures are the caller's.
type StoreManager struct {
	backends []StoreBackend
}

func NewStoreManager(initial []StoreBackend) *StoreManager {
	return &StoreManager{
		backends: initial,
	}
}

func (ss *StoreManager) AddBackend(backend StoreBackend) {
	ss.backends = append(ss.backends, backend)
}

func (ss *StoreManager) Type() string {
	return "manager"
}

func (ss *StoreManager) Open() error {
	for i, back := range ss.backends {
		err := back.Open()
		if err != nil {
			log.Errorf("%s open error: %v", back.Id(), err)
			return errs.Combine(err, closeAll(ss.backends[:i]))
		}
	}
	return nil
}

func (ss *StoreManager) Close() error {
	return closeAll(ss.backends)
}

func closeAll(backends []StoreBackend) error {
	var group errs.Group
	for _, back := range backends {
		if err := back.Close(); err != nil {
			log.Errorf("%s close err: %v", back.Id(), err)
			group.Add(err)
		}
	}
	return group.Err()
}

func (ss *StoreManager) Put(ctx context.Context, reader io.Reader) (cid.Cid, error) {
	if len(ss.backends) == 0 {
		return cid.Undef, types.Wrapf(types.ErrStorageUnavailable, "no content backend configured")
	}
	if len(ss.backends) == 1 {
		return ss.backends[0].Put(ctx, reader)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return cid.Undef, xerrors.Errorf("read payload: %w", err)
	}

	primary, err := ss.backends[0].Put(ctx, bytes.NewReader(content))
	if err != nil {
		return cid.Undef, err
	}
	for _, back := range ss.backends[1:] {
		replica, err := back.Put(ctx, bytes.NewReader(content))
		ss.checkReplica(back, primary, replica, err)
	}
	return primary, nil
}

func (ss *StoreManager) PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error) {
	if len(ss.backends) == 0 {
		return cid.Undef, types.Wrapf(types.ErrStorageUnavailable, "no content backend configured")
	}
	if len(ss.backends) == 1 {
		return ss.backends[0].PutDirectory(ctx, entries)
	}

	buffered, err := bufferEntries(entries)
	if err != nil {
		return cid.Undef, err
	}

	primary, err := ss.backends[0].PutDirectory(ctx, buffered.entries())
	if err != nil {
		return cid.Undef, err
	}
	for _, back := range ss.backends[1:] {
		replica, err := back.PutDirectory(ctx, buffered.entries())
		ss.checkReplica(back, primary, replica, err)
	}
	return primary, nil
}

func (ss *StoreManager) checkReplica(back StoreBackend, primary, replica cid.Cid, err error) {
	if err != nil {
		log.Errorf("%s replica store error: %v", back.Id(), err)
		return
	}
	if !replica.Equals(primary) {
		log.Warnf("%s stored %v as %v", back.Id(), primary, replica)
		return
	}
	log.Debugf("%s replicated %v", back.Id(), primary)
}

func (ss *StoreManager) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	var lastErr error
	for _, back := range ss.backends {
		reader, err := back.Get(ctx, c)
		if err == nil {
			return reader, nil
		}
		if !xerrors.Is(err, types.ErrNotFound) {
			log.Errorf("%s get cid=%v error: %v", back.Id(), c, err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, types.Wrapf(types.ErrNotFound, "content %v", c)
}
