package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"comlake-node/types"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

type IpfsBackend struct {
	ipfsAddress string
	timeout     time.Duration
	ipfsApi     *shell.Shell
}

func NewIpfsBackend(connectionString string, timeout time.Duration) (*IpfsBackend, error) {
	var conn string
	if strings.HasPrefix(connectionString, "ipfs+https") {
		conn = strings.Replace(connectionString, "ipfs+https", "https", 1)
	} else if strings.HasPrefix(connectionString, "ipfs+http") {
		conn = strings.Replace(connectionString, "ipfs+http", "http", 1)
	} else {
		return nil, types.Wrapf(types.ErrInvalidParameters, "unsupported ipfs connection protocol: %s", connectionString)
	}

	b := IpfsBackend{
		ipfsAddress: conn,
		timeout:     timeout,
	}
	return &b, nil
}

func (b *IpfsBackend) Id() string {
	return fmt.Sprintf("%s-%s", b.Type(), b.ipfsAddress)
}

func (b *IpfsBackend) Type() string {
	return "ipfs"
}

func (b *IpfsBackend) Open() error {
	b.ipfsApi = shell.NewShell(b.ipfsAddress)
	if b.timeout > 0 {
		b.ipfsApi.SetTimeout(b.timeout)
	}
	return nil
}

func (b *IpfsBackend) Close() error {
	return nil
}

func (b *IpfsBackend) Put(ctx context.Context, reader io.Reader) (cid.Cid, error) {
	reader, err := nonEmpty(reader)
	if err != nil {
		return cid.Undef, err
	}

	hash, err := b.ipfsApi.Add(reader, shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
	}
	log.Debugf("%s store hash: %v", b.Id(), hash)
	return decodeHash(hash)
}

// PutDirectory lays the entries out in a scratch directory and adds it
// recursively, so the daemon builds the same UnixFS tree it would for a
// directory on disk.
func (b *IpfsBackend) PutDirectory(ctx context.Context, entries []DirEntry) (cid.Cid, error) {
	dir, err := bufferEntries(entries)
	if err != nil {
		return cid.Undef, err
	}

	scratch, err := os.MkdirTemp("", "comlake-dir-")
	if err != nil {
		return cid.Undef, xerrors.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	root := filepath.Join(scratch, "root")
	for _, e := range dir {
		p := filepath.Join(root, filepath.FromSlash(e.path))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return cid.Undef, xerrors.Errorf("create scratch directory: %w", err)
		}
		if err := os.WriteFile(p, e.content, 0644); err != nil {
			return cid.Undef, xerrors.Errorf("write scratch entry: %w", err)
		}
	}

	hash, err := b.ipfsApi.AddDir(root, shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
	}
	log.Debugf("%s store directory hash: %v", b.Id(), hash)
	return decodeHash(hash)
}

// Get only serves blocks the daemon already holds, so a miss is reported
// instead of searching the network for content this catalog never stored.
func (b *IpfsBackend) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	resp, err := b.ipfsApi.Request("cat", c.String()).Option("offline", true).Send(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrStorageUnavailable, err)
	}
	if resp.Error != nil {
		defer resp.Close()
		if strings.Contains(strings.ToLower(resp.Error.Message), "not found") {
			return nil, types.Wrapf(types.ErrNotFound, "content %v", c)
		}
		return nil, types.Wrap(types.ErrStorageUnavailable, resp.Error)
	}
	return resp.Output, nil
}

func decodeHash(hash string) (cid.Cid, error) {
	c, err := cid.Decode(hash)
	if err != nil {
		return cid.Undef, types.Wrapf(types.ErrStorageUnavailable, "invalid cid %q from daemon: %v", hash, err)
	}
	return c, nil
}

// nonEmpty fails with ErrEmptyInput when reader holds no bytes at all.
func nonEmpty(reader io.Reader) (io.Reader, error) {
	br := bufio.NewReader(reader)
	if _, err := br.Peek(1); err != nil {
		if err == io.EOF {
			return nil, types.ErrEmptyInput
		}
		return nil, xerrors.Errorf("read payload: %w", err)
	}
	return br, nil
}
