package store

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"comlake-node/types"
	"comlake-node/utils"

	"github.com/ipfs/go-cid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/xerrors"
)

// DirEntry is one file of directory-shaped content. Path is slash separated
// and relative to the directory root.
type DirEntry struct {
	Path    string
	Content io.Reader
}

func cleanEntryPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", types.Wrapf(types.ErrValidation, "invalid directory entry path %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", types.Wrapf(types.ErrValidation, "invalid directory entry path %q", p)
	}
	return cleaned, nil
}

type bufferedEntry struct {
	path    string
	content []byte
}

type bufferedDir []bufferedEntry

// bufferEntries reads every entry into memory with cleaned, sorted, unique
// paths so the same directory always yields the same layout.
func bufferEntries(entries []DirEntry) (bufferedDir, error) {
	if len(entries) == 0 {
		return nil, types.Wrapf(types.ErrEmptyInput, "directory has no entries")
	}

	out := make(bufferedDir, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		p, err := cleanEntryPath(e.Path)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			return nil, types.Wrapf(types.ErrValidation, "duplicate directory entry path %q", p)
		}
		seen[p] = struct{}{}

		var content []byte
		if e.Content != nil {
			content, err = io.ReadAll(e.Content)
			if err != nil {
				return nil, xerrors.Errorf("read entry %s: %w", p, err)
			}
		}
		out = append(out, bufferedEntry{path: p, content: content})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func (d bufferedDir) entries() []DirEntry {
	out := make([]DirEntry, len(d))
	for i, e := range d {
		out[i] = DirEntry{Path: e.path, Content: bytes.NewReader(e.content)}
	}
	return out
}

type manifest struct {
	Entries []manifestEntry `json:"entries"`
}

type manifestEntry struct {
	Path string `json:"path"`
	Cid  string `json:"cid"`
	Size int    `json:"size"`
}

type putBlockFunc func(ctx context.Context, c cid.Cid, content []byte) error

// putFile stores reader as a single raw block.
func putFile(ctx context.Context, reader io.Reader, put putBlockFunc) (cid.Cid, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return cid.Undef, xerrors.Errorf("read payload: %w", err)
	}
	if len(content) == 0 {
		return cid.Undef, types.ErrEmptyInput
	}

	c, err := utils.CalculateCid(content)
	if err != nil {
		return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
	}
	if err := put(ctx, c, content); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

// putManifest stores every file as a raw block, then a dag-json manifest
// naming each block; the manifest's CID identifies the directory.
func putManifest(ctx context.Context, entries []DirEntry, put putBlockFunc) (cid.Cid, error) {
	dir, err := bufferEntries(entries)
	if err != nil {
		return cid.Undef, err
	}

	m := manifest{Entries: make([]manifestEntry, 0, len(dir))}
	for _, e := range dir {
		c, err := utils.CalculateCid(e.content)
		if err != nil {
			return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
		}
		if err := put(ctx, c, e.content); err != nil {
			return cid.Undef, err
		}
		m.Entries = append(m.Entries, manifestEntry{Path: e.path, Cid: c.String(), Size: len(e.content)})
	}

	node, err := jsoniter.Marshal(&m)
	if err != nil {
		return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
	}
	c, err := utils.CalculateNodeCid(node)
	if err != nil {
		return cid.Undef, types.Wrap(types.ErrStorageUnavailable, err)
	}
	if err := put(ctx, c, node); err != nil {
		return cid.Undef, err
	}
	return c, nil
}
