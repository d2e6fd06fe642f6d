package utils

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
)

var (
	rawPrefix = cid.Prefix{
		Version:  1,
		Codec:    uint64(multicodec.Raw),
		MhType:   multihash.SHA2_256,
		MhLength: -1, // default length
	}
	dagJsonPrefix = cid.Prefix{
		Version:  1,
		Codec:    uint64(multicodec.DagJson),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}
)

// CalculateCid returns the CIDv1 (raw codec, sha2-256) of content.
func CalculateCid(content []byte) (cid.Cid, error) {
	contentCid, err := rawPrefix.Sum(content)
	if err != nil {
		return cid.Undef, err
	}

	return contentCid, nil
}

// CalculateNodeCid returns the CIDv1 (dag-json codec, sha2-256) of an
// encoded structural node such as a directory manifest.
func CalculateNodeCid(node []byte) (cid.Cid, error) {
	nodeCid, err := dagJsonPrefix.Sum(node)
	if err != nil {
		return cid.Undef, err
	}

	return nodeCid, nil
}
