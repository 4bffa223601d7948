package storage

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// ComputeReference returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeReference(data []byte) (interfaces.ContentReference, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return interfaces.ContentReference(cid.NewCidV1(cid.Raw, sum).String()), nil
}

// objectKey normalizes ref into the key used by backends that store blobs
// under their CID.
func objectKey(ref interfaces.ContentReference) (string, error) {
	parsed, err := interfaces.ParseContentReference(string(ref))
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}
