package entity

import (
	"github.com/ethereum/go-ethereum/common"
)

// Asset is the mirrored ledger state of a single marketplace asset.
type Asset struct {
	AssetId      uint64
	MetadataHash string
	Creator      common.Address
	Owner        common.Address
	RoyaltyBps   uint16

	// Name and Description mirror the core metadata fields so search does
	// not have to resolve the blob store.
	Name        string
	Description string
}
