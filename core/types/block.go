package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// BlockRef identifies a confirmed ledger block by height and hash. PrevHash
// links the hash chain so consumers can detect reorganizations.
type BlockRef struct {
	Height   uint64      `json:"height"`
	Hash     common.Hash `json:"hash"`
	PrevHash common.Hash `json:"prevHash"`
}

// BlockRange is a contiguous, inclusive range of block heights.
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

func (r BlockRange) Contains(height uint64) bool {
	return height >= r.From && height <= r.To
}
