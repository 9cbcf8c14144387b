package entity

import (
	"time"

	"github.com/mintline/marketplace-indexer/core/types"
)

// IndexRecord is one asset's row in the reconciliation index: the mirrored
// ledger state plus bookkeeping for staleness tracking.
type IndexRecord struct {
	Asset   Asset
	Listing *Listing

	// LastConfirmedBlock is the block whose event most recently touched this
	// record, and LastTxIndex the position of that event within the block.
	// Together they order applies and reject replays.
	LastConfirmedBlock types.BlockRef
	LastTxIndex        uint32

	// ObservedAt is the local wall-clock time of the last apply.
	ObservedAt time.Time

	// Dirty marks the record as potentially stale, set after an intent
	// submission touches the asset and cleared by the next confirmed apply.
	Dirty bool
}

// Copy returns a deep copy, so callers can hand records out without aliasing
// the index's internal state.
func (r *IndexRecord) Copy() *IndexRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Listing != nil {
		listing := *r.Listing
		out.Listing = &listing
	}
	return &out
}

// RecordSnapshot is a retained prior version of an index record, kept so a
// bounded-depth revert can restore state without replaying the chain. A nil
// Record marks a version where the asset did not exist yet.
type RecordSnapshot struct {
	AssetId uint64
	Record  *IndexRecord
}
