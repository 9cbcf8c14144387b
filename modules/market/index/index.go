package index

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

// snapshotDepth bounds how many prior record versions are retained per asset.
// Reverts deeper than this fall back to marking the record dirty, which routes
// the next read through read repair.
const snapshotDepth = 2

type assetEntry struct {
	mu     sync.Mutex
	record *entity.IndexRecord

	// snapshots holds prior versions ordered oldest first. A nil record marks
	// a version where the asset did not exist yet.
	snapshots []*entity.IndexRecord
}

// Index is the in-memory reconciliation index: the authoritative local mirror
// of per-asset ledger state. Applies are serialized per asset, ordered by
// (block height, tx index), and idempotent under replays.
type Index struct {
	mu      sync.RWMutex
	entries map[uint64]*assetEntry
}

func New() *Index {
	return &Index{
		entries: make(map[uint64]*assetEntry),
	}
}

func (idx *Index) entry(assetId uint64) *assetEntry {
	idx.mu.RLock()
	e, ok := idx.entries[assetId]
	idx.mu.RUnlock()
	if ok {
		return e
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.entries[assetId]; ok {
		return e
	}
	e = &assetEntry{}
	idx.entries[assetId] = e
	return e
}

// RevertOutcome reports what Revert did to each touched asset.
type RevertOutcome struct {
	Restored []uint64 // rolled back to a retained snapshot
	Deleted  []uint64 // created inside the reverted range, removed entirely
	Dirtied  []uint64 // no snapshot deep enough, marked for read repair
}

// Apply folds one confirmed event into the mirror. Duplicate deliveries (same
// or older position for the asset) are discarded: exact replays return nil,
// strictly older events return errs.OutOfOrder.
func (idx *Index) Apply(event *types.ConfirmedEvent) error {
	if !event.Kind.IsValid() {
		return errors.Wrapf(errs.Unsupported, "unknown event kind %q", event.Kind)
	}

	e := idx.entry(event.AssetId)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record != nil {
		last, lastTx := e.record.LastConfirmedBlock.Height, e.record.LastTxIndex
		if event.Block.Height < last || (event.Block.Height == last && event.TxIndex < lastTx) {
			return errors.Wrapf(errs.OutOfOrder, "event at %d:%d is behind record at %d:%d, asset: %d",
				event.Block.Height, event.TxIndex, last, lastTx, event.AssetId)
		}
		if event.Block.Height == last && event.TxIndex == lastTx {
			// exact replay
			return nil
		}
	}

	// Retain the pre-block version once per block boundary.
	if e.record == nil || event.Block.Height > e.record.LastConfirmedBlock.Height {
		e.pushSnapshot()
	}

	next, err := applyEvent(e.record, event)
	if err != nil {
		return errors.WithStack(err)
	}
	next.LastConfirmedBlock = event.Block
	next.LastTxIndex = event.TxIndex
	next.ObservedAt = time.Now()
	next.Dirty = false
	e.record = next
	return nil
}

// pushSnapshot must be called with the entry lock held.
func (e *assetEntry) pushSnapshot() {
	e.snapshots = append(e.snapshots, e.record.Copy())
	if len(e.snapshots) > snapshotDepth {
		e.snapshots = e.snapshots[len(e.snapshots)-snapshotDepth:]
	}
}

func applyEvent(current *entity.IndexRecord, event *types.ConfirmedEvent) (*entity.IndexRecord, error) {
	switch event.Kind {
	case types.EventKindMinted:
		payload := event.Minted
		if payload == nil {
			return nil, errors.Wrap(errs.InvalidArgument, "minted event without payload")
		}
		return &entity.IndexRecord{
			Asset: entity.Asset{
				AssetId:      event.AssetId,
				MetadataHash: payload.MetadataHash,
				Creator:      payload.Creator,
				Owner:        payload.Creator,
				RoyaltyBps:   payload.RoyaltyBps,
				Name:         payload.Name,
				Description:  payload.Description,
			},
		}, nil
	case types.EventKindListed:
		payload := event.Listed
		if payload == nil {
			return nil, errors.Wrap(errs.InvalidArgument, "listed event without payload")
		}
		if current == nil {
			return nil, errors.Wrapf(errs.InvalidArgument, "listed event for unknown asset %d", event.AssetId)
		}
		next := current.Copy()
		// a new listing supersedes any prior one, the ledger enforces that at
		// most one is active
		next.Listing = &entity.Listing{
			ListingId:      payload.ListingId,
			Seller:         payload.Seller,
			Price:          payload.Price,
			Status:         entity.ListingStatusActive,
			FeePaid:        payload.FeePaid,
			CreatedAtBlock: event.Block.Height,
		}
		return next, nil
	case types.EventKindSold:
		payload := event.Sold
		if payload == nil {
			return nil, errors.Wrap(errs.InvalidArgument, "sold event without payload")
		}
		if current == nil || current.Listing == nil {
			return nil, errors.Wrapf(errs.InvalidArgument, "sold event for asset %d without a listing", event.AssetId)
		}
		next := current.Copy()
		next.Listing.Status = entity.ListingStatusSold
		next.Asset.Owner = payload.Buyer
		return next, nil
	case types.EventKindCancelled:
		payload := event.Cancelled
		if payload == nil {
			return nil, errors.Wrap(errs.InvalidArgument, "cancelled event without payload")
		}
		if current == nil || current.Listing == nil {
			return nil, errors.Wrapf(errs.InvalidArgument, "cancelled event for asset %d without a listing", event.AssetId)
		}
		next := current.Copy()
		next.Listing.Status = entity.ListingStatusCancelled
		return next, nil
	}
	return nil, errors.Wrapf(errs.Unsupported, "unknown event kind %q", event.Kind)
}

// Get returns a copy of the record for assetId. Returns errs.NotFound if the
// asset is not mirrored.
func (idx *Index) Get(assetId uint64) (*entity.IndexRecord, error) {
	idx.mu.RLock()
	e, ok := idx.entries[assetId]
	idx.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errs.NotFound, "asset %d not found in index", assetId)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return nil, errors.Wrapf(errs.NotFound, "asset %d not found in index", assetId)
	}
	return e.record.Copy(), nil
}

// MarkDirty flags assetId as potentially stale. Returns false if the asset is
// not mirrored.
func (idx *Index) MarkDirty(assetId uint64) bool {
	idx.mu.RLock()
	e, ok := idx.entries[assetId]
	idx.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return false
	}
	e.record.Dirty = true
	return true
}

// Repair overwrites an asset's record with authoritative state fetched from
// the ledger. The repair is discarded if a newer confirmed event has already
// been applied.
func (idx *Index) Repair(assetId uint64, record *entity.IndexRecord) *entity.IndexRecord {
	e := idx.entry(assetId)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record != nil && e.record.LastConfirmedBlock.Height > record.LastConfirmedBlock.Height {
		return e.record.Copy()
	}
	next := record.Copy()
	next.Dirty = false
	next.ObservedAt = time.Now()
	e.record = next
	return next.Copy()
}

// Load seeds the index from persisted records and their retained snapshot
// history. Snapshots must be ordered oldest first within each asset. Meant
// for startup, before any concurrent access.
func (idx *Index) Load(records []*entity.IndexRecord, snapshots []*entity.RecordSnapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, record := range records {
		idx.entries[record.Asset.AssetId] = &assetEntry{record: record.Copy()}
	}
	for _, snapshot := range snapshots {
		e, ok := idx.entries[snapshot.AssetId]
		if !ok {
			// snapshot for a record that no longer exists, skip
			continue
		}
		if len(e.snapshots) >= snapshotDepth {
			continue
		}
		e.snapshots = append(e.snapshots, snapshot.Record.Copy())
	}
}

// Snapshots returns the retained history for assetId, oldest first. A nil
// Record marks a version where the asset did not exist yet.
func (idx *Index) Snapshots(assetId uint64) []*entity.RecordSnapshot {
	idx.mu.RLock()
	e, ok := idx.entries[assetId]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	snapshots := make([]*entity.RecordSnapshot, 0, len(e.snapshots))
	for _, snapshot := range e.snapshots {
		snapshots = append(snapshots, &entity.RecordSnapshot{
			AssetId: assetId,
			Record:  snapshot.Copy(),
		})
	}
	return snapshots
}

// Revert undoes state derived from the reverted block range. Records with a
// retained snapshot older than the range are restored; records created inside
// the range are deleted; the rest are marked dirty for read repair.
func (idx *Index) Revert(reverted types.BlockRange) RevertOutcome {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var outcome RevertOutcome
	for assetId, e := range idx.entries {
		e.mu.Lock()
		if e.record == nil || e.record.LastConfirmedBlock.Height < reverted.From {
			// untouched by the reverted range
			e.mu.Unlock()
			continue
		}

		restored := false
		for i := len(e.snapshots) - 1; i >= 0; i-- {
			snapshot := e.snapshots[i]
			if snapshot == nil {
				// asset did not exist before the reverted range
				delete(idx.entries, assetId)
				outcome.Deleted = append(outcome.Deleted, assetId)
				restored = true
				break
			}
			if snapshot.LastConfirmedBlock.Height < reverted.From {
				e.record = snapshot
				e.snapshots = e.snapshots[:i]
				outcome.Restored = append(outcome.Restored, assetId)
				restored = true
				break
			}
		}
		if !restored {
			// revert deeper than retained history
			e.record.Dirty = true
			e.snapshots = nil
			outcome.Dirtied = append(outcome.Dirtied, assetId)
		}
		e.mu.Unlock()
	}
	return outcome
}

// All returns a copy of every mirrored record.
func (idx *Index) All() []*entity.IndexRecord {
	idx.mu.RLock()
	entries := make([]*assetEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, e)
	}
	idx.mu.RUnlock()

	records := make([]*entity.IndexRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.record != nil {
			records = append(records, e.record.Copy())
		}
		e.mu.Unlock()
	}
	return records
}
