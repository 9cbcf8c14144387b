package ledger

import (
	"context"

	"github.com/mintline/marketplace-indexer/core/types"
)

// Client is the narrow contract to the authoritative marketplace ledger.
// Submission is the only path that changes ledger state; reads are
// side-effect-free.
//
// Error semantics:
//   - Submit returns *SubmissionRejectedError when the ledger evaluated and
//     refused the intent (never retried), or an error wrapping
//     errs.Unavailable when transport retries are exhausted.
//   - Reads return errs.NotFound for unknown entities and errs.Unavailable
//     on transport exhaustion.
type Client interface {
	Submit(ctx context.Context, intent Intent) (PendingReceipt, error)
	GetAssetState(ctx context.Context, assetId uint64) (*AssetState, error)
	GetTip(ctx context.Context) (types.BlockRef, error)
	GetBlockRef(ctx context.Context, height uint64) (types.BlockRef, error)

	// GetEvents returns the confirmed events for blocks [from, to] in ledger
	// order (block height, then tx index).
	GetEvents(ctx context.Context, from, to uint64) ([]*types.ConfirmedEvent, error)
}
