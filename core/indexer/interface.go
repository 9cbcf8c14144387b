package indexer

import (
	"context"

	"github.com/mintline/marketplace-indexer/core/types"
)

// Processor consumes the confirmed event stream and maintains the local
// mirror of ledger state.
type Processor interface {
	Name() string

	// Process applies a batch of confirmed events and advances the cursor to
	// tip. Events within a batch are ordered by (block height, tx index).
	Process(ctx context.Context, events []*types.ConfirmedEvent, tip types.BlockRef) error

	// CurrentBlock returns the latest applied block. Returns errs.NotFound if
	// nothing has been applied yet.
	CurrentBlock(ctx context.Context) (types.BlockRef, error)

	// RevertData rolls back state derived from the reverted block range.
	RevertData(ctx context.Context, reverted types.BlockRange) error

	// Shutdown gracefully stops the processor. After this returns, no further
	// Process or RevertData calls are made.
	Shutdown(ctx context.Context) error
}

// IndexerWorker is a long-running worker driving a processor.
type IndexerWorker interface {
	Run(ctx context.Context) error
	ShutdownWithContext(ctx context.Context) error
}
