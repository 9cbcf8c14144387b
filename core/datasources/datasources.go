package datasources

import (
	"context"

	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/internal/subscription"
)

// Datasource is an interface for indexer data sources.
type Datasource[T any] interface {
	Name() string

	// Fetch collects every item the stream would deliver for blocks [from, to]
	// and returns once the range is exhausted. A negative to means "up to the
	// current tip".
	Fetch(ctx context.Context, from, to int64) ([]T, error)

	// FetchAsync streams items for blocks [from, to] into ch. Delivery is
	// at-least-once: around a reorganization the stream emits a revert marker
	// and then replays the corrected sequence from the fork point.
	FetchAsync(ctx context.Context, from, to int64, ch chan<- T) (*subscription.ClientSubscription[T], error)

	// GetBlockRef returns the confirmed block reference at the given height.
	GetBlockRef(ctx context.Context, height uint64) (types.BlockRef, error)
}
