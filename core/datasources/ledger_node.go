package datasources

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/internal/subscription"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
)

const (
	// pollInterval is how long the stream waits for new blocks at the tip.
	pollInterval = 5 * time.Second

	// fetchBatchSize bounds the block range covered by a single delivery.
	fetchBatchSize = 500

	// maxReorgLookBack bounds the fork-point search. A reorganization deeper
	// than this is unrecoverable from the stream's own history.
	maxReorgLookBack = 1000
)

// Make sure to implement the Datasource interface
var _ Datasource[*types.StreamItem] = (*LedgerNodeDatasource)(nil)

// LedgerNodeDatasource streams confirmed marketplace events from a ledger
// node. It tracks the hash chain of delivered blocks; when the chain breaks it
// emits a Reverted marker for the orphaned range and replays the corrected
// sequence from the fork point.
type LedgerNodeDatasource struct {
	client ledger.Client
}

func NewLedgerNode(client ledger.Client) *LedgerNodeDatasource {
	return &LedgerNodeDatasource{client: client}
}

func (LedgerNodeDatasource) Name() string {
	return "ledger_node"
}

func (d *LedgerNodeDatasource) GetBlockRef(ctx context.Context, height uint64) (types.BlockRef, error) {
	ref, err := d.client.GetBlockRef(ctx, height)
	if err != nil {
		return types.BlockRef{}, errors.WithStack(err)
	}
	return ref, nil
}

// Fetch collects stream items for blocks [from, to] and returns once the
// range is exhausted.
func (d *LedgerNodeDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.StreamItem, error) {
	ch := make(chan *types.StreamItem)
	sub, err := d.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer sub.Unsubscribe()

	items := make([]*types.StreamItem, 0)
	for {
		select {
		case item := <-ch:
			items = append(items, item)
		case <-sub.Done():
			return items, nil
		case err := <-sub.Err():
			if err != nil {
				return nil, errors.WithStack(err)
			}
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context done")
		}
	}
}

// FetchAsync streams items for blocks [from, to] into ch. A negative from
// starts at genesis; a negative to follows the tip indefinitely.
func (d *LedgerNodeDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- *types.StreamItem) (*subscription.ClientSubscription[*types.StreamItem], error) {
	sub := subscription.NewSubscription(ch)

	go func() {
		if err := d.stream(ctx, sub, from, to); err != nil {
			if sendErr := sub.SendError(ctx, err); sendErr != nil {
				logger.WarnContext(ctx, "Failed to send error to subscription", slogx.Error(sendErr))
			}
		}
	}()

	return sub.Client(), nil
}

func (d *LedgerNodeDatasource) stream(ctx context.Context, sub *subscription.Subscription[*types.StreamItem], from, to int64) error {
	next := uint64(0)
	if from > 0 {
		next = uint64(from)
	}

	// chain is the bounded history of delivered block refs, newest last, used
	// to locate the fork point after a reorganization.
	chain := make([]types.BlockRef, 0, maxReorgLookBack)
	if next > 0 {
		prev, err := d.client.GetBlockRef(ctx, next-1)
		if err != nil {
			return errors.Wrapf(err, "failed to get block ref, height: %d", next-1)
		}
		chain = append(chain, prev)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if sub.IsClosed() {
			return nil
		}
		if to >= 0 && next > uint64(to) {
			return nil
		}

		tip, err := d.client.GetTip(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get ledger tip")
		}
		if tip.Height < next {
			select {
			case <-ticker.C:
				continue
			case <-sub.Done():
				return nil
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			}
		}

		end := tip.Height
		if to >= 0 && end > uint64(to) {
			end = uint64(to)
		}
		if end >= next+fetchBatchSize {
			end = next + fetchBatchSize - 1
		}

		startRef, err := d.client.GetBlockRef(ctx, next)
		if err != nil {
			return errors.Wrapf(err, "failed to get block ref, height: %d", next)
		}

		// Hash chain broken: the previously delivered block was reorganized
		// away. Emit a revert marker and replay from the fork point.
		if len(chain) > 0 && startRef.PrevHash != chain[len(chain)-1].Hash {
			forkPoint, keep, err := d.findForkPoint(ctx, chain)
			if err != nil {
				return errors.WithStack(err)
			}
			revertedTo := chain[len(chain)-1].Height
			logger.WarnContext(ctx, "Detected ledger reorganization",
				slogx.String("event", "reorg_detected"),
				slogx.Uint64("fork_point", forkPoint.Height),
				slogx.Uint64("reverted_to", revertedTo),
			)
			item := &types.StreamItem{
				Reverted: &types.BlockRange{From: forkPoint.Height + 1, To: revertedTo},
				Tip:      forkPoint,
			}
			if err := sub.Send(ctx, item); err != nil {
				return errors.WithStack(err)
			}
			chain = keep
			next = forkPoint.Height + 1
			continue
		}

		endRef := startRef
		if end > next {
			endRef, err = d.client.GetBlockRef(ctx, end)
			if err != nil {
				return errors.Wrapf(err, "failed to get block ref, height: %d", end)
			}
		}

		events, err := d.client.GetEvents(ctx, next, end)
		if err != nil {
			return errors.Wrapf(err, "failed to get events, from: %d, to: %d", next, end)
		}

		item := &types.StreamItem{Events: events, Tip: endRef}
		if err := sub.Send(ctx, item); err != nil {
			return errors.WithStack(err)
		}

		// Record delivered refs so a later hash-chain break can be resolved.
		chain = append(chain, startRef)
		for _, event := range events {
			if last := chain[len(chain)-1]; event.Block.Height > last.Height {
				chain = append(chain, event.Block)
			}
		}
		if last := chain[len(chain)-1]; endRef.Height > last.Height {
			chain = append(chain, endRef)
		}
		if len(chain) > maxReorgLookBack {
			chain = chain[len(chain)-maxReorgLookBack:]
		}

		next = end + 1
	}
}

// findForkPoint walks the delivered chain newest-first until a block still
// present on the ledger is found. Returns the fork point and the surviving
// prefix of the chain.
func (d *LedgerNodeDatasource) findForkPoint(ctx context.Context, chain []types.BlockRef) (types.BlockRef, []types.BlockRef, error) {
	for i := len(chain) - 1; i >= 0; i-- {
		remote, err := d.client.GetBlockRef(ctx, chain[i].Height)
		if err != nil {
			return types.BlockRef{}, nil, errors.Wrapf(err, "failed to get block ref, height: %d", chain[i].Height)
		}
		if remote.Hash == chain[i].Hash {
			return chain[i], chain[:i+1], nil
		}
	}
	return types.BlockRef{}, nil, errors.Wrap(errs.SomethingWentWrong, "reorg look back limit reached")
}
