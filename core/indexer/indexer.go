package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/datasources"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
)

const (
	// maxResubscribeAttempts bounds consecutive stream failures before the
	// indexer gives up.
	maxResubscribeAttempts = 10

	resubscribeBaseDelay = time.Second
	resubscribeMaxDelay  = time.Minute
)

// Indexer drives a Processor from the confirmed event stream: it resumes from
// the processor's cursor, dispatches revert markers before replayed events,
// and resubscribes with backoff when the stream fails.
type Indexer struct {
	Processor  Processor
	Datasource datasources.Datasource[*types.StreamItem]

	currentBlock types.BlockRef
	started      bool

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

var _ IndexerWorker = (*Indexer)(nil)

// New create new indexer
func New(processor Processor, datasource datasources.Datasource[*types.StreamItem]) *Indexer {
	return &Indexer{
		Processor:  processor,
		Datasource: datasource,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (i *Indexer) Shutdown() error {
	return i.ShutdownWithContext(context.Background())
}

func (i *Indexer) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return i.ShutdownWithContext(ctx)
}

func (i *Indexer) ShutdownWithContext(ctx context.Context) (err error) {
	i.quitOnce.Do(func() {
		close(i.quit)
		select {
		case <-i.done:
		case <-time.After(180 * time.Second):
			err = errors.Wrap(errs.Timeout, "indexer shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "indexer shutdown context canceled")
		}
	})
	return
}

func (i *Indexer) Run(ctx context.Context) (err error) {
	defer close(i.done)

	ctx = logger.WithContext(ctx,
		slog.String("package", "indexer"),
		slog.String("processor", i.Processor.Name()),
		slog.String("datasource", i.Datasource.Name()),
	)

	i.currentBlock, err = i.Processor.CurrentBlock(ctx)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return errors.Wrap(err, "can't init state, failed to get indexer current block")
		}
		// nothing applied yet, start from genesis
		i.currentBlock = types.BlockRef{}
		i.started = false
	} else {
		i.started = true
	}

	failures := 0
	for {
		select {
		case <-i.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping indexer")
			if err := i.Processor.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown processor", err)
				return errors.Wrap(err, "processor shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if err := i.consume(ctx); err != nil {
			failures++
			if failures >= maxResubscribeAttempts {
				return errors.Wrap(errors.Join(err, errs.Unavailable), "event stream failed too many times")
			}
			delay := resubscribeBaseDelay << (failures - 1)
			if delay > resubscribeMaxDelay {
				delay = resubscribeMaxDelay
			}
			logger.WarnContext(ctx, "Event stream failed, resubscribing",
				slogx.Error(err),
				slogx.Int("failures", failures),
				slogx.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-i.quit:
			case <-ctx.Done():
			}
			continue
		}
		failures = 0
	}
}

// consume subscribes from the block after the cursor and processes stream
// items until the subscription ends or fails.
func (i *Indexer) consume(ctx context.Context) error {
	from := int64(-1)
	if i.started {
		from = int64(i.currentBlock.Height) + 1
	}

	logger.InfoContext(ctx, "Subscribing to confirmed event stream", slog.Int64("from", from))
	ch := make(chan *types.StreamItem)
	subscription, err := i.Datasource.FetchAsync(ctx, from, -1, ch)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to event stream")
	}
	defer subscription.Unsubscribe()

	for {
		select {
		case <-i.quit:
			return nil
		case item := <-ch:
			if err := i.handleItem(ctx, item); err != nil {
				return errors.WithStack(err)
			}
		case <-subscription.Done():
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context done")
			}
			return nil
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case err := <-subscription.Err():
			if err != nil {
				return errors.Wrap(err, "got error while streaming events")
			}
		}
	}
}

func (i *Indexer) handleItem(ctx context.Context, item *types.StreamItem) error {
	if item.Reverted != nil {
		reverted := *item.Reverted
		logger.WarnContext(ctx, "Reverting data for reorganized block range",
			slogx.String("event", "revert_data"),
			slogx.Uint64("from", reverted.From),
			slogx.Uint64("to", reverted.To),
		)
		startAt := time.Now()
		if err := i.Processor.RevertData(ctx, reverted); err != nil {
			return errors.Wrap(err, "failed to revert data")
		}
		i.currentBlock = item.Tip
		logger.InfoContext(ctx, "Reverted data successfully",
			slogx.Uint64("current_block", i.currentBlock.Height),
			slogx.Duration("duration", time.Since(startAt)),
		)
		return nil
	}

	// The stream owns hash-chain validation; here we only enforce that
	// deliveries stay monotonic relative to the cursor.
	if i.started && item.Tip.Height <= i.currentBlock.Height {
		return errors.Wrapf(errs.InternalError, "stream went backwards, tip: %d, current: %d", item.Tip.Height, i.currentBlock.Height)
	}

	startAt := time.Now()
	ctx = logger.WithContext(ctx,
		slogx.Uint64("tip", item.Tip.Height),
		slog.Int("total_events", len(item.Events)),
	)

	logger.InfoContext(ctx, "Processing events")
	if err := i.Processor.Process(ctx, item.Events, item.Tip); err != nil {
		return errors.WithStack(err)
	}

	i.currentBlock = item.Tip
	i.started = true

	logger.InfoContext(ctx, "Processed events successfully",
		slogx.String("event", "processed_events"),
		slogx.Uint64("current_block", i.currentBlock.Height),
		slogx.Duration("duration", time.Since(startAt)),
	)
	return nil
}
