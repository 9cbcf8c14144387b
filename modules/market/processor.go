package market

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/indexer"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	marketindex "github.com/mintline/marketplace-indexer/modules/market/index"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
	"github.com/mintline/marketplace-indexer/pkg/reportingclient"
)

var _ indexer.Processor = (*Processor)(nil)

// Processor folds the confirmed marketplace event stream into the
// reconciliation index and writes the mirror through to storage.
type Processor struct {
	marketDg        datagateway.MarketDataGateway
	indexerInfoDg   datagateway.IndexerInfoDataGateway
	index           *marketindex.Index
	network         common.Network
	reportingClient *reportingclient.ReportingClient
	cleanupFuncs    []func(context.Context) error

	totalEvents uint64
}

func NewProcessor(marketDg datagateway.MarketDataGateway, indexerInfoDg datagateway.IndexerInfoDataGateway, index *marketindex.Index, network common.Network, reportingClient *reportingclient.ReportingClient, cleanupFuncs []func(context.Context) error) *Processor {
	return &Processor{
		marketDg:        marketDg,
		indexerInfoDg:   indexerInfoDg,
		index:           index,
		network:         network,
		reportingClient: reportingClient,
		cleanupFuncs:    cleanupFuncs,
	}
}

func (p *Processor) Name() string {
	return common.ModuleMarket.String()
}

// VerifyStates checks schema and network compatibility, then seeds the
// in-memory index from storage.
func (p *Processor) VerifyStates(ctx context.Context) error {
	indexerState, err := p.indexerInfoDg.GetLatestIndexerState(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get latest indexer state")
	}
	if errors.Is(err, errs.NotFound) {
		if err := p.indexerInfoDg.SetIndexerState(ctx, entity.IndexerState{
			ClientVersion: Version,
			Network:       p.network,
			DBVersion:     DBVersion,
		}); err != nil {
			return errors.Wrap(err, "failed to set indexer state")
		}
	} else {
		if indexerState.DBVersion != DBVersion {
			return errors.Wrapf(errs.ConflictSetting, "db version mismatch: current version is %d. Please migrate to version %d", indexerState.DBVersion, DBVersion)
		}
		if indexerState.Network != p.network {
			return errors.Wrapf(errs.ConflictSetting, "network mismatch: latest indexed network is %q, configured network is %q. If you want to change the network, please reset the database", indexerState.Network, p.network)
		}
	}

	records, err := p.marketDg.GetIndexRecords(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load index records")
	}
	snapshots, err := p.marketDg.GetRecordSnapshots(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load record snapshots")
	}
	p.index.Load(records, snapshots)
	logger.InfoContext(ctx, "Seeded reconciliation index from storage", slogx.Int("records", len(records)), slogx.Int("snapshots", len(snapshots)))

	if p.reportingClient != nil {
		if err := p.reportingClient.SubmitNodeReport(ctx, p.Name(), p.network); err != nil {
			logger.WarnContext(ctx, "Failed to submit node report", slogx.Error(err))
		}
	}
	return nil
}

func (p *Processor) CurrentBlock(ctx context.Context) (types.BlockRef, error) {
	cursor, err := p.marketDg.GetLatestBlock(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			if start, ok := startingBlock[p.network]; ok && start.Height > 0 {
				return start, nil
			}
			return types.BlockRef{}, errors.WithStack(errs.NotFound)
		}
		return types.BlockRef{}, errors.Wrap(err, "failed to get latest block")
	}
	return cursor, nil
}

func (p *Processor) Process(ctx context.Context, events []*types.ConfirmedEvent, tip types.BlockRef) error {
	changed := make(map[uint64]struct{})
	for _, event := range events {
		if err := p.index.Apply(event); err != nil {
			if errors.Is(err, errs.OutOfOrder) {
				// late duplicate from the stream, safe to discard
				logger.WarnContext(ctx, "Discarding out-of-order event",
					slogx.Uint64("asset_id", event.AssetId),
					slogx.Uint64("block", event.Block.Height),
					slogx.Error(err),
				)
				continue
			}
			return errors.Wrapf(err, "failed to apply event, asset: %d", event.AssetId)
		}
		changed[event.AssetId] = struct{}{}
	}

	records := make([]*entity.IndexRecord, 0, len(changed))
	for assetId := range changed {
		record, err := p.index.Get(assetId)
		if err != nil {
			return errors.Wrapf(err, "applied record vanished, asset: %d", assetId)
		}
		records = append(records, record)
	}

	tx, err := p.marketDg.BeginMarketTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			logger.WarnContext(ctx, "Failed to rollback transaction", slogx.Error(rollbackErr))
		}
	}()

	if err := tx.UpsertIndexRecords(ctx, records); err != nil {
		return errors.Wrap(err, "failed to upsert index records")
	}
	for assetId := range changed {
		if err := tx.SetRecordSnapshots(ctx, assetId, p.index.Snapshots(assetId)); err != nil {
			return errors.Wrapf(err, "failed to persist record snapshots, asset: %d", assetId)
		}
	}
	if err := tx.SetLatestBlock(ctx, tip); err != nil {
		return errors.Wrap(err, "failed to set latest block")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	p.totalEvents += uint64(len(events))
	if p.reportingClient != nil {
		if err := p.reportingClient.SubmitCursorReport(ctx, reportingclient.SubmitCursorReportPayload{
			Type:          p.Name(),
			ClientVersion: Version,
			DBVersion:     DBVersion,
			Network:       p.network,
			BlockHeight:   tip.Height,
			BlockHash:     tip.Hash,
			TotalEvents:   p.totalEvents,
		}); err != nil {
			logger.WarnContext(ctx, "Failed to submit cursor report", slogx.Error(err))
		}
	}
	return nil
}

func (p *Processor) RevertData(ctx context.Context, reverted types.BlockRange) error {
	outcome := p.index.Revert(reverted)

	restored := make([]*entity.IndexRecord, 0, len(outcome.Restored))
	for _, assetId := range outcome.Restored {
		record, err := p.index.Get(assetId)
		if err != nil {
			return errors.Wrapf(err, "restored record vanished, asset: %d", assetId)
		}
		restored = append(restored, record)
	}

	tx, err := p.marketDg.BeginMarketTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			logger.WarnContext(ctx, "Failed to rollback transaction", slogx.Error(rollbackErr))
		}
	}()

	if err := tx.UpsertIndexRecords(ctx, restored); err != nil {
		return errors.Wrap(err, "failed to upsert restored records")
	}
	if err := tx.DeleteIndexRecords(ctx, outcome.Deleted); err != nil {
		return errors.Wrap(err, "failed to delete reverted records")
	}
	if err := tx.MarkIndexRecordsDirty(ctx, outcome.Dirtied); err != nil {
		return errors.Wrap(err, "failed to mark records dirty")
	}
	// Restores consumed part of the history; deletes and dirty marks all of it.
	for _, assetId := range outcome.Restored {
		if err := tx.SetRecordSnapshots(ctx, assetId, p.index.Snapshots(assetId)); err != nil {
			return errors.Wrapf(err, "failed to persist record snapshots, asset: %d", assetId)
		}
	}
	cleared := make([]uint64, 0, len(outcome.Deleted)+len(outcome.Dirtied))
	cleared = append(cleared, outcome.Deleted...)
	cleared = append(cleared, outcome.Dirtied...)
	for _, assetId := range cleared {
		if err := tx.SetRecordSnapshots(ctx, assetId, nil); err != nil {
			return errors.Wrapf(err, "failed to clear record snapshots, asset: %d", assetId)
		}
	}
	// The hash of the pre-fork block is unknown here; the next processed batch
	// overwrites the cursor with a full ref.
	if err := tx.SetLatestBlock(ctx, types.BlockRef{Height: reverted.From - 1}); err != nil {
		return errors.Wrap(err, "failed to set latest block")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Reverted mirror state",
		slogx.Uint64("from", reverted.From),
		slogx.Uint64("to", reverted.To),
		slogx.Int("restored", len(outcome.Restored)),
		slogx.Int("deleted", len(outcome.Deleted)),
		slogx.Int("dirtied", len(outcome.Dirtied)),
	)
	return nil
}

func (p *Processor) Shutdown(ctx context.Context) error {
	var errList []error
	for _, cleanup := range p.cleanupFuncs {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := cleanup(ctx); err != nil {
			errList = append(errList, err)
		}
		cancel()
	}
	return errors.Wrap(errors.Join(errList...), "error during cleanup")
}
