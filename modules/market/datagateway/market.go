package datagateway

import (
	"context"

	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

type MarketDataGateway interface {
	MarketReaderDataGateway
	MarketWriterDataGateway

	// BeginMarketTx returns a new MarketDataGateway with transaction enabled. All write operations performed in this datagateway must be committed to persist changes.
	BeginMarketTx(ctx context.Context) (MarketDataGatewayWithTx, error)
}

type MarketDataGatewayWithTx interface {
	MarketDataGateway
	Tx
}

type MarketReaderDataGateway interface {
	// GetLatestBlock returns the cursor the mirror has been applied up to.
	// Returns errs.NotFound if nothing has been indexed yet.
	GetLatestBlock(ctx context.Context) (types.BlockRef, error)

	// GetIndexRecords returns every persisted index record, for seeding the
	// in-memory index at startup.
	GetIndexRecords(ctx context.Context) ([]*entity.IndexRecord, error)

	// GetIndexRecord returns the persisted record for assetId. Returns
	// errs.NotFound if the asset has never been mirrored.
	GetIndexRecord(ctx context.Context, assetId uint64) (*entity.IndexRecord, error)

	// GetRecordSnapshots returns every persisted snapshot, ordered oldest
	// first within each asset, for seeding the in-memory index at startup.
	GetRecordSnapshots(ctx context.Context) ([]*entity.RecordSnapshot, error)
}

type MarketWriterDataGateway interface {
	UpsertIndexRecords(ctx context.Context, records []*entity.IndexRecord) error
	DeleteIndexRecords(ctx context.Context, assetIds []uint64) error
	MarkIndexRecordsDirty(ctx context.Context, assetIds []uint64) error
	SetLatestBlock(ctx context.Context, block types.BlockRef) error

	// SetRecordSnapshots replaces the retained snapshot history for assetId.
	// An empty slice clears it.
	SetRecordSnapshots(ctx context.Context, assetId uint64, snapshots []*entity.RecordSnapshot) error
}
