package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

// Repository is an in-memory MarketDataGateway, used for the `memory`
// database option and in tests. Transactions are simulated by buffering
// writes until Commit.
type Repository struct {
	mu sync.Mutex

	records      map[uint64]*entity.IndexRecord
	snapshots    map[uint64][]*entity.RecordSnapshot
	cursor       *types.BlockRef
	indexerState *entity.IndexerState
}

var (
	_ datagateway.MarketDataGateway      = (*Repository)(nil)
	_ datagateway.IndexerInfoDataGateway = (*Repository)(nil)
)

func NewRepository() *Repository {
	return &Repository{
		records:   make(map[uint64]*entity.IndexRecord),
		snapshots: make(map[uint64][]*entity.RecordSnapshot),
	}
}

func (r *Repository) GetLatestBlock(ctx context.Context) (types.BlockRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == nil {
		return types.BlockRef{}, errors.WithStack(errs.NotFound)
	}
	return *r.cursor, nil
}

func (r *Repository) SetLatestBlock(ctx context.Context, block types.BlockRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = &block
	return nil
}

func (r *Repository) GetIndexRecords(ctx context.Context) ([]*entity.IndexRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*entity.IndexRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record.Copy())
	}
	return records, nil
}

func (r *Repository) GetIndexRecord(ctx context.Context, assetId uint64) (*entity.IndexRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[assetId]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return record.Copy(), nil
}

func (r *Repository) UpsertIndexRecords(ctx context.Context, records []*entity.IndexRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		r.records[record.Asset.AssetId] = record.Copy()
	}
	return nil
}

func (r *Repository) DeleteIndexRecords(ctx context.Context, assetIds []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assetId := range assetIds {
		delete(r.records, assetId)
	}
	return nil
}

func (r *Repository) MarkIndexRecordsDirty(ctx context.Context, assetIds []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assetId := range assetIds {
		if record, ok := r.records[assetId]; ok {
			record.Dirty = true
		}
	}
	return nil
}

func (r *Repository) GetRecordSnapshots(ctx context.Context) ([]*entity.RecordSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshots := make([]*entity.RecordSnapshot, 0)
	for assetId, history := range r.snapshots {
		for _, snapshot := range history {
			snapshots = append(snapshots, &entity.RecordSnapshot{
				AssetId: assetId,
				Record:  snapshot.Record.Copy(),
			})
		}
	}
	return snapshots, nil
}

func (r *Repository) SetRecordSnapshots(ctx context.Context, assetId uint64, snapshots []*entity.RecordSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(snapshots) == 0 {
		delete(r.snapshots, assetId)
		return nil
	}
	copied := make([]*entity.RecordSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		copied = append(copied, &entity.RecordSnapshot{
			AssetId: assetId,
			Record:  snapshot.Record.Copy(),
		})
	}
	r.snapshots[assetId] = copied
	return nil
}

func (r *Repository) GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexerState == nil {
		return entity.IndexerState{}, errors.WithStack(errs.NotFound)
	}
	return *r.indexerState, nil
}

func (r *Repository) SetIndexerState(ctx context.Context, state entity.IndexerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexerState = &state
	return nil
}

// BeginMarketTx buffers writes until Commit, mirroring the transactional
// contract of the Postgres repository.
func (r *Repository) BeginMarketTx(ctx context.Context) (datagateway.MarketDataGatewayWithTx, error) {
	return &txRepository{parent: r}, nil
}

type txOp func(ctx context.Context, r *Repository) error

type txRepository struct {
	parent *Repository
	ops    []txOp
	done   bool
}

var _ datagateway.MarketDataGatewayWithTx = (*txRepository)(nil)

func (t *txRepository) GetLatestBlock(ctx context.Context) (types.BlockRef, error) {
	return t.parent.GetLatestBlock(ctx)
}

func (t *txRepository) GetIndexRecords(ctx context.Context) ([]*entity.IndexRecord, error) {
	return t.parent.GetIndexRecords(ctx)
}

func (t *txRepository) GetIndexRecord(ctx context.Context, assetId uint64) (*entity.IndexRecord, error) {
	return t.parent.GetIndexRecord(ctx, assetId)
}

func (t *txRepository) SetLatestBlock(ctx context.Context, block types.BlockRef) error {
	t.ops = append(t.ops, func(ctx context.Context, r *Repository) error {
		return r.SetLatestBlock(ctx, block)
	})
	return nil
}

func (t *txRepository) UpsertIndexRecords(ctx context.Context, records []*entity.IndexRecord) error {
	copied := make([]*entity.IndexRecord, 0, len(records))
	for _, record := range records {
		copied = append(copied, record.Copy())
	}
	t.ops = append(t.ops, func(ctx context.Context, r *Repository) error {
		return r.UpsertIndexRecords(ctx, copied)
	})
	return nil
}

func (t *txRepository) DeleteIndexRecords(ctx context.Context, assetIds []uint64) error {
	t.ops = append(t.ops, func(ctx context.Context, r *Repository) error {
		return r.DeleteIndexRecords(ctx, assetIds)
	})
	return nil
}

func (t *txRepository) MarkIndexRecordsDirty(ctx context.Context, assetIds []uint64) error {
	t.ops = append(t.ops, func(ctx context.Context, r *Repository) error {
		return r.MarkIndexRecordsDirty(ctx, assetIds)
	})
	return nil
}

func (t *txRepository) GetRecordSnapshots(ctx context.Context) ([]*entity.RecordSnapshot, error) {
	return t.parent.GetRecordSnapshots(ctx)
}

func (t *txRepository) SetRecordSnapshots(ctx context.Context, assetId uint64, snapshots []*entity.RecordSnapshot) error {
	t.ops = append(t.ops, func(ctx context.Context, r *Repository) error {
		return r.SetRecordSnapshots(ctx, assetId, snapshots)
	})
	return nil
}

func (t *txRepository) BeginMarketTx(ctx context.Context) (datagateway.MarketDataGatewayWithTx, error) {
	return nil, errors.New("nested transactions are not supported")
}

func (t *txRepository) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	for _, op := range t.ops {
		if err := op(ctx, t.parent); err != nil {
			return errors.WithStack(err)
		}
	}
	t.done = true
	t.ops = nil
	return nil
}

func (t *txRepository) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	return nil
}
