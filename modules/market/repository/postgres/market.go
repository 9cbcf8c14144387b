package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

var _ datagateway.MarketDataGateway = (*Repository)(nil)

const selectIndexRecordColumns = `
	asset_id, metadata_hash, name, description, creator, owner, royalty_bps,
	listing_id, seller, price, listing_status, fee_paid, listing_created_at_block,
	last_block_height, last_block_hash, last_prev_block_hash, last_tx_index,
	observed_at, dirty
`

func scanIndexRecord(row pgx.Row) (indexRecordModel, error) {
	var m indexRecordModel
	err := row.Scan(
		&m.AssetId, &m.MetadataHash, &m.Name, &m.Description, &m.Creator, &m.Owner, &m.RoyaltyBps,
		&m.ListingId, &m.Seller, &m.Price, &m.ListingStatus, &m.FeePaid, &m.ListingCreatedAtBlock,
		&m.LastBlockHeight, &m.LastBlockHash, &m.LastPrevBlockHash, &m.LastTxIndex,
		&m.ObservedAt, &m.Dirty,
	)
	return m, err
}

func (r *Repository) GetLatestBlock(ctx context.Context) (types.BlockRef, error) {
	var (
		height         int64
		hash, prevHash string
	)
	err := r.queryable().QueryRow(ctx, `SELECT height, hash, prev_hash FROM market_cursor`).Scan(&height, &hash, &prevHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.BlockRef{}, errors.WithStack(errs.NotFound)
		}
		return types.BlockRef{}, errors.Wrap(err, "error during query")
	}
	return types.BlockRef{
		Height:   uint64(height),
		Hash:     ethcommon.HexToHash(hash),
		PrevHash: ethcommon.HexToHash(prevHash),
	}, nil
}

func (r *Repository) SetLatestBlock(ctx context.Context, block types.BlockRef) error {
	_, err := r.queryable().Exec(ctx, `
		INSERT INTO market_cursor (singleton, height, hash, prev_hash, updated_at)
		VALUES (TRUE, $1, $2, $3, now())
		ON CONFLICT (singleton) DO UPDATE SET
			height = EXCLUDED.height,
			hash = EXCLUDED.hash,
			prev_hash = EXCLUDED.prev_hash,
			updated_at = now()
	`, int64(block.Height), block.Hash.Hex(), block.PrevHash.Hex())
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) GetIndexRecords(ctx context.Context) ([]*entity.IndexRecord, error) {
	rows, err := r.queryable().Query(ctx, `SELECT `+selectIndexRecordColumns+` FROM market_index_records`)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	records := make([]*entity.IndexRecord, 0)
	for rows.Next() {
		model, err := scanIndexRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error during scan")
		}
		record, err := mapIndexRecordModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse index record model")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iteration")
	}
	return records, nil
}

func (r *Repository) GetIndexRecord(ctx context.Context, assetId uint64) (*entity.IndexRecord, error) {
	row := r.queryable().QueryRow(ctx, `SELECT `+selectIndexRecordColumns+` FROM market_index_records WHERE asset_id = $1`, int64(assetId))
	model, err := scanIndexRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	record, err := mapIndexRecordModelToType(model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse index record model")
	}
	return record, nil
}

func (r *Repository) UpsertIndexRecords(ctx context.Context, records []*entity.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		model, err := mapIndexRecordTypeToModel(record)
		if err != nil {
			return errors.Wrapf(err, "failed to encode index record, asset: %d", record.Asset.AssetId)
		}
		batch.Queue(`
			INSERT INTO market_index_records (
				asset_id, metadata_hash, name, description, creator, owner, royalty_bps,
				listing_id, seller, price, listing_status, fee_paid, listing_created_at_block,
				last_block_height, last_block_hash, last_prev_block_hash, last_tx_index,
				observed_at, dirty
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (asset_id) DO UPDATE SET
				metadata_hash = EXCLUDED.metadata_hash,
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				creator = EXCLUDED.creator,
				owner = EXCLUDED.owner,
				royalty_bps = EXCLUDED.royalty_bps,
				listing_id = EXCLUDED.listing_id,
				seller = EXCLUDED.seller,
				price = EXCLUDED.price,
				listing_status = EXCLUDED.listing_status,
				fee_paid = EXCLUDED.fee_paid,
				listing_created_at_block = EXCLUDED.listing_created_at_block,
				last_block_height = EXCLUDED.last_block_height,
				last_block_hash = EXCLUDED.last_block_hash,
				last_prev_block_hash = EXCLUDED.last_prev_block_hash,
				last_tx_index = EXCLUDED.last_tx_index,
				observed_at = EXCLUDED.observed_at,
				dirty = EXCLUDED.dirty
		`,
			model.AssetId, model.MetadataHash, model.Name, model.Description, model.Creator, model.Owner, model.RoyaltyBps,
			model.ListingId, model.Seller, model.Price, model.ListingStatus, model.FeePaid, model.ListingCreatedAtBlock,
			model.LastBlockHeight, model.LastBlockHash, model.LastPrevBlockHash, model.LastTxIndex,
			model.ObservedAt, model.Dirty,
		)
	}
	results := r.sendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "error during batch exec")
		}
	}
	return nil
}

func (r *Repository) DeleteIndexRecords(ctx context.Context, assetIds []uint64) error {
	if len(assetIds) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(assetIds))
	for _, id := range assetIds {
		ids = append(ids, int64(id))
	}
	_, err := r.queryable().Exec(ctx, `DELETE FROM market_index_records WHERE asset_id = ANY($1)`, ids)
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) GetRecordSnapshots(ctx context.Context) ([]*entity.RecordSnapshot, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT asset_id, existed, `+selectIndexRecordColumns+`
		FROM market_record_snapshots
		ORDER BY asset_id, position
	`)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	snapshots := make([]*entity.RecordSnapshot, 0)
	for rows.Next() {
		var (
			snapshotAssetId int64
			existed         bool
			m               indexRecordModel
		)
		err := rows.Scan(
			&snapshotAssetId, &existed,
			&m.AssetId, &m.MetadataHash, &m.Name, &m.Description, &m.Creator, &m.Owner, &m.RoyaltyBps,
			&m.ListingId, &m.Seller, &m.Price, &m.ListingStatus, &m.FeePaid, &m.ListingCreatedAtBlock,
			&m.LastBlockHeight, &m.LastBlockHash, &m.LastPrevBlockHash, &m.LastTxIndex,
			&m.ObservedAt, &m.Dirty,
		)
		if err != nil {
			return nil, errors.Wrap(err, "error during scan")
		}
		snapshot := &entity.RecordSnapshot{AssetId: uint64(snapshotAssetId)}
		if existed {
			record, err := mapIndexRecordModelToType(m)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse record snapshot model")
			}
			snapshot.Record = record
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iteration")
	}
	return snapshots, nil
}

func (r *Repository) SetRecordSnapshots(ctx context.Context, assetId uint64, snapshots []*entity.RecordSnapshot) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM market_record_snapshots WHERE asset_id = $1`, int64(assetId))
	for position, snapshot := range snapshots {
		// zero row for a version where the asset did not exist yet
		model := indexRecordModel{
			AssetId:    int64(assetId),
			Creator:    []byte{},
			Owner:      []byte{},
			ObservedAt: pgtype.Timestamptz{Time: time.Unix(0, 0).UTC(), Valid: true},
		}
		if snapshot.Record != nil {
			var err error
			model, err = mapIndexRecordTypeToModel(snapshot.Record)
			if err != nil {
				return errors.Wrapf(err, "failed to encode record snapshot, asset: %d", assetId)
			}
		}
		batch.Queue(`
			INSERT INTO market_record_snapshots (
				asset_id, position, existed,
				metadata_hash, name, description, creator, owner, royalty_bps,
				listing_id, seller, price, listing_status, fee_paid, listing_created_at_block,
				last_block_height, last_block_hash, last_prev_block_hash, last_tx_index,
				observed_at, dirty
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		`,
			int64(assetId), int16(position), snapshot.Record != nil,
			model.MetadataHash, model.Name, model.Description, model.Creator, model.Owner, model.RoyaltyBps,
			model.ListingId, model.Seller, model.Price, model.ListingStatus, model.FeePaid, model.ListingCreatedAtBlock,
			model.LastBlockHeight, model.LastBlockHash, model.LastPrevBlockHash, model.LastTxIndex,
			model.ObservedAt, model.Dirty,
		)
	}
	results := r.sendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < len(snapshots)+1; i++ {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "error during batch exec")
		}
	}
	return nil
}

func (r *Repository) MarkIndexRecordsDirty(ctx context.Context, assetIds []uint64) error {
	if len(assetIds) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(assetIds))
	for _, id := range assetIds {
		ids = append(ids, int64(id))
	}
	_, err := r.queryable().Exec(ctx, `UPDATE market_index_records SET dirty = TRUE WHERE asset_id = ANY($1)`, ids)
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}
