package postgres

import (
	"time"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

func uint128FromNumeric(src pgtype.Numeric) (*uint128.Uint128, error) {
	if !src.Valid {
		return nil, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result, err := uint128.FromString(string(bytes))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &result, nil
}

func numericFromUint128(src *uint128.Uint128) (pgtype.Numeric, error) {
	if src == nil {
		return pgtype.Numeric{}, nil
	}
	bytes := []byte(src.String())
	var result pgtype.Numeric
	err := result.UnmarshalJSON(bytes)
	if err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

type indexRecordModel struct {
	AssetId               int64
	MetadataHash          string
	Name                  string
	Description           string
	Creator               []byte
	Owner                 []byte
	RoyaltyBps            int16
	ListingId             pgtype.Int8
	Seller                []byte
	Price                 pgtype.Numeric
	ListingStatus         pgtype.Text
	FeePaid               pgtype.Numeric
	ListingCreatedAtBlock pgtype.Int8
	LastBlockHeight       int64
	LastBlockHash         string
	LastPrevBlockHash     string
	LastTxIndex           int32
	ObservedAt            pgtype.Timestamptz
	Dirty                 bool
}

func mapIndexRecordModelToType(src indexRecordModel) (*entity.IndexRecord, error) {
	var observedAt time.Time
	if src.ObservedAt.Valid {
		observedAt = src.ObservedAt.Time.UTC()
	}

	record := &entity.IndexRecord{
		Asset: entity.Asset{
			AssetId:      uint64(src.AssetId),
			MetadataHash: src.MetadataHash,
			Name:         src.Name,
			Description:  src.Description,
			Creator:      ethcommon.BytesToAddress(src.Creator),
			Owner:        ethcommon.BytesToAddress(src.Owner),
			RoyaltyBps:   uint16(src.RoyaltyBps),
		},
		LastConfirmedBlock: types.BlockRef{
			Height:   uint64(src.LastBlockHeight),
			Hash:     ethcommon.HexToHash(src.LastBlockHash),
			PrevHash: ethcommon.HexToHash(src.LastPrevBlockHash),
		},
		LastTxIndex: uint32(src.LastTxIndex),
		ObservedAt:  observedAt,
		Dirty:       src.Dirty,
	}

	if src.ListingId.Valid {
		price, err := uint128FromNumeric(src.Price)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse listing price")
		}
		feePaid, err := uint128FromNumeric(src.FeePaid)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse listing fee paid")
		}
		if price == nil || feePaid == nil {
			return nil, errors.New("listing row is missing price or fee")
		}
		record.Listing = &entity.Listing{
			ListingId:      uint64(src.ListingId.Int64),
			Seller:         ethcommon.BytesToAddress(src.Seller),
			Price:          *price,
			Status:         entity.ListingStatus(src.ListingStatus.String),
			FeePaid:        *feePaid,
			CreatedAtBlock: uint64(src.ListingCreatedAtBlock.Int64),
		}
	}
	return record, nil
}

func mapIndexRecordTypeToModel(src *entity.IndexRecord) (indexRecordModel, error) {
	model := indexRecordModel{
		AssetId:           int64(src.Asset.AssetId),
		MetadataHash:      src.Asset.MetadataHash,
		Name:              src.Asset.Name,
		Description:       src.Asset.Description,
		Creator:           src.Asset.Creator.Bytes(),
		Owner:             src.Asset.Owner.Bytes(),
		RoyaltyBps:        int16(src.Asset.RoyaltyBps),
		LastBlockHeight:   int64(src.LastConfirmedBlock.Height),
		LastBlockHash:     src.LastConfirmedBlock.Hash.Hex(),
		LastPrevBlockHash: src.LastConfirmedBlock.PrevHash.Hex(),
		LastTxIndex:       int32(src.LastTxIndex),
		ObservedAt:        pgtype.Timestamptz{Time: src.ObservedAt.UTC(), Valid: true},
		Dirty:             src.Dirty,
	}

	if listing := src.Listing; listing != nil {
		price, err := numericFromUint128(&listing.Price)
		if err != nil {
			return indexRecordModel{}, errors.Wrap(err, "failed to encode listing price")
		}
		feePaid, err := numericFromUint128(&listing.FeePaid)
		if err != nil {
			return indexRecordModel{}, errors.Wrap(err, "failed to encode listing fee paid")
		}
		model.ListingId = pgtype.Int8{Int64: int64(listing.ListingId), Valid: true}
		model.Seller = listing.Seller.Bytes()
		model.Price = price
		model.ListingStatus = pgtype.Text{String: listing.Status.String(), Valid: true}
		model.FeePaid = feePaid
		model.ListingCreatedAtBlock = pgtype.Int8{Int64: int64(listing.CreatedAtBlock), Valid: true}
	}
	return model, nil
}
