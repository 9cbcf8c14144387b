package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/google/uuid"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
)

type SubmitMintParams struct {
	Creator      ethcommon.Address
	MetadataHash string
	// RoyaltyBps nil applies the marketplace default.
	RoyaltyBps *uint16
}

// SubmitMint validates and submits a mint intent. The asset id is assigned by
// the ledger, so no mirror record exists to mark dirty yet.
func (u *Usecase) SubmitMint(ctx context.Context, params SubmitMintParams) (ledger.PendingReceipt, error) {
	if params.Creator == (ethcommon.Address{}) {
		return ledger.PendingReceipt{}, errors.Wrap(errs.ArgumentRequired, "creator is required")
	}
	if err := blobstore.ValidateContentHash(params.MetadataHash); err != nil {
		return ledger.PendingReceipt{}, errors.Wrap(err, "invalid metadata hash")
	}
	royaltyBps := u.feeCalculator.DefaultRoyaltyBps()
	if params.RoyaltyBps != nil {
		if err := u.feeCalculator.ValidateRoyaltyBps(*params.RoyaltyBps); err != nil {
			return ledger.PendingReceipt{}, errors.WithStack(err)
		}
		royaltyBps = *params.RoyaltyBps
	}

	receipt, err := u.ledgerClient.Submit(ctx, ledger.Intent{
		CorrelationId: uuid.New(),
		Kind:          ledger.IntentKindMint,
		Payer:         params.Creator,
		MetadataHash:  params.MetadataHash,
		RoyaltyBps:    royaltyBps,
	})
	if err != nil {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to submit mint intent")
	}
	return receipt, nil
}

type SubmitListParams struct {
	AssetId uint64
	Seller  ethcommon.Address
	Price   uint128.Uint128
}

// SubmitList validates a list intent against the mirror, attaches the listing
// fee, submits it, and marks the asset dirty pending confirmation.
func (u *Usecase) SubmitList(ctx context.Context, params SubmitListParams) (ledger.PendingReceipt, error) {
	if params.Seller == (ethcommon.Address{}) {
		return ledger.PendingReceipt{}, errors.Wrap(errs.ArgumentRequired, "seller is required")
	}
	if err := u.feeCalculator.ValidateListingPrice(params.Price); err != nil {
		return ledger.PendingReceipt{}, errors.WithStack(err)
	}

	// cheap local checks against the mirror; the ledger remains the authority
	record, err := u.index.Get(params.AssetId)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to read mirror")
	}
	if err == nil {
		if record.Asset.Owner != params.Seller {
			return ledger.PendingReceipt{}, errors.Wrapf(errs.InvalidArgument, "seller does not own asset %d", params.AssetId)
		}
		if record.Listing != nil && record.Listing.Status == entity.ListingStatusActive {
			return ledger.PendingReceipt{}, errors.Wrapf(errs.InvalidArgument, "asset %d already has an active listing", params.AssetId)
		}
	}

	receipt, err := u.ledgerClient.Submit(ctx, ledger.Intent{
		CorrelationId: uuid.New(),
		Kind:          ledger.IntentKindList,
		Payer:         params.Seller,
		AssetId:       params.AssetId,
		Price:         params.Price,
		Value:         u.feeCalculator.ListingFee(),
	})
	if err != nil {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to submit list intent")
	}

	u.markDirty(ctx, params.AssetId)
	return receipt, nil
}

type SubmitBuyParams struct {
	AssetId uint64
	Buyer   ethcommon.Address
	// Price is the price the buyer saw; the ledger rejects the intent if the
	// listing no longer matches.
	Price uint128.Uint128
}

func (u *Usecase) SubmitBuy(ctx context.Context, params SubmitBuyParams) (ledger.PendingReceipt, error) {
	if params.Buyer == (ethcommon.Address{}) {
		return ledger.PendingReceipt{}, errors.Wrap(errs.ArgumentRequired, "buyer is required")
	}
	// Purchase validation goes through the fresh-read path so a dirty mirror
	// record is repaired from the ledger before the buyer commits funds.
	record, err := u.GetAssetFresh(ctx, params.AssetId)
	if err != nil {
		return ledger.PendingReceipt{}, errors.Wrapf(err, "can't validate purchase, asset: %d", params.AssetId)
	}
	listing := record.Listing
	if listing == nil || listing.Status != entity.ListingStatusActive {
		return ledger.PendingReceipt{}, errors.Wrapf(errs.InvalidArgument, "asset %d has no active listing", params.AssetId)
	}
	if err := u.feeCalculator.ValidateSalePrice(params.Price, listing.Price); err != nil {
		return ledger.PendingReceipt{}, errors.WithStack(err)
	}

	receipt, err := u.ledgerClient.Submit(ctx, ledger.Intent{
		CorrelationId: uuid.New(),
		Kind:          ledger.IntentKindBuy,
		Payer:         params.Buyer,
		AssetId:       params.AssetId,
		Price:         params.Price,
		Value:         params.Price,
	})
	if err != nil {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to submit buy intent")
	}

	u.markDirty(ctx, params.AssetId)
	return receipt, nil
}

type SubmitCancelParams struct {
	AssetId uint64
	Seller  ethcommon.Address
}

func (u *Usecase) SubmitCancel(ctx context.Context, params SubmitCancelParams) (ledger.PendingReceipt, error) {
	if params.Seller == (ethcommon.Address{}) {
		return ledger.PendingReceipt{}, errors.Wrap(errs.ArgumentRequired, "seller is required")
	}

	record, err := u.index.Get(params.AssetId)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to read mirror")
	}
	if err == nil {
		listing := record.Listing
		if listing == nil || listing.Status != entity.ListingStatusActive {
			return ledger.PendingReceipt{}, errors.Wrapf(errs.InvalidArgument, "asset %d has no active listing", params.AssetId)
		}
		if listing.Seller != params.Seller {
			return ledger.PendingReceipt{}, errors.Wrapf(errs.InvalidArgument, "only the seller can cancel listing %d", listing.ListingId)
		}
	}

	receipt, err := u.ledgerClient.Submit(ctx, ledger.Intent{
		CorrelationId: uuid.New(),
		Kind:          ledger.IntentKindCancel,
		Payer:         params.Seller,
		AssetId:       params.AssetId,
	})
	if err != nil {
		return ledger.PendingReceipt{}, errors.Wrap(err, "failed to submit cancel intent")
	}

	u.markDirty(ctx, params.AssetId)
	return receipt, nil
}

// markDirty flags the asset in the in-memory index and storage. Failures are
// logged, not returned: the submission already succeeded and the mirror will
// converge through the event stream regardless.
func (u *Usecase) markDirty(ctx context.Context, assetId uint64) {
	if !u.index.MarkDirty(assetId) {
		return
	}
	if err := u.marketDg.MarkIndexRecordsDirty(ctx, []uint64{assetId}); err != nil {
		logger.WarnContext(ctx, "Failed to persist dirty mark", slogx.Uint64("asset_id", assetId), slogx.Error(err))
	}
}
