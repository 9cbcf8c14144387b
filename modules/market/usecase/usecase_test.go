package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/mintline/marketplace-indexer/modules/market/fees"
	marketindex "github.com/mintline/marketplace-indexer/modules/market/index"
	"github.com/mintline/marketplace-indexer/modules/market/repository/memory"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seller = ethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	buyer  = ethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	validMetadataHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// fakeLedgerClient records submitted intents and serves canned asset state.
type fakeLedgerClient struct {
	submitted   []ledger.Intent
	submitErr   error
	assetStates map[uint64]*ledger.AssetState
	stateErr    error
}

var _ ledger.Client = (*fakeLedgerClient)(nil)

func (f *fakeLedgerClient) Submit(ctx context.Context, intent ledger.Intent) (ledger.PendingReceipt, error) {
	if f.submitErr != nil {
		return ledger.PendingReceipt{}, f.submitErr
	}
	f.submitted = append(f.submitted, intent)
	return ledger.PendingReceipt{CorrelationId: intent.CorrelationId}, nil
}

func (f *fakeLedgerClient) GetAssetState(ctx context.Context, assetId uint64) (*ledger.AssetState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.assetStates[assetId], nil
}

func (f *fakeLedgerClient) GetTip(ctx context.Context) (types.BlockRef, error) {
	return types.BlockRef{}, nil
}

func (f *fakeLedgerClient) GetBlockRef(ctx context.Context, height uint64) (types.BlockRef, error) {
	return types.BlockRef{Height: height}, nil
}

func (f *fakeLedgerClient) GetEvents(ctx context.Context, from, to uint64) ([]*types.ConfirmedEvent, error) {
	return nil, nil
}

// fakeBlobStore keeps blobs in a map.
type fakeBlobStore struct {
	blobs map[string][]byte
}

var _ blobstore.Store = (*fakeBlobStore)(nil)

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	contentHash := blobstore.ContentHash(data)
	f.blobs[contentHash] = data
	return contentHash, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	data, ok := f.blobs[contentHash]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return data, nil
}

func newTestUsecase(t *testing.T) (*Usecase, *fakeLedgerClient, *marketindex.Index, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	idx := marketindex.New()
	client := &fakeLedgerClient{assetStates: make(map[uint64]*ledger.AssetState)}
	calc, err := fees.NewCalculator("0.025", 250)
	require.NoError(t, err)
	u := New(repo, idx, client, calc, newFakeBlobStore(), 0)
	return u, client, idx, repo
}

func seedMintedAsset(t *testing.T, idx *marketindex.Index, assetId uint64) {
	t.Helper()
	require.NoError(t, idx.Apply(&types.ConfirmedEvent{
		Kind:    types.EventKindMinted,
		Block:   types.BlockRef{Height: 10},
		AssetId: assetId,
		Minted: &types.MintedPayload{
			Creator:      seller,
			MetadataHash: validMetadataHash,
			RoyaltyBps:   250,
		},
	}))
}

func seedListedAsset(t *testing.T, idx *marketindex.Index, assetId uint64, price uint64) {
	t.Helper()
	seedMintedAsset(t, idx, assetId)
	require.NoError(t, idx.Apply(&types.ConfirmedEvent{
		Kind:    types.EventKindListed,
		Block:   types.BlockRef{Height: 11},
		AssetId: assetId,
		Listed: &types.ListedPayload{
			ListingId: 7,
			Seller:    seller,
			Price:     uint128.From64(price),
			FeePaid:   uint128.From64(25),
		},
	}))
}

func TestSubmitMint(t *testing.T) {
	t.Run("applies default royalty", func(t *testing.T) {
		u, client, _, _ := newTestUsecase(t)
		_, err := u.SubmitMint(context.Background(), SubmitMintParams{
			Creator:      seller,
			MetadataHash: validMetadataHash,
		})
		require.NoError(t, err)
		require.Len(t, client.submitted, 1)
		assert.Equal(t, ledger.IntentKindMint, client.submitted[0].Kind)
		assert.Equal(t, uint16(250), client.submitted[0].RoyaltyBps)
	})

	t.Run("rejects malformed metadata hash", func(t *testing.T) {
		u, client, _, _ := newTestUsecase(t)
		_, err := u.SubmitMint(context.Background(), SubmitMintParams{
			Creator:      seller,
			MetadataHash: "not-a-hash",
		})
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Empty(t, client.submitted)
	})

	t.Run("rejects royalty above cap", func(t *testing.T) {
		u, client, _, _ := newTestUsecase(t)
		royalty := uint16(10001)
		_, err := u.SubmitMint(context.Background(), SubmitMintParams{
			Creator:      seller,
			MetadataHash: validMetadataHash,
			RoyaltyBps:   &royalty,
		})
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Empty(t, client.submitted)
	})
}

func TestSubmitList(t *testing.T) {
	t.Run("attaches listing fee and marks dirty", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)

		_, err := u.SubmitList(context.Background(), SubmitListParams{
			AssetId: 1,
			Seller:  seller,
			Price:   uint128.From64(1000),
		})
		require.NoError(t, err)
		require.Len(t, client.submitted, 1)
		assert.Equal(t, uint128.From64(25_000_000_000_000_000), client.submitted[0].Value)

		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.True(t, record.Dirty)
	})

	t.Run("rejects non-owner locally", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)

		_, err := u.SubmitList(context.Background(), SubmitListParams{
			AssetId: 1,
			Seller:  buyer,
			Price:   uint128.From64(1000),
		})
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Empty(t, client.submitted)
	})

	t.Run("rejects zero price", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)

		_, err := u.SubmitList(context.Background(), SubmitListParams{
			AssetId: 1,
			Seller:  seller,
			Price:   uint128.Zero,
		})
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Empty(t, client.submitted)
	})

	t.Run("passes through ledger rejection", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)
		client.submitErr = &ledger.SubmissionRejectedError{Code: ledger.RejectCodeNotOwner, Reason: "not owner"}

		_, err := u.SubmitList(context.Background(), SubmitListParams{
			AssetId: 1,
			Seller:  seller,
			Price:   uint128.From64(1000),
		})
		var rejected *ledger.SubmissionRejectedError
		assert.ErrorAs(t, err, &rejected)
	})
}

func TestSubmitBuy(t *testing.T) {
	t.Run("submits with value equal to price", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedListedAsset(t, idx, 1, 1000)

		_, err := u.SubmitBuy(context.Background(), SubmitBuyParams{
			AssetId: 1,
			Buyer:   buyer,
			Price:   uint128.From64(1000),
		})
		require.NoError(t, err)
		require.Len(t, client.submitted, 1)
		assert.Equal(t, uint128.From64(1000), client.submitted[0].Value)
	})

	t.Run("rejects price mismatch against mirror", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedListedAsset(t, idx, 1, 1000)

		_, err := u.SubmitBuy(context.Background(), SubmitBuyParams{
			AssetId: 1,
			Buyer:   buyer,
			Price:   uint128.From64(900),
		})
		assert.ErrorIs(t, err, errs.PriceMismatch)
		assert.Empty(t, client.submitted)
	})

	t.Run("rejects when no active listing", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)

		_, err := u.SubmitBuy(context.Background(), SubmitBuyParams{
			AssetId: 1,
			Buyer:   buyer,
			Price:   uint128.From64(1000),
		})
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Empty(t, client.submitted)
	})
}

func TestSubmitCancel(t *testing.T) {
	u, client, idx, _ := newTestUsecase(t)
	seedListedAsset(t, idx, 1, 1000)

	_, err := u.SubmitCancel(context.Background(), SubmitCancelParams{AssetId: 1, Seller: buyer})
	assert.ErrorIs(t, err, errs.InvalidArgument)
	assert.Empty(t, client.submitted)

	_, err = u.SubmitCancel(context.Background(), SubmitCancelParams{AssetId: 1, Seller: seller})
	require.NoError(t, err)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, ledger.IntentKindCancel, client.submitted[0].Kind)
}

func TestGetAssetFresh(t *testing.T) {
	t.Run("returns clean record without touching the ledger", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)
		client.stateErr = errors.New("ledger must not be called")

		record, err := u.GetAssetFresh(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, seller, record.Asset.Owner)
	})

	t.Run("repairs dirty record from the ledger", func(t *testing.T) {
		u, client, idx, repo := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)
		require.True(t, idx.MarkDirty(1))
		client.assetStates[1] = &ledger.AssetState{
			AssetId:      1,
			MetadataHash: validMetadataHash,
			Creator:      seller,
			Owner:        buyer, // sale confirmed on the ledger, mirror behind
			RoyaltyBps:   250,
			Listing: &ledger.ListingState{
				ListingId: 7,
				Seller:    seller,
				Price:     uint128.From64(1000),
				Status:    ledger.ListingStatusSold,
				FeePaid:   uint128.From64(25),
			},
			Block: types.BlockRef{Height: 20},
		}

		record, err := u.GetAssetFresh(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, buyer, record.Asset.Owner)
		assert.Equal(t, entity.ListingStatusSold, record.Listing.Status)
		assert.False(t, record.Dirty)

		// repair persisted
		persisted, err := repo.GetIndexRecord(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, buyer, persisted.Asset.Owner)
	})

	t.Run("repairs clean record older than the freshness threshold", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		u.freshnessThreshold = time.Nanosecond
		seedMintedAsset(t, idx, 1)
		client.assetStates[1] = &ledger.AssetState{
			AssetId:      1,
			MetadataHash: validMetadataHash,
			Creator:      seller,
			Owner:        buyer,
			RoyaltyBps:   250,
			Block:        types.BlockRef{Height: 20},
		}

		time.Sleep(time.Millisecond)
		record, err := u.GetAssetFresh(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, buyer, record.Asset.Owner)
	})

	t.Run("returns stale read when ledger is unreachable", func(t *testing.T) {
		u, client, idx, _ := newTestUsecase(t)
		seedMintedAsset(t, idx, 1)
		require.True(t, idx.MarkDirty(1))
		client.stateErr = errors.New("connection refused")

		_, err := u.GetAssetFresh(context.Background(), 1)
		assert.ErrorIs(t, err, errs.StaleRead)
	})

	t.Run("not found for unknown asset", func(t *testing.T) {
		u, _, _, _ := newTestUsecase(t)
		_, err := u.GetAssetFresh(context.Background(), 99)
		assert.ErrorIs(t, err, errs.NotFound)
	})
}

func TestMetadataRoundTrip(t *testing.T) {
	u, _, _, _ := newTestUsecase(t)
	ctx := context.Background()

	contentHash, err := u.StoreMetadata(ctx, StoreMetadataParams{
		Name:        "Test Asset",
		Description: "a test asset",
		Image:       "ipfs://x",
	})
	require.NoError(t, err)

	got, err := u.GetMetadata(ctx, contentHash)
	require.NoError(t, err)
	assert.Equal(t, blobstore.ContentHash(got), contentHash)

	var doc MetadataDocument
	require.NoError(t, json.Unmarshal(got, &doc))
	assert.Equal(t, "Test Asset", doc.Name)
	assert.Equal(t, "ipfs://x", doc.Image)

	_, err = u.StoreMetadata(ctx, StoreMetadataParams{Description: "missing name"})
	assert.ErrorIs(t, err, errs.ArgumentRequired)
}
