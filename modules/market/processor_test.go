package market

import (
	"context"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	marketindex "github.com/mintline/marketplace-indexer/modules/market/index"
	"github.com/mintline/marketplace-indexer/modules/market/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCreator = ethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testBuyer   = ethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func testBlockRef(height uint64) types.BlockRef {
	return types.BlockRef{
		Height:   height,
		Hash:     ethcommon.BytesToHash([]byte{0xff, byte(height)}),
		PrevHash: ethcommon.BytesToHash([]byte{0xff, byte(height - 1)}),
	}
}

func newTestProcessor(t *testing.T) (*Processor, *memory.Repository, *marketindex.Index) {
	t.Helper()
	repo := memory.NewRepository()
	idx := marketindex.New()
	processor := NewProcessor(repo, repo, idx, common.NetworkDevnet, nil, nil)
	require.NoError(t, processor.VerifyStates(context.Background()))
	return processor, repo, idx
}

func mintListBuyEvents(assetId uint64) []*types.ConfirmedEvent {
	return []*types.ConfirmedEvent{
		{
			Kind:    types.EventKindMinted,
			Block:   testBlockRef(10),
			TxIndex: 0,
			AssetId: assetId,
			Minted: &types.MintedPayload{
				Creator:      testCreator,
				MetadataHash: "bafy-asset",
				RoyaltyBps:   500,
			},
		},
		{
			Kind:    types.EventKindListed,
			Block:   testBlockRef(11),
			TxIndex: 0,
			AssetId: assetId,
			Listed: &types.ListedPayload{
				ListingId: 7,
				Seller:    testCreator,
				Price:     uint128.From64(1000),
				FeePaid:   uint128.From64(25),
			},
		},
		{
			Kind:    types.EventKindSold,
			Block:   testBlockRef(12),
			TxIndex: 0,
			AssetId: assetId,
			Sold: &types.SoldPayload{
				ListingId: 7,
				Buyer:     testBuyer,
				Price:     uint128.From64(1000),
			},
		},
	}
}

func TestProcessorProcess(t *testing.T) {
	processor, repo, idx := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, processor.Process(ctx, mintListBuyEvents(1), testBlockRef(12)))

	// in-memory state
	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, testBuyer, record.Asset.Owner)
	assert.Equal(t, entity.ListingStatusSold, record.Listing.Status)

	// written through to storage
	persisted, err := repo.GetIndexRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, testBuyer, persisted.Asset.Owner)

	cursor, err := repo.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), cursor.Height)

	cursor, err = processor.CurrentBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), cursor.Height)
}

func TestProcessorDiscardsOutOfOrder(t *testing.T) {
	processor, _, idx := newTestProcessor(t)
	ctx := context.Background()

	events := mintListBuyEvents(1)
	require.NoError(t, processor.Process(ctx, events, testBlockRef(12)))

	// replaying an old event fails the apply but not the batch
	stale := events[1]
	require.NoError(t, processor.Process(ctx, []*types.ConfirmedEvent{stale}, testBlockRef(13)))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusSold, record.Listing.Status)
}

func TestProcessorRevertData(t *testing.T) {
	processor, repo, idx := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, processor.Process(ctx, mintListBuyEvents(1), testBlockRef(12)))

	// the sale block is orphaned; a cancel replaces it on the new branch
	require.NoError(t, processor.RevertData(ctx, types.BlockRange{From: 12, To: 12}))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
	assert.Equal(t, testCreator, record.Asset.Owner)

	persisted, err := repo.GetIndexRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, persisted.Listing.Status)

	cancel := &types.ConfirmedEvent{
		Kind:    types.EventKindCancelled,
		Block:   testBlockRef(12),
		TxIndex: 0,
		AssetId: 1,
		Cancelled: &types.CancelledPayload{
			ListingId: 7,
		},
	}
	require.NoError(t, processor.Process(ctx, []*types.ConfirmedEvent{cancel}, testBlockRef(12)))

	record, err = idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusCancelled, record.Listing.Status)
	assert.Equal(t, testCreator, record.Asset.Owner)
}

func TestProcessorRevertDeletesMintedInRange(t *testing.T) {
	processor, repo, idx := newTestProcessor(t)
	ctx := context.Background()

	// mint and list only, so the pre-mint marker is still within history
	events := mintListBuyEvents(1)[:2]
	require.NoError(t, processor.Process(ctx, events, testBlockRef(11)))
	require.NoError(t, processor.RevertData(ctx, types.BlockRange{From: 10, To: 11}))

	_, err := idx.Get(1)
	assert.ErrorIs(t, err, errs.NotFound)

	_, err = repo.GetIndexRecord(ctx, 1)
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestProcessorRevertAfterRestart(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	first := NewProcessor(repo, repo, marketindex.New(), common.NetworkDevnet, nil, nil)
	require.NoError(t, first.VerifyStates(ctx))
	require.NoError(t, first.Process(ctx, mintListBuyEvents(1), testBlockRef(12)))

	// snapshot history survives the restart, so reverting the sale block
	// restores the active listing instead of falling back to a dirty mark
	idx := marketindex.New()
	second := NewProcessor(repo, repo, idx, common.NetworkDevnet, nil, nil)
	require.NoError(t, second.VerifyStates(ctx))
	require.NoError(t, second.RevertData(ctx, types.BlockRange{From: 12, To: 12}))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
	assert.Equal(t, testCreator, record.Asset.Owner)
	assert.False(t, record.Dirty)

	persisted, err := repo.GetIndexRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, persisted.Listing.Status)
	assert.Equal(t, testCreator, persisted.Asset.Owner)
}

func TestProcessorVerifyStatesSeedsIndex(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	first := NewProcessor(repo, repo, marketindex.New(), common.NetworkDevnet, nil, nil)
	require.NoError(t, first.VerifyStates(ctx))
	require.NoError(t, first.Process(ctx, mintListBuyEvents(1), testBlockRef(12)))

	// a fresh processor over the same storage sees the mirrored state
	idx := marketindex.New()
	second := NewProcessor(repo, repo, idx, common.NetworkDevnet, nil, nil)
	require.NoError(t, second.VerifyStates(ctx))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, testBuyer, record.Asset.Owner)
}

func TestProcessorVerifyStatesNetworkMismatch(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	first := NewProcessor(repo, repo, marketindex.New(), common.NetworkDevnet, nil, nil)
	require.NoError(t, first.VerifyStates(ctx))

	second := NewProcessor(repo, repo, marketindex.New(), common.NetworkTestnet, nil, nil)
	err := second.VerifyStates(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ConflictSetting)
}
