package index

import (
	"fmt"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	buyer   = ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
)

func blockRef(height uint64) types.BlockRef {
	return types.BlockRef{
		Height:   height,
		Hash:     ethcommon.BytesToHash([]byte{byte(height)}),
		PrevHash: ethcommon.BytesToHash([]byte{byte(height - 1)}),
	}
}

func mintedEvent(assetId, height uint64, txIndex uint32) *types.ConfirmedEvent {
	return &types.ConfirmedEvent{
		Kind:    types.EventKindMinted,
		Block:   blockRef(height),
		TxIndex: txIndex,
		AssetId: assetId,
		Minted: &types.MintedPayload{
			Creator:      creator,
			MetadataHash: "bafy-metadata",
			RoyaltyBps:   500,
			Name:         fmt.Sprintf("Asset #%d", assetId),
			Description:  "mirror test collectible",
		},
	}
}

func listedEvent(assetId, height uint64, txIndex uint32, price uint64) *types.ConfirmedEvent {
	return &types.ConfirmedEvent{
		Kind:    types.EventKindListed,
		Block:   blockRef(height),
		TxIndex: txIndex,
		AssetId: assetId,
		Listed: &types.ListedPayload{
			ListingId: assetId*100 + height,
			Seller:    creator,
			Price:     uint128.From64(price),
			FeePaid:   uint128.From64(25),
		},
	}
}

func soldEvent(assetId, height uint64, txIndex uint32, price uint64) *types.ConfirmedEvent {
	return &types.ConfirmedEvent{
		Kind:    types.EventKindSold,
		Block:   blockRef(height),
		TxIndex: txIndex,
		AssetId: assetId,
		Sold: &types.SoldPayload{
			ListingId: assetId*100 + height,
			Buyer:     buyer,
			Price:     uint128.From64(price),
		},
	}
}

func cancelledEvent(assetId, height uint64, txIndex uint32) *types.ConfirmedEvent {
	return &types.ConfirmedEvent{
		Kind:    types.EventKindCancelled,
		Block:   blockRef(height),
		TxIndex: txIndex,
		AssetId: assetId,
		Cancelled: &types.CancelledPayload{
			ListingId: assetId * 100,
		},
	}
}

func TestApplyLifecycle(t *testing.T) {
	idx := New()

	require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, creator, record.Asset.Owner)
	assert.Equal(t, uint16(500), record.Asset.RoyaltyBps)
	assert.Nil(t, record.Listing)
	assert.False(t, record.Dirty)

	require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))
	record, err = idx.Get(1)
	require.NoError(t, err)
	require.NotNil(t, record.Listing)
	assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
	assert.Equal(t, uint128.From64(1000), record.Listing.Price)

	require.NoError(t, idx.Apply(soldEvent(1, 12, 0, 1000)))
	record, err = idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusSold, record.Listing.Status)
	assert.Equal(t, buyer, record.Asset.Owner)
	assert.Equal(t, uint64(12), record.LastConfirmedBlock.Height)
}

func TestApplyOrdering(t *testing.T) {
	t.Run("rejects out of order event", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 12, 0, 1000)))

		err := idx.Apply(listedEvent(1, 11, 0, 500))
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.OutOfOrder)

		// state unchanged
		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(1000), record.Listing.Price)
	})

	t.Run("exact replay is a no-op", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))
		require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))

		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
	})

	t.Run("orders by tx index within a block", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 10, 1, 1000)))

		err := idx.Apply(mintedEvent(1, 10, 0))
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.OutOfOrder)
	})
}

func TestApplyUnknownAsset(t *testing.T) {
	idx := New()
	err := idx.Apply(listedEvent(1, 10, 0, 1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, err = idx.Get(1)
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestMarkDirty(t *testing.T) {
	idx := New()
	assert.False(t, idx.MarkDirty(1))

	require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
	assert.True(t, idx.MarkDirty(1))

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.True(t, record.Dirty)

	// next confirmed apply clears the flag
	require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))
	record, err = idx.Get(1)
	require.NoError(t, err)
	assert.False(t, record.Dirty)
}

func TestRevert(t *testing.T) {
	t.Run("restores retained snapshot", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))
		require.NoError(t, idx.Apply(soldEvent(1, 12, 0, 1000)))

		outcome := idx.Revert(types.BlockRange{From: 12, To: 12})
		assert.Equal(t, []uint64{1}, outcome.Restored)
		assert.Empty(t, outcome.Deleted)
		assert.Empty(t, outcome.Dirtied)

		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
		assert.Equal(t, creator, record.Asset.Owner)
		assert.Equal(t, uint64(11), record.LastConfirmedBlock.Height)
	})

	t.Run("deletes asset created in reverted range", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))

		outcome := idx.Revert(types.BlockRange{From: 10, To: 11})
		assert.Equal(t, []uint64{1}, outcome.Deleted)

		_, err := idx.Get(1)
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("marks dirty when revert is deeper than history", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))
		require.NoError(t, idx.Apply(soldEvent(1, 12, 0, 1000)))
		require.NoError(t, idx.Apply(listedEvent(1, 13, 0, 2000)))

		// snapshot depth is 2, so reverting 3 blocks cannot restore
		outcome := idx.Revert(types.BlockRange{From: 11, To: 13})
		assert.Equal(t, []uint64{1}, outcome.Dirtied)

		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.True(t, record.Dirty)
	})

	t.Run("skips untouched assets", func(t *testing.T) {
		idx := New()
		require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
		require.NoError(t, idx.Apply(mintedEvent(2, 20, 0)))

		outcome := idx.Revert(types.BlockRange{From: 20, To: 20})
		assert.Equal(t, []uint64{2}, outcome.Deleted)

		record, err := idx.Get(1)
		require.NoError(t, err)
		assert.False(t, record.Dirty)
	})
}

func TestLoadRestoresSnapshotHistory(t *testing.T) {
	source := New()
	require.NoError(t, source.Apply(mintedEvent(1, 10, 0)))
	require.NoError(t, source.Apply(listedEvent(1, 11, 0, 1000)))
	require.NoError(t, source.Apply(soldEvent(1, 12, 0, 1000)))

	snapshots := source.Snapshots(1)
	require.Len(t, snapshots, 2)

	// a fresh index seeded from persisted state can still revert by snapshot
	idx := New()
	idx.Load(source.All(), snapshots)

	outcome := idx.Revert(types.BlockRange{From: 12, To: 12})
	assert.Equal(t, []uint64{1}, outcome.Restored)
	assert.Empty(t, outcome.Dirtied)

	record, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, record.Listing.Status)
	assert.Equal(t, uint64(11), record.LastConfirmedBlock.Height)
	assert.False(t, record.Dirty)
}

func TestRepair(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
	require.True(t, idx.MarkDirty(1))

	repaired := &entity.IndexRecord{
		Asset: entity.Asset{
			AssetId:      1,
			MetadataHash: "bafy-metadata",
			Creator:      creator,
			Owner:        buyer,
			RoyaltyBps:   500,
		},
		LastConfirmedBlock: blockRef(15),
	}
	record := idx.Repair(1, repaired)
	assert.False(t, record.Dirty)
	assert.Equal(t, buyer, record.Asset.Owner)

	// stale repair loses to a newer confirmed apply
	require.NoError(t, idx.Apply(listedEvent(1, 20, 0, 1000)))
	record = idx.Repair(1, repaired)
	assert.Equal(t, uint64(20), record.LastConfirmedBlock.Height)
	assert.NotNil(t, record.Listing)
}

func TestGetReturnsCopy(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
	require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))

	record, err := idx.Get(1)
	require.NoError(t, err)
	record.Listing.Status = entity.ListingStatusCancelled
	record.Asset.Owner = buyer

	fresh, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusActive, fresh.Listing.Status)
	assert.Equal(t, creator, fresh.Asset.Owner)
}
