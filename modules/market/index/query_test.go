package index

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := New()

	// asset 1: active listing, price 1000, listed at block 11
	require.NoError(t, idx.Apply(mintedEvent(1, 10, 0)))
	require.NoError(t, idx.Apply(listedEvent(1, 11, 0, 1000)))

	// asset 2: sold listing, price 500, listed at block 12
	require.NoError(t, idx.Apply(mintedEvent(2, 10, 1)))
	require.NoError(t, idx.Apply(listedEvent(2, 12, 0, 500)))
	require.NoError(t, idx.Apply(soldEvent(2, 13, 0, 500)))

	// asset 3: active listing, price 2000, listed at block 14
	require.NoError(t, idx.Apply(mintedEvent(3, 10, 2)))
	require.NoError(t, idx.Apply(listedEvent(3, 14, 0, 2000)))

	// asset 4: never listed
	require.NoError(t, idx.Apply(mintedEvent(4, 10, 3)))

	return idx
}

func assetIds(records []*entity.IndexRecord) []uint64 {
	return lo.Map(records, func(r *entity.IndexRecord, _ int) uint64 { return r.Asset.AssetId })
}

func TestQueryListings(t *testing.T) {
	engine := NewQueryEngine(seedIndex(t))
	page := entity.Page{Page: 1, Limit: 10}

	t.Run("excludes unlisted assets", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.NotContains(t, assetIds(result.Records), uint64(4))
	})

	t.Run("filters by status", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{Status: entity.ListingStatusActive}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 1}, assetIds(result.Records))
	})

	t.Run("filters by price range", func(t *testing.T) {
		min, max := uint128.From64(600), uint128.From64(1500)
		result, err := engine.QueryListings(entity.ListingFilter{PriceMin: &min, PriceMax: &max}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, assetIds(result.Records))
	})

	t.Run("filters by creator", func(t *testing.T) {
		someoneElse := ethcommon.HexToAddress("0x3333333333333333333333333333333333333333")
		result, err := engine.QueryListings(entity.ListingFilter{Creator: &someoneElse}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Zero(t, result.Total)

		result, err = engine.QueryListings(entity.ListingFilter{Creator: &creator}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
	})

	t.Run("searches name and description", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{Search: "asset #1"}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, assetIds(result.Records))

		result, err = engine.QueryListings(entity.ListingFilter{Search: "COLLECTIBLE"}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)

		result, err = engine.QueryListings(entity.ListingFilter{Search: "nope"}, entity.ListingSortNewest, page)
		require.NoError(t, err)
		assert.Zero(t, result.Total)
	})

	t.Run("sorts by price", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{}, entity.ListingSortPriceAsc, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 1, 3}, assetIds(result.Records))

		result, err = engine.QueryListings(entity.ListingFilter{}, entity.ListingSortPriceDesc, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 1, 2}, assetIds(result.Records))
	})

	t.Run("sorts by listing age", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{}, entity.ListingSortOldest, page)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3}, assetIds(result.Records))
	})

	t.Run("paginates with totals", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{}, entity.ListingSortPriceAsc, entity.Page{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []uint64{3}, assetIds(result.Records))
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Pages)
		assert.Equal(t, int32(2), result.Page)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		result, err := engine.QueryListings(entity.ListingFilter{}, entity.ListingSortNewest, entity.Page{Page: 99, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, result.Records)
		assert.Equal(t, 3, result.Total)
	})

	t.Run("rejects invalid arguments", func(t *testing.T) {
		_, err := engine.QueryListings(entity.ListingFilter{}, "bogus", page)
		assert.ErrorIs(t, err, errs.InvalidArgument)

		_, err = engine.QueryListings(entity.ListingFilter{Status: "bogus"}, entity.ListingSortNewest, page)
		assert.ErrorIs(t, err, errs.InvalidArgument)

		_, err = engine.QueryListings(entity.ListingFilter{}, entity.ListingSortNewest, entity.Page{Page: 0, Limit: 10})
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}
