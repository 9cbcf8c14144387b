package fees

import (
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator(t *testing.T) {
	type testcase struct {
		name        string
		listingFee  string
		royaltyBps  uint16
		expectedFee uint128.Uint128
		shouldError bool
	}
	testcases := []testcase{
		{
			name:        "default listing fee",
			listingFee:  "0.025",
			royaltyBps:  250,
			expectedFee: uint128.From64(25_000_000_000_000_000), // 0.025 * 10^18
		},
		{
			name:        "zero fee",
			listingFee:  "0",
			royaltyBps:  0,
			expectedFee: uint128.Zero,
		},
		{
			name:        "whole unit fee",
			listingFee:  "1",
			royaltyBps:  250,
			expectedFee: uint128.From64(1_000_000_000_000_000_000),
		},
		{
			name:        "negative fee",
			listingFee:  "-0.025",
			shouldError: true,
		},
		{
			name:        "not a number",
			listingFee:  "abc",
			shouldError: true,
		},
		{
			name:        "royalty above 100 percent",
			listingFee:  "0.025",
			royaltyBps:  10001,
			shouldError: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			calc, err := NewCalculator(tc.listingFee, tc.royaltyBps)
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedFee, calc.ListingFee())
			assert.Equal(t, tc.royaltyBps, calc.DefaultRoyaltyBps())
		})
	}
}

func TestRoyaltySplit(t *testing.T) {
	calc, err := NewCalculator("0.025", 250)
	require.NoError(t, err)

	type testcase struct {
		name            string
		price           uint128.Uint128
		royaltyBps      uint16
		expectedCreator uint128.Uint128
		expectedSeller  uint128.Uint128
		shouldError     bool
	}
	testcases := []testcase{
		{
			name:            "5 percent of 1000",
			price:           uint128.From64(1000),
			royaltyBps:      500,
			expectedCreator: uint128.From64(50),
			expectedSeller:  uint128.From64(950),
		},
		{
			name:            "default royalty of 1000",
			price:           uint128.From64(1000),
			royaltyBps:      250,
			expectedCreator: uint128.From64(25),
			expectedSeller:  uint128.From64(975),
		},
		{
			name:            "floors creator share",
			price:           uint128.From64(999),
			royaltyBps:      250,
			expectedCreator: uint128.From64(24), // 999 * 250 / 10000 = 24.975
			expectedSeller:  uint128.From64(975),
		},
		{
			name:            "zero royalty",
			price:           uint128.From64(1000),
			royaltyBps:      0,
			expectedCreator: uint128.Zero,
			expectedSeller:  uint128.From64(1000),
		},
		{
			name:            "full royalty",
			price:           uint128.From64(1000),
			royaltyBps:      10000,
			expectedCreator: uint128.From64(1000),
			expectedSeller:  uint128.Zero,
		},
		{
			name:            "max price does not overflow",
			price:           uint128.Max,
			royaltyBps:      10000,
			expectedCreator: uint128.Max,
			expectedSeller:  uint128.Zero,
		},
		{
			name:        "royalty above 100 percent",
			price:       uint128.From64(1000),
			royaltyBps:  10001,
			shouldError: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			creator, seller, err := calc.RoyaltySplit(tc.price, tc.royaltyBps)
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedCreator, creator)
			assert.Equal(t, tc.expectedSeller, seller)
			// shares always reassemble the price exactly
			assert.Equal(t, tc.price, creator.Add(seller))
		})
	}
}

func TestValidateListingPrice(t *testing.T) {
	calc, err := NewCalculator("0.025", 250)
	require.NoError(t, err)

	assert.Error(t, calc.ValidateListingPrice(uint128.Zero))
	assert.NoError(t, calc.ValidateListingPrice(uint128.From64(1)))
}

func TestValidateSalePrice(t *testing.T) {
	calc, err := NewCalculator("0.025", 250)
	require.NoError(t, err)

	assert.NoError(t, calc.ValidateSalePrice(uint128.From64(1000), uint128.From64(1000)))

	err = calc.ValidateSalePrice(uint128.From64(900), uint128.From64(1000))
	assert.ErrorIs(t, err, errs.PriceMismatch)

	// overpaying is rejected too, the ledger settles exact matches only
	err = calc.ValidateSalePrice(uint128.From64(1100), uint128.From64(1000))
	assert.ErrorIs(t, err, errs.PriceMismatch)
}
