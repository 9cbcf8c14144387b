package fees

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/pkg/decimals"
	"github.com/shopspring/decimal"
)

// ReferenceUnitDecimals is the number of smallest-unit decimals in one
// reference unit of the ledger's native currency.
const ReferenceUnitDecimals = 18

const royaltyBpsDenominator = 10000

// MaxRoyaltyBps caps creator royalties at 100% of the sale price.
const MaxRoyaltyBps uint16 = royaltyBpsDenominator

// Calculator computes fee amounts deterministically from marketplace
// parameters, so quoted fees always match what the ledger will settle.
type Calculator struct {
	listingFee        uint128.Uint128
	defaultRoyaltyBps uint16
}

// NewCalculator parses the listing fee (in reference units, e.g. "0.025")
// into smallest units.
func NewCalculator(listingFee string, defaultRoyaltyBps uint16) (*Calculator, error) {
	fee, err := decimal.NewFromString(listingFee)
	if err != nil {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid listing fee %q", listingFee)
	}
	if fee.IsNegative() {
		return nil, errors.Wrap(errs.InvalidArgument, "listing fee must not be negative")
	}
	if defaultRoyaltyBps > MaxRoyaltyBps {
		return nil, errors.Wrapf(errs.InvalidArgument, "default royalty %d exceeds %d bps", defaultRoyaltyBps, MaxRoyaltyBps)
	}

	feeUnits, err := uint128.FromBig(decimals.ToBigInt(fee.String(), ReferenceUnitDecimals))
	if err != nil {
		return nil, errors.Join(err, errs.OverflowUint128)
	}

	return &Calculator{
		listingFee:        feeUnits,
		defaultRoyaltyBps: defaultRoyaltyBps,
	}, nil
}

// ListingFee returns the flat fee charged on listing submission, in smallest
// units.
func (c *Calculator) ListingFee() uint128.Uint128 {
	return c.listingFee
}

// DefaultRoyaltyBps returns the royalty applied to mints that carry none.
func (c *Calculator) DefaultRoyaltyBps() uint16 {
	return c.defaultRoyaltyBps
}

// ValidateRoyaltyBps rejects royalties above 100%.
func (c *Calculator) ValidateRoyaltyBps(bps uint16) error {
	if bps > MaxRoyaltyBps {
		return errors.Wrapf(errs.InvalidArgument, "royalty %d exceeds %d bps", bps, MaxRoyaltyBps)
	}
	return nil
}

// ValidateListingPrice rejects zero asks, the ledger treats them as unpriced.
func (c *Calculator) ValidateListingPrice(price uint128.Uint128) error {
	if price.IsZero() {
		return errors.Wrap(errs.InvalidArgument, "listing price must be greater than zero")
	}
	return nil
}

// ValidateSalePrice checks an offered purchase price against the listing ask.
// The ledger settles exact matches only, so anything else fails with
// errs.PriceMismatch.
func (c *Calculator) ValidateSalePrice(offered, ask uint128.Uint128) error {
	if !offered.Equals(ask) {
		return errors.Wrapf(errs.PriceMismatch, "offered %s, listing is %s", offered, ask)
	}
	return nil
}

// RoyaltySplit divides a sale price between creator and seller. The creator
// share is floored, the seller receives the remainder, so the two shares
// always sum to the price exactly.
func (c *Calculator) RoyaltySplit(price uint128.Uint128, royaltyBps uint16) (creator, seller uint128.Uint128, err error) {
	if royaltyBps > MaxRoyaltyBps {
		return uint128.Zero, uint128.Zero, errors.Wrapf(errs.InvalidArgument, "royalty %d exceeds %d bps", royaltyBps, MaxRoyaltyBps)
	}
	// price * bps can exceed 128 bits, so the intermediate goes through big.Int.
	// The quotient is always <= price and fits.
	share := new(big.Int).Mul(price.Big(), big.NewInt(int64(royaltyBps)))
	share.Div(share, big.NewInt(royaltyBpsDenominator))
	creator, err = uint128.FromBig(share)
	if err != nil {
		return uint128.Zero, uint128.Zero, errors.Join(err, errs.OverflowUint128)
	}
	seller = price.Sub(creator)
	return creator, seller, nil
}
