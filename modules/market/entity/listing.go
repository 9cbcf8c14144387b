package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
)

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the listing can no longer transition.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled
}

func (s ListingStatus) String() string {
	return string(s)
}

// Listing is the mirrored state of an asset's most recent listing. An asset
// has at most one non-terminal listing at a time.
type Listing struct {
	ListingId      uint64
	Seller         common.Address
	Price          uint128.Uint128
	Status         ListingStatus
	FeePaid        uint128.Uint128
	CreatedAtBlock uint64
}
