package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
)

type ListingSort string

const (
	ListingSortNewest    ListingSort = "newest"
	ListingSortOldest    ListingSort = "oldest"
	ListingSortPriceAsc  ListingSort = "price-asc"
	ListingSortPriceDesc ListingSort = "price-desc"
)

func (s ListingSort) IsValid() bool {
	switch s {
	case ListingSortNewest, ListingSortOldest, ListingSortPriceAsc, ListingSortPriceDesc:
		return true
	}
	return false
}

// ListingFilter narrows a listings query. Zero-valued fields are ignored.
type ListingFilter struct {
	Status   ListingStatus
	PriceMin *uint128.Uint128
	PriceMax *uint128.Uint128
	Creator  *common.Address
	// Search matches a case-insensitive substring of the asset name or
	// description.
	Search string
}

// Page is the 1-based pagination window of a listings query.
type Page struct {
	Page  int32
	Limit int32
}

func (p Page) Offset() int32 {
	return (p.Page - 1) * p.Limit
}

// PagedResult carries one page of records plus totals for the whole
// filtered set.
type PagedResult struct {
	Records []*IndexRecord
	Total   int
	Pages   int
	Page    int32
	Limit   int32
}
