package usecase

import (
	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

// GetListings evaluates a listings query against the in-memory index.
func (u *Usecase) GetListings(filter entity.ListingFilter, sortBy entity.ListingSort, page entity.Page) (*entity.PagedResult, error) {
	result, err := u.queryEngine.QueryListings(filter, sortBy, page)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return result, nil
}
