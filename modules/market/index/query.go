package index

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/samber/lo"
)

// QueryEngine evaluates listing queries against a point-in-time copy of the
// reconciliation index.
type QueryEngine struct {
	index *Index
}

func NewQueryEngine(index *Index) *QueryEngine {
	return &QueryEngine{index: index}
}

// QueryListings returns the page of listed assets matching filter, ordered by
// sortBy. Records without a listing are never returned.
func (q *QueryEngine) QueryListings(filter entity.ListingFilter, sortBy entity.ListingSort, page entity.Page) (*entity.PagedResult, error) {
	if !sortBy.IsValid() {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid sort %q", sortBy)
	}
	if page.Page < 1 || page.Limit < 1 {
		return nil, errors.Wrap(errs.InvalidArgument, "page and limit must be positive")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid status %q", filter.Status)
	}

	records := lo.Filter(q.index.All(), func(record *entity.IndexRecord, _ int) bool {
		return matches(record, filter)
	})
	sortRecords(records, sortBy)

	total := len(records)
	pages := (total + int(page.Limit) - 1) / int(page.Limit)

	start := int(page.Offset())
	if start > total {
		start = total
	}
	end := start + int(page.Limit)
	if end > total {
		end = total
	}

	return &entity.PagedResult{
		Records: records[start:end],
		Total:   total,
		Pages:   pages,
		Page:    page.Page,
		Limit:   page.Limit,
	}, nil
}

func matches(record *entity.IndexRecord, filter entity.ListingFilter) bool {
	listing := record.Listing
	if listing == nil {
		return false
	}
	if filter.Status != "" && listing.Status != filter.Status {
		return false
	}
	if filter.PriceMin != nil && listing.Price.Cmp(*filter.PriceMin) < 0 {
		return false
	}
	if filter.PriceMax != nil && listing.Price.Cmp(*filter.PriceMax) > 0 {
		return false
	}
	if filter.Creator != nil && record.Asset.Creator != *filter.Creator {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(record.Asset.Name), search) &&
			!strings.Contains(strings.ToLower(record.Asset.Description), search) {
			return false
		}
	}
	return true
}

// sortRecords orders records for presentation. Ties always break on
// descending asset id so pagination is stable across requests.
func sortRecords(records []*entity.IndexRecord, sortBy entity.ListingSort) {
	less := func(a, b *entity.IndexRecord) bool {
		switch sortBy {
		case entity.ListingSortNewest:
			if a.Listing.CreatedAtBlock != b.Listing.CreatedAtBlock {
				return a.Listing.CreatedAtBlock > b.Listing.CreatedAtBlock
			}
		case entity.ListingSortOldest:
			if a.Listing.CreatedAtBlock != b.Listing.CreatedAtBlock {
				return a.Listing.CreatedAtBlock < b.Listing.CreatedAtBlock
			}
		case entity.ListingSortPriceAsc:
			if cmp := a.Listing.Price.Cmp(b.Listing.Price); cmp != 0 {
				return cmp < 0
			}
		case entity.ListingSortPriceDesc:
			if cmp := a.Listing.Price.Cmp(b.Listing.Price); cmp != 0 {
				return cmp > 0
			}
		}
		return a.Asset.AssetId > b.Asset.AssetId
	}
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}
