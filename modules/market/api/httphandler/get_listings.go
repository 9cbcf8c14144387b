package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
	"github.com/samber/lo"
)

const getListingsMaxLimit = 1000

type getListingsRequest struct {
	paginationRequest
	Status   string `query:"status"`
	PriceMin string `query:"priceMin"`
	PriceMax string `query:"priceMax"`
	Creator  string `query:"creator"`
	Search   string `query:"search"`
	SortBy   string `query:"sortBy"`
}

func (req getListingsRequest) Validate() error {
	var errList []error
	if err := req.paginationRequest.Validate(); err != nil {
		errList = append(errList, err)
	}
	if req.Limit > getListingsMaxLimit {
		errList = append(errList, errors.Errorf("limit must be less than or equal to %d", getListingsMaxLimit))
	}
	if req.Status != "" && !entity.ListingStatus(req.Status).IsValid() {
		errList = append(errList, errors.Errorf("invalid status"))
	}
	if req.SortBy != "" && !entity.ListingSort(req.SortBy).IsValid() {
		errList = append(errList, errors.Errorf("invalid sortBy"))
	}
	if req.PriceMin != "" {
		if _, err := uint128.FromString(req.PriceMin); err != nil {
			errList = append(errList, errors.Errorf("invalid priceMin"))
		}
	}
	if req.PriceMax != "" {
		if _, err := uint128.FromString(req.PriceMax); err != nil {
			errList = append(errList, errors.Errorf("invalid priceMax"))
		}
	}
	if req.Creator != "" {
		if _, ok := parseAddress(req.Creator); !ok {
			errList = append(errList, errors.Errorf("invalid creator address"))
		}
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

func (req *getListingsRequest) ParseDefault() error {
	if err := req.paginationRequest.ParseDefault(); err != nil {
		return errors.WithStack(err)
	}
	if req.SortBy == "" {
		req.SortBy = string(entity.ListingSortNewest)
	}
	return nil
}

type listingResult struct {
	ListingId      uint64 `json:"listingId"`
	Seller         string `json:"seller"`
	Price          string `json:"price"`
	Status         string `json:"status"`
	FeePaid        string `json:"feePaid"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
}

type assetResult struct {
	AssetId            uint64         `json:"assetId"`
	MetadataHash       string         `json:"metadataHash"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Creator            string         `json:"creator"`
	Owner              string         `json:"owner"`
	RoyaltyBps         uint16         `json:"royaltyBps"`
	Listing            *listingResult `json:"listing,omitempty"`
	LastConfirmedBlock uint64         `json:"lastConfirmedBlock"`
	Dirty              bool           `json:"dirty"`
}

func newAssetResult(record *entity.IndexRecord) assetResult {
	result := assetResult{
		AssetId:            record.Asset.AssetId,
		MetadataHash:       record.Asset.MetadataHash,
		Name:               record.Asset.Name,
		Description:        record.Asset.Description,
		Creator:            record.Asset.Creator.Hex(),
		Owner:              record.Asset.Owner.Hex(),
		RoyaltyBps:         record.Asset.RoyaltyBps,
		LastConfirmedBlock: record.LastConfirmedBlock.Height,
		Dirty:              record.Dirty,
	}
	if record.Listing != nil {
		result.Listing = &listingResult{
			ListingId:      record.Listing.ListingId,
			Seller:         record.Listing.Seller.Hex(),
			Price:          record.Listing.Price.String(),
			Status:         record.Listing.Status.String(),
			FeePaid:        record.Listing.FeePaid.String(),
			CreatedAtBlock: record.Listing.CreatedAtBlock,
		}
	}
	return result
}

type getListingsResult struct {
	List  []assetResult `json:"list"`
	Total int           `json:"total"`
	Pages int           `json:"pages"`
	Page  int32         `json:"page"`
	Limit int32         `json:"limit"`
}

type getListingsResponse = HttpResponse[getListingsResult]

func (h *HttpHandler) GetListings(ctx *fiber.Ctx) (err error) {
	var req getListingsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if err := req.ParseDefault(); err != nil {
		return errors.WithStack(err)
	}

	filter := entity.ListingFilter{
		Status: entity.ListingStatus(req.Status),
		Search: req.Search,
	}
	if req.PriceMin != "" {
		priceMin, err := uint128.FromString(req.PriceMin)
		if err != nil {
			return errors.WithStack(err)
		}
		filter.PriceMin = &priceMin
	}
	if req.PriceMax != "" {
		priceMax, err := uint128.FromString(req.PriceMax)
		if err != nil {
			return errors.WithStack(err)
		}
		filter.PriceMax = &priceMax
	}
	if req.Creator != "" {
		creator, _ := parseAddress(req.Creator)
		filter.Creator = &creator
	}

	paged, err := h.usecase.GetListings(filter, entity.ListingSort(req.SortBy), entity.Page{Page: req.Page, Limit: req.Limit})
	if err != nil {
		if errors.Is(err, errs.InvalidArgument) {
			return errs.WithPublicMessage(err, "invalid listings query")
		}
		return errors.Wrap(err, "error during GetListings")
	}

	return errors.WithStack(ctx.JSON(getListingsResponse{
		Result: &getListingsResult{
			List:  lo.Map(paged.Records, func(record *entity.IndexRecord, _ int) assetResult { return newAssetResult(record) }),
			Total: paged.Total,
			Pages: paged.Pages,
			Page:  paged.Page,
			Limit: paged.Limit,
		},
	}))
}
