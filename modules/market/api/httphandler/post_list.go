package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
)

type postListRequest struct {
	AssetId uint64 `json:"assetId"`
	Seller  string `json:"seller"`
	Price   string `json:"price"`
}

func (req postListRequest) Validate() error {
	var errList []error
	if _, ok := parseAddress(req.Seller); !ok {
		errList = append(errList, errors.Errorf("invalid seller address"))
	}
	if _, err := uint128.FromString(req.Price); err != nil {
		errList = append(errList, errors.Errorf("invalid price"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

func (h *HttpHandler) PostList(ctx *fiber.Ctx) (err error) {
	var req postListRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	seller, _ := parseAddress(req.Seller)
	price, _ := uint128.FromString(req.Price)
	receipt, err := h.usecase.SubmitList(ctx.UserContext(), usecase.SubmitListParams{
		AssetId: req.AssetId,
		Seller:  seller,
		Price:   price,
	})
	if err != nil {
		return mapSubmitError(err)
	}

	result := newSubmitResult(receipt)
	return errors.WithStack(ctx.JSON(submitResponse{
		Result: &result,
	}))
}
