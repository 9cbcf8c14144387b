package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
)

type postBuyRequest struct {
	AssetId uint64 `json:"assetId"`
	Buyer   string `json:"buyer"`
	// Price is the price the buyer saw. The submission is rejected when it no
	// longer matches the listing.
	Price string `json:"price"`
}

func (req postBuyRequest) Validate() error {
	var errList []error
	if _, ok := parseAddress(req.Buyer); !ok {
		errList = append(errList, errors.Errorf("invalid buyer address"))
	}
	if _, err := uint128.FromString(req.Price); err != nil {
		errList = append(errList, errors.Errorf("invalid price"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

func (h *HttpHandler) PostBuy(ctx *fiber.Ctx) (err error) {
	var req postBuyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	buyer, _ := parseAddress(req.Buyer)
	price, _ := uint128.FromString(req.Price)
	receipt, err := h.usecase.SubmitBuy(ctx.UserContext(), usecase.SubmitBuyParams{
		AssetId: req.AssetId,
		Buyer:   buyer,
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
