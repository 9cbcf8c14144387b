package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
)

type postCancelRequest struct {
	AssetId uint64 `json:"assetId"`
	Seller  string `json:"seller"`
}

func (req postCancelRequest) Validate() error {
	var errList []error
	if _, ok := parseAddress(req.Seller); !ok {
		errList = append(errList, errors.Errorf("invalid seller address"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

func (h *HttpHandler) PostCancel(ctx *fiber.Ctx) (err error) {
	var req postCancelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	seller, _ := parseAddress(req.Seller)
	receipt, err := h.usecase.SubmitCancel(ctx.UserContext(), usecase.SubmitCancelParams{
		AssetId: req.AssetId,
		Seller:  seller,
	})
	if err != nil {
		return mapSubmitError(err)
	}

	result := newSubmitResult(receipt)
	return errors.WithStack(ctx.JSON(submitResponse{
		Result: &result,
	}))
}
