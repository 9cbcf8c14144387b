package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
)

type postMintRequest struct {
	Creator      string  `json:"creator"`
	MetadataHash string  `json:"metadataHash"`
	RoyaltyBps   *uint16 `json:"royaltyBps"`
}

func (req postMintRequest) Validate() error {
	var errList []error
	if _, ok := parseAddress(req.Creator); !ok {
		errList = append(errList, errors.Errorf("invalid creator address"))
	}
	if err := blobstore.ValidateContentHash(req.MetadataHash); err != nil {
		errList = append(errList, errors.Errorf("invalid metadataHash"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

func (h *HttpHandler) PostMint(ctx *fiber.Ctx) (err error) {
	var req postMintRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	creator, _ := parseAddress(req.Creator)
	receipt, err := h.usecase.SubmitMint(ctx.UserContext(), usecase.SubmitMintParams{
		Creator:      creator,
		MetadataHash: req.MetadataHash,
		RoyaltyBps:   req.RoyaltyBps,
	})
	if err != nil {
		return mapSubmitError(err)
	}

	result := newSubmitResult(receipt)
	return errors.WithStack(ctx.JSON(submitResponse{
		Result: &result,
	}))
}
