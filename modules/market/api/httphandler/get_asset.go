package httphandler

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
)

type getAssetResponse = HttpResponse[assetResult]

func (h *HttpHandler) GetAsset(ctx *fiber.Ctx) (err error) {
	assetId, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil {
		return errs.NewPublicError("invalid asset id")
	}
	fresh := ctx.QueryBool("fresh")

	lookup := h.usecase.GetAsset
	if fresh {
		lookup = h.usecase.GetAssetFresh
	}
	found, err := lookup(ctx.UserContext(), assetId)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("asset not found")
		}
		if errors.Is(err, errs.StaleRead) {
			return errs.WithPublicMessage(err, "ledger unreachable, mirrored state may be stale")
		}
		return errors.Wrap(err, "error during GetAsset")
	}

	result := newAssetResult(found)
	return errors.WithStack(ctx.JSON(getAssetResponse{
		Result: &result,
	}))
}
