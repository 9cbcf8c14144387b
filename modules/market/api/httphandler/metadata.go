package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
)

type postMetadataRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type postMetadataResult struct {
	MetadataHash string `json:"metadataHash"`
}

type postMetadataResponse = HttpResponse[postMetadataResult]

// PostMetadata assembles and stores a metadata document and returns its
// content hash for use in a later mint submission.
func (h *HttpHandler) PostMetadata(ctx *fiber.Ctx) (err error) {
	var req postMetadataRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}

	contentHash, err := h.usecase.StoreMetadata(ctx.UserContext(), usecase.StoreMetadataParams{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		if errors.Is(err, errs.InvalidArgument) || errors.Is(err, errs.ArgumentRequired) {
			return errs.WithPublicMessage(err, "invalid metadata document")
		}
		return errors.Wrap(err, "error during StoreMetadata")
	}

	return errors.WithStack(ctx.JSON(postMetadataResponse{
		Result: &postMetadataResult{
			MetadataHash: contentHash,
		},
	}))
}

func (h *HttpHandler) GetMetadata(ctx *fiber.Ctx) (err error) {
	contentHash := ctx.Params("hash")
	if err := blobstore.ValidateContentHash(contentHash); err != nil {
		return errs.NewPublicError("invalid metadata hash")
	}

	data, err := h.usecase.GetMetadata(ctx.UserContext(), contentHash)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("metadata not found")
		}
		return errors.Wrap(err, "error during GetMetadata")
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return errors.WithStack(ctx.Send(data))
}
