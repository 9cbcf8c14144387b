package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"golang.org/x/sync/errgroup"
)

const getAssetsBatchMaxQueries = 100

type getAssetQuery struct {
	AssetId uint64 `json:"assetId"`
	Fresh   bool   `json:"fresh"`
}

type getAssetsBatchRequest struct {
	Queries []getAssetQuery `json:"queries"`
}

func (r getAssetsBatchRequest) Validate() error {
	var errList []error
	if len(r.Queries) == 0 {
		errList = append(errList, errors.New("at least one query is required"))
	}
	if len(r.Queries) > getAssetsBatchMaxQueries {
		errList = append(errList, errors.Errorf("cannot exceed %d queries", getAssetsBatchMaxQueries))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getAssetsBatchResult struct {
	List []*assetResult `json:"list"`
}

type getAssetsBatchResponse = HttpResponse[getAssetsBatchResult]

// GetAssetsBatch resolves multiple asset lookups in one request. Unknown
// assets yield null entries instead of failing the whole batch.
func (h *HttpHandler) GetAssetsBatch(ctx *fiber.Ctx) (err error) {
	var req getAssetsBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	results := make([]*assetResult, len(req.Queries))
	eg, ectx := errgroup.WithContext(ctx.UserContext())
	for i, query := range req.Queries {
		i := i
		query := query
		eg.Go(func() error {
			lookup := h.usecase.GetAsset
			if query.Fresh {
				lookup = h.usecase.GetAssetFresh
			}
			record, err := lookup(ectx, query.AssetId)
			if err != nil {
				if errors.Is(err, errs.NotFound) {
					return nil
				}
				return errors.Wrapf(err, "error during GetAsset for query %d", i)
			}
			result := newAssetResult(record)
			results[i] = &result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if errors.Is(err, errs.StaleRead) {
			return errs.WithPublicMessage(err, "ledger unreachable, mirrored state may be stale")
		}
		return errors.WithStack(err)
	}

	return errors.WithStack(ctx.JSON(getAssetsBatchResponse{
		Result: &getAssetsBatchResult{
			List: results,
		},
	}))
}
