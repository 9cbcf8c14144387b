package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
)

type submitResult struct {
	CorrelationId uuid.UUID `json:"correlationId"`
	TxHash        string    `json:"txHash"`
	SubmittedAt   time.Time `json:"submittedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type submitResponse = HttpResponse[submitResult]

func newSubmitResult(receipt ledger.PendingReceipt) submitResult {
	return submitResult{
		CorrelationId: receipt.CorrelationId,
		TxHash:        receipt.TxHash.Hex(),
		SubmittedAt:   receipt.SubmittedAt,
		ExpiresAt:     receipt.ExpiresAt,
	}
}

// mapSubmitError turns expected submission failures into public errors and
// leaves the rest to the global error handler.
func mapSubmitError(err error) error {
	var rejected *ledger.SubmissionRejectedError
	if errors.As(err, &rejected) {
		return errs.WithPublicMessage(err, rejected.Reason)
	}
	if errors.Is(err, errs.PriceMismatch) {
		return errs.WithPublicMessage(err, "offered price does not match the listing")
	}
	if errors.Is(err, errs.InvalidArgument) || errors.Is(err, errs.NotFound) {
		return errs.WithPublicMessage(err, "invalid submission")
	}
	return errors.Wrap(err, "error during intent submission")
}
