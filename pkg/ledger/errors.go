package ledger

import (
	"fmt"
)

// SubmissionRejectedError is a ledger-side business rule violation: wrong
// price, not the owner, insufficient funds. The ledger evaluated the intent
// and refused it, so it is never retried automatically.
type SubmissionRejectedError struct {
	Code   int
	Reason string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected by ledger (code %d): %s", e.Code, e.Reason)
}

// Ledger rejection codes surfaced through SubmissionRejectedError. These
// mirror the marketplace contract's revert identifiers.
const (
	RejectCodeNotOwner          = 1
	RejectCodePriceMismatch     = 2
	RejectCodeInsufficientFunds = 3
	RejectCodeListingNotActive  = 4
	RejectCodeNonceConflict     = 5
)
