package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound           = ErrorKind("Not Found")
	InvalidArgument    = ErrorKind("Invalid Argument")
	ArgumentRequired   = ErrorKind("Argument Required")
	Unsupported        = ErrorKind("Unsupported")
	InternalError      = ErrorKind("Internal Error")
	SomethingWentWrong = ErrorKind("Something Went Wrong")
	ConflictSetting    = ErrorKind("Conflict Setting")
	Timeout            = ErrorKind("Timeout")
	Closed             = ErrorKind("Closed")

	// Unavailable is returned when a dependency is unreachable and retries are exhausted.
	Unavailable = ErrorKind("Unavailable")

	// StaleRead is returned to fresh-read callers when the index record is stale
	// and the ledger cannot be reached to repair it.
	StaleRead = ErrorKind("Stale Read Unavailable")

	// PriceMismatch is returned when an offered purchase price does not match
	// the listing ask exactly. The ledger settles exact matches only.
	PriceMismatch = ErrorKind("Price Mismatch")

	// OutOfOrder is returned by the reconciliation index when an event's block
	// number is not newer than the record it targets. Expected under
	// at-least-once delivery; callers log and discard.
	OutOfOrder = ErrorKind("Out Of Order Event")

	OverflowUint64  = ErrorKind("overflow uint64")
	OverflowUint128 = ErrorKind("overflow uint128")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
