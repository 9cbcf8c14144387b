package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
	"github.com/google/uuid"
	"github.com/mintline/marketplace-indexer/core/types"
)

type IntentKind string

const (
	IntentKindMint   IntentKind = "mint"
	IntentKindList   IntentKind = "list"
	IntentKindBuy    IntentKind = "buy"
	IntentKindCancel IntentKind = "cancel"
)

func (k IntentKind) IsValid() bool {
	switch k {
	case IntentKindMint, IntentKindList, IntentKindBuy, IntentKindCancel:
		return true
	}
	return false
}

// Intent is an unconfirmed request submitted toward the ledger. It is not
// truth; it becomes truth only once a matching confirmed event arrives on the
// event stream. A caller that abandons a pending intent must use a fresh
// correlation id on any re-submission.
type Intent struct {
	CorrelationId uuid.UUID
	Kind          IntentKind
	Payer         common.Address

	// AssetId targets the asset for list, buy, and cancel intents. Buys and
	// cancels resolve to the asset's single active listing on the ledger.
	AssetId uint64

	// Price is the ask (list) or the offered price (buy).
	Price uint128.Uint128

	// Value is the funds attached to the submission: the listing fee for list
	// intents, the full purchase price for buy intents.
	Value uint128.Uint128

	// Mint parameters.
	MetadataHash string
	RoyaltyBps   uint16
}

// PendingReceipt acknowledges that the ledger accepted an intent for
// inclusion. It is not a confirmation; the intent may still be dropped.
type PendingReceipt struct {
	CorrelationId uuid.UUID   `json:"correlationId"`
	TxHash        common.Hash `json:"txHash"`
	SubmittedAt   time.Time   `json:"submittedAt"`

	// ExpiresAt is the end of the pending window. Past it the caller should
	// re-check ledger state rather than assume the intent failed.
	ExpiresAt time.Time `json:"expiresAt"`
}

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled
}

// ListingState is the ledger's view of a listing.
type ListingState struct {
	ListingId      uint64
	Seller         common.Address
	Price          uint128.Uint128
	Status         ListingStatus
	CreatedAtBlock uint64
	FeePaid        uint128.Uint128
}

// AssetState is the authoritative state of an asset as read directly from the
// ledger, tagged with the block at which it was read.
type AssetState struct {
	AssetId      uint64
	MetadataHash string
	Name         string
	Description  string
	Creator      common.Address
	Owner        common.Address
	RoyaltyBps   uint16

	// Listing is the most recent listing for the asset, nil if never listed.
	Listing *ListingState

	// Block is the confirmed block the read was served at.
	Block types.BlockRef
}
