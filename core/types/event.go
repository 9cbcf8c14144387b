package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gaze-network/uint128"
)

type EventKind string

const (
	EventKindMinted    EventKind = "minted"
	EventKindListed    EventKind = "listed"
	EventKindSold      EventKind = "sold"
	EventKindCancelled EventKind = "cancelled"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventKindMinted, EventKindListed, EventKindSold, EventKindCancelled:
		return true
	}
	return false
}

// ConfirmedEvent is a ledger-emitted fact, ordered by (block height, tx index).
// Exactly one payload field matching Kind is non-nil; the ledger boundary
// rejects unrecognized kinds before an event reaches consumers.
type ConfirmedEvent struct {
	Kind    EventKind   `json:"kind"`
	Block   BlockRef    `json:"block"`
	TxHash  common.Hash `json:"txHash"`
	TxIndex uint32      `json:"txIndex"`
	AssetId uint64      `json:"assetId"`

	Minted    *MintedPayload    `json:"minted,omitempty"`
	Listed    *ListedPayload    `json:"listed,omitempty"`
	Sold      *SoldPayload      `json:"sold,omitempty"`
	Cancelled *CancelledPayload `json:"cancelled,omitempty"`
}

type MintedPayload struct {
	Creator      common.Address `json:"creator"`
	MetadataHash string         `json:"metadataHash"`
	RoyaltyBps   uint16         `json:"royaltyBps"`

	// Name and Description are the core metadata fields, surfaced by the
	// ledger node alongside the content hash so mirrors can serve search
	// without resolving the blob.
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListedPayload struct {
	ListingId uint64          `json:"listingId"`
	Seller    common.Address  `json:"seller"`
	Price     uint128.Uint128 `json:"price"`
	FeePaid   uint128.Uint128 `json:"feePaid"`
}

type SoldPayload struct {
	ListingId uint64          `json:"listingId"`
	Buyer     common.Address  `json:"buyer"`
	Price     uint128.Uint128 `json:"price"`
}

type CancelledPayload struct {
	ListingId uint64 `json:"listingId"`
}

// StreamItem is one delivery from the ledger event stream. Either Reverted is
// non-nil and the item is a reorg marker for the given block range, or Events
// holds confirmed events for a contiguous range of blocks ending at Tip.
type StreamItem struct {
	Reverted *BlockRange
	Events   []*ConfirmedEvent

	// Tip is the last confirmed block covered by this delivery. Events may be
	// empty while Tip still advances the subscription cursor.
	Tip BlockRef
}
