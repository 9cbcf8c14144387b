package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gaze-network/uint128"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/types"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
)

const (
	defaultRetryAttempts = 5
	defaultRetryBaseWait = 200 * time.Millisecond
	defaultRetryMaxWait  = 10 * time.Second

	defaultPendingWindow = 5 * time.Minute
)

type Config struct {
	URL string `mapstructure:"url"`

	// PendingWindow is how long a submitted intent stays pending before the
	// caller is told to re-check ledger state. Zero means the default.
	PendingWindow time.Duration `mapstructure:"pending_window"`

	// RetryAttempts bounds transport retries per call. Zero means the default.
	RetryAttempts int `mapstructure:"retry_attempts"`
}

// Make sure to implement the Client interface
var _ Client = (*RPCClient)(nil)

// RPCClient talks to a marketplace ledger node over JSON-RPC. Transport
// failures are retried with bounded exponential backoff; JSON-RPC error
// responses are authoritative answers and are never retried.
type RPCClient struct {
	rpc    *rpc.Client
	config Config
}

func Dial(ctx context.Context, config Config) (*RPCClient, error) {
	if config.URL == "" {
		return nil, errors.Wrap(errs.ArgumentRequired, "ledger node url is required")
	}
	client, err := rpc.DialContext(ctx, config.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial ledger node %q", config.URL)
	}
	return &RPCClient{rpc: client, config: config}, nil
}

func (c *RPCClient) Close() {
	c.rpc.Close()
}

func (c *RPCClient) Submit(ctx context.Context, intent Intent) (PendingReceipt, error) {
	var receipt PendingReceipt
	params := mapIntentToDto(intent)
	err := c.call(ctx, &receipt, "market_submitIntent", params)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			// The ledger evaluated the intent and refused it.
			return PendingReceipt{}, errors.WithStack(&SubmissionRejectedError{
				Code:   rpcErr.ErrorCode(),
				Reason: rpcErr.Error(),
			})
		}
		return PendingReceipt{}, errors.WithStack(err)
	}
	if receipt.SubmittedAt.IsZero() {
		receipt.SubmittedAt = time.Now()
	}
	if receipt.ExpiresAt.IsZero() {
		window := c.config.PendingWindow
		if window <= 0 {
			window = defaultPendingWindow
		}
		receipt.ExpiresAt = receipt.SubmittedAt.Add(window)
	}
	receipt.CorrelationId = intent.CorrelationId
	return receipt, nil
}

func (c *RPCClient) GetAssetState(ctx context.Context, assetId uint64) (*AssetState, error) {
	var dto *assetStateDto
	if err := c.call(ctx, &dto, "market_getAssetState", assetId); err != nil {
		return nil, errors.WithStack(err)
	}
	if dto == nil {
		return nil, errors.Wrapf(errs.NotFound, "asset %d not found on ledger", assetId)
	}
	state, err := mapAssetStateDtoToType(dto)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse asset state")
	}
	return state, nil
}

func (c *RPCClient) GetTip(ctx context.Context) (types.BlockRef, error) {
	var tip types.BlockRef
	if err := c.call(ctx, &tip, "market_tip"); err != nil {
		return types.BlockRef{}, errors.WithStack(err)
	}
	return tip, nil
}

func (c *RPCClient) GetBlockRef(ctx context.Context, height uint64) (types.BlockRef, error) {
	var ref *types.BlockRef
	if err := c.call(ctx, &ref, "market_getBlockRef", height); err != nil {
		return types.BlockRef{}, errors.WithStack(err)
	}
	if ref == nil {
		return types.BlockRef{}, errors.Wrapf(errs.NotFound, "block %d not found on ledger", height)
	}
	return *ref, nil
}

func (c *RPCClient) GetEvents(ctx context.Context, from, to uint64) ([]*types.ConfirmedEvent, error) {
	var dtos []*confirmedEventDto
	if err := c.call(ctx, &dtos, "market_getEvents", from, to); err != nil {
		return nil, errors.WithStack(err)
	}
	events := make([]*types.ConfirmedEvent, 0, len(dtos))
	for _, dto := range dtos {
		event, err := mapConfirmedEventDtoToType(dto)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse event, block: %d, tx: %s", dto.Block.Height, dto.TxHash)
		}
		events = append(events, event)
	}
	return events, nil
}

// call invokes a JSON-RPC method, retrying transport failures with bounded
// exponential backoff. A JSON-RPC error response from the node is returned
// as-is: the node answered, so retrying cannot change the outcome.
func (c *RPCClient) call(ctx context.Context, result any, method string, args ...any) error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}

	wait := defaultRetryBaseWait
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			logger.DebugContext(ctx, "Retrying ledger RPC call",
				slogx.String("method", method),
				slogx.Int("attempt", attempt),
				slogx.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			}
			wait *= 2
			if wait > defaultRetryMaxWait {
				wait = defaultRetryMaxWait
			}
		}

		err := c.rpc.CallContext(ctx, result, method, args...)
		if err == nil {
			return nil
		}
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return errors.WithStack(err)
		}
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		lastErr = err
	}
	return errors.Wrapf(errs.Unavailable, "ledger node unreachable after %d attempts, method: %s, last error: %v", attempts, method, lastErr)
}

// wire DTOs: the ledger serializes currency amounts as decimal strings.

type intentDto struct {
	CorrelationId string `json:"correlationId"`
	Kind          string `json:"kind"`
	Payer         string `json:"payer"`
	AssetId       uint64 `json:"assetId,omitempty"`
	Price         string `json:"price,omitempty"`
	Value         string `json:"value,omitempty"`
	MetadataHash  string `json:"metadataHash,omitempty"`
	RoyaltyBps    uint16 `json:"royaltyBps,omitempty"`
}

func mapIntentToDto(intent Intent) intentDto {
	return intentDto{
		CorrelationId: intent.CorrelationId.String(),
		Kind:          string(intent.Kind),
		Payer:         intent.Payer.Hex(),
		AssetId:       intent.AssetId,
		Price:         intent.Price.String(),
		Value:         intent.Value.String(),
		MetadataHash:  intent.MetadataHash,
		RoyaltyBps:    intent.RoyaltyBps,
	}
}

type listingStateDto struct {
	ListingId      uint64 `json:"listingId"`
	Seller         string `json:"seller"`
	Price          string `json:"price"`
	Status         string `json:"status"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
	FeePaid        string `json:"feePaid"`
}

type assetStateDto struct {
	AssetId      uint64           `json:"assetId"`
	MetadataHash string           `json:"metadataHash"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Creator      string           `json:"creator"`
	Owner        string           `json:"owner"`
	RoyaltyBps   uint16           `json:"royaltyBps"`
	Listing      *listingStateDto `json:"listing,omitempty"`
	Block        types.BlockRef   `json:"block"`
}

func mapAssetStateDtoToType(dto *assetStateDto) (*AssetState, error) {
	state := &AssetState{
		AssetId:      dto.AssetId,
		MetadataHash: dto.MetadataHash,
		Name:         dto.Name,
		Description:  dto.Description,
		Creator:      common.HexToAddress(dto.Creator),
		Owner:        common.HexToAddress(dto.Owner),
		RoyaltyBps:   dto.RoyaltyBps,
		Block:        dto.Block,
	}
	if dto.Listing != nil {
		price, err := uint128.FromString(dto.Listing.Price)
		if err != nil {
			return nil, errors.Wrap(err, "invalid listing price")
		}
		feePaid, err := uint128.FromString(dto.Listing.FeePaid)
		if err != nil {
			return nil, errors.Wrap(err, "invalid listing fee")
		}
		status := ListingStatus(dto.Listing.Status)
		state.Listing = &ListingState{
			ListingId:      dto.Listing.ListingId,
			Seller:         common.HexToAddress(dto.Listing.Seller),
			Price:          price,
			Status:         status,
			CreatedAtBlock: dto.Listing.CreatedAtBlock,
			FeePaid:        feePaid,
		}
	}
	return state, nil
}

type confirmedEventDto struct {
	Kind    string         `json:"kind"`
	Block   types.BlockRef `json:"block"`
	TxHash  string         `json:"txHash"`
	TxIndex uint32         `json:"txIndex"`
	AssetId uint64         `json:"assetId"`

	Creator      string `json:"creator,omitempty"`
	MetadataHash string `json:"metadataHash,omitempty"`
	RoyaltyBps   uint16 `json:"royaltyBps,omitempty"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	ListingId    uint64 `json:"listingId,omitempty"`
	Seller       string `json:"seller,omitempty"`
	Buyer        string `json:"buyer,omitempty"`
	Price        string `json:"price,omitempty"`
	FeePaid      string `json:"feePaid,omitempty"`
}

// mapConfirmedEventDtoToType maps the ledger's loosely-typed event payload
// into the closed set of tagged variants. Unrecognized kinds are a schema
// error, not a runtime crash.
func mapConfirmedEventDtoToType(dto *confirmedEventDto) (*types.ConfirmedEvent, error) {
	kind := types.EventKind(dto.Kind)
	if !kind.IsValid() {
		return nil, errors.Wrapf(errs.Unsupported, "unrecognized event kind %q", dto.Kind)
	}
	event := &types.ConfirmedEvent{
		Kind:    kind,
		Block:   dto.Block,
		TxHash:  common.HexToHash(dto.TxHash),
		TxIndex: dto.TxIndex,
		AssetId: dto.AssetId,
	}
	switch kind {
	case types.EventKindMinted:
		event.Minted = &types.MintedPayload{
			Creator:      common.HexToAddress(dto.Creator),
			MetadataHash: dto.MetadataHash,
			RoyaltyBps:   dto.RoyaltyBps,
			Name:         dto.Name,
			Description:  dto.Description,
		}
	case types.EventKindListed:
		price, err := uint128.FromString(dto.Price)
		if err != nil {
			return nil, errors.Wrap(err, "invalid listed price")
		}
		feePaid, err := uint128.FromString(dto.FeePaid)
		if err != nil {
			return nil, errors.Wrap(err, "invalid listing fee")
		}
		event.Listed = &types.ListedPayload{
			ListingId: dto.ListingId,
			Seller:    common.HexToAddress(dto.Seller),
			Price:     price,
			FeePaid:   feePaid,
		}
	case types.EventKindSold:
		price, err := uint128.FromString(dto.Price)
		if err != nil {
			return nil, errors.Wrap(err, "invalid sale price")
		}
		event.Sold = &types.SoldPayload{
			ListingId: dto.ListingId,
			Buyer:     common.HexToAddress(dto.Buyer),
			Price:     price,
		}
	case types.EventKindCancelled:
		event.Cancelled = &types.CancelledPayload{
			ListingId: dto.ListingId,
		}
	}
	return event, nil
}
