package datagateway

import (
	"context"

	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

type IndexerInfoDataGateway interface {
	// GetLatestIndexerState returns the most recent indexer state. Returns
	// errs.NotFound on a fresh database.
	GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error)
	SetIndexerState(ctx context.Context, state entity.IndexerState) error
}
