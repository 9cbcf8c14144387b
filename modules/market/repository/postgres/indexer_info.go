package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/entity"
)

var _ datagateway.IndexerInfoDataGateway = (*Repository)(nil)

func (r *Repository) GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error) {
	var (
		clientVersion string
		network       string
		dbVersion     int32
		createdAt     pgtype.Timestamptz
	)
	err := r.queryable().QueryRow(ctx, `
		SELECT client_version, network, db_version, created_at
		FROM market_indexer_states
		ORDER BY id DESC LIMIT 1
	`).Scan(&clientVersion, &network, &dbVersion, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.IndexerState{}, errors.WithStack(errs.NotFound)
		}
		return entity.IndexerState{}, errors.Wrap(err, "error during query")
	}

	var created time.Time
	if createdAt.Valid {
		created = createdAt.Time.UTC()
	}
	return entity.IndexerState{
		ClientVersion: clientVersion,
		Network:       common.Network(network),
		DBVersion:     dbVersion,
		CreatedAt:     created,
	}, nil
}

func (r *Repository) SetIndexerState(ctx context.Context, state entity.IndexerState) error {
	_, err := r.queryable().Exec(ctx, `
		INSERT INTO market_indexer_states (client_version, network, db_version)
		VALUES ($1, $2, $3)
	`, state.ClientVersion, state.Network.String(), state.DBVersion)
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}
