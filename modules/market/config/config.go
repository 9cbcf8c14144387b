package config

import (
	"time"

	"github.com/mintline/marketplace-indexer/internal/postgres"
)

type Config struct {
	Database    string          `mapstructure:"database"` // Database to persist the marketplace mirror. e.g. `postgres` | `memory`
	Postgres    postgres.Config `mapstructure:"postgres"`
	APIHandlers []string        `mapstructure:"api_handlers"` // API handlers to enable. e.g. `http`

	// ListingFee is the flat fee charged on listing submission, in reference
	// units. e.g. "0.025"
	ListingFee string `mapstructure:"listing_fee"`

	// DefaultRoyaltyBps is applied when a mint does not carry an explicit
	// royalty, in basis points.
	DefaultRoyaltyBps uint16 `mapstructure:"default_royalty_bps"`

	// FreshnessThreshold is how old a clean mirrored record may be before a
	// fresh read repairs it from the ledger anyway. Zero uses the default.
	FreshnessThreshold time.Duration `mapstructure:"freshness_threshold"`
}
