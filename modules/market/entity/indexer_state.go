package entity

import (
	"time"

	"github.com/mintline/marketplace-indexer/common"
)

// IndexerState records the schema and network the mirror was built with, so
// startup can detect an incompatible database.
type IndexerState struct {
	ClientVersion string
	Network       common.Network
	DBVersion     int32
	CreatedAt     time.Time
}
