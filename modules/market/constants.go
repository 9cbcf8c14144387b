package market

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/core/types"
)

const (
	Version   = "v0.1.0"
	DBVersion = 1
)

const (
	// DefaultListingFee is the flat listing fee in reference units, charged
	// when a list intent is submitted.
	DefaultListingFee = "0.025"

	// DefaultRoyaltyBps is used when a mint carries no explicit royalty.
	DefaultRoyaltyBps uint16 = 250
)

// startingBlock pins the first block the marketplace contracts were live at,
// so fresh deployments skip the empty prefix of the chain.
var startingBlock = map[common.Network]types.BlockRef{
	common.NetworkMainnet: {
		Height:   19432000,
		Hash:     ethcommon.HexToHash("0x2b4b3b09b6b784ad3bd8b0c4e14046ed2bf42e2fe82cbb03b74e02a11c5bd3f1"),
		PrevHash: ethcommon.HexToHash("0x89fba5ee22b54b410d1c2476eef133a214a22e2e788b9b8026c8d4e12b6a0cce"),
	},
	common.NetworkTestnet: {},
	common.NetworkDevnet:  {},
}
