package common

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

var supportedNetworks = map[Network]struct{}{
	NetworkMainnet: {},
	NetworkTestnet: {},
	NetworkDevnet:  {},
}

// chainIds follows the ledger's EIP-155 style chain identifiers.
var chainIds = map[Network]uint64{
	NetworkMainnet: 1,
	NetworkTestnet: 5,
	NetworkDevnet:  31337,
}

func (n Network) IsSupported() bool {
	_, ok := supportedNetworks[n]
	return ok
}

func (n Network) ChainId() uint64 {
	return chainIds[n]
}

func (n Network) String() string {
	return string(n)
}
