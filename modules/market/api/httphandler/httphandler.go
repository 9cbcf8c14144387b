package httphandler

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
)

type HttpHandler struct {
	usecase *usecase.Usecase
	network common.Network
}

func New(network common.Network, usecase *usecase.Usecase) *HttpHandler {
	return &HttpHandler{
		usecase: usecase,
		network: network,
	}
}

type HttpResponse[T any] = common.HttpResponse[T]

func parseAddress(input string) (ethcommon.Address, bool) {
	if !ethcommon.IsHexAddress(input) {
		return ethcommon.Address{}, false
	}
	return ethcommon.HexToAddress(input), true
}
