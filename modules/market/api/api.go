package api

import (
	"github.com/mintline/marketplace-indexer/common"
	"github.com/mintline/marketplace-indexer/modules/market/api/httphandler"
	"github.com/mintline/marketplace-indexer/modules/market/usecase"
)

func NewHTTPHandler(network common.Network, usecase *usecase.Usecase) *httphandler.HttpHandler {
	return httphandler.New(network, usecase)
}
