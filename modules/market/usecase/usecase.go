package usecase

import (
	"time"

	"github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/fees"
	marketindex "github.com/mintline/marketplace-indexer/modules/market/index"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
)

// defaultFreshnessThreshold is how old a clean record may be before a fresh
// read falls back to ledger repair anyway.
const defaultFreshnessThreshold = time.Minute

// Usecase fronts the marketplace: intent submission with local validation and
// fee quoting, mirror reads with optional read repair, and listing queries.
type Usecase struct {
	marketDg           datagateway.MarketDataGateway
	index              *marketindex.Index
	queryEngine        *marketindex.QueryEngine
	ledgerClient       ledger.Client
	feeCalculator      *fees.Calculator
	blobStore          blobstore.Store
	freshnessThreshold time.Duration
}

func New(marketDg datagateway.MarketDataGateway, index *marketindex.Index, ledgerClient ledger.Client, feeCalculator *fees.Calculator, blobStore blobstore.Store, freshnessThreshold time.Duration) *Usecase {
	if freshnessThreshold <= 0 {
		freshnessThreshold = defaultFreshnessThreshold
	}
	return &Usecase{
		marketDg:           marketDg,
		index:              index,
		queryEngine:        marketindex.NewQueryEngine(index),
		ledgerClient:       ledgerClient,
		feeCalculator:      feeCalculator,
		blobStore:          blobStore,
		freshnessThreshold: freshnessThreshold,
	}
}

// FeeCalculator exposes fee quoting to the API layer.
func (u *Usecase) FeeCalculator() *fees.Calculator {
	return u.feeCalculator
}
