package market

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/core/datasources"
	"github.com/mintline/marketplace-indexer/core/indexer"
	"github.com/mintline/marketplace-indexer/internal/config"
	"github.com/mintline/marketplace-indexer/internal/postgres"
	marketapi "github.com/mintline/marketplace-indexer/modules/market/api"
	marketdatagateway "github.com/mintline/marketplace-indexer/modules/market/datagateway"
	"github.com/mintline/marketplace-indexer/modules/market/fees"
	marketindex "github.com/mintline/marketplace-indexer/modules/market/index"
	marketmemory "github.com/mintline/marketplace-indexer/modules/market/repository/memory"
	marketpostgres "github.com/mintline/marketplace-indexer/modules/market/repository/postgres"
	marketusecase "github.com/mintline/marketplace-indexer/modules/market/usecase"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/reportingclient"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
)

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	reportingClient := do.MustInvoke[*reportingclient.ReportingClient](injector)
	ledgerClient := do.MustInvoke[ledger.Client](injector)

	var (
		marketDg      marketdatagateway.MarketDataGateway
		indexerInfoDg marketdatagateway.IndexerInfoDataGateway
	)
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(conf.Modules.Market.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, conf.Modules.Market.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for indexer")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		marketRepo := marketpostgres.NewRepository(pg)
		marketDg = marketRepo
		indexerInfoDg = marketRepo
	case "memory":
		marketRepo := marketmemory.NewRepository()
		marketDg = marketRepo
		indexerInfoDg = marketRepo
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for indexer is not supported", conf.Modules.Market.Database)
	}

	index := marketindex.New()

	processor := NewProcessor(marketDg, indexerInfoDg, index, conf.Network, reportingClient, cleanupFuncs)
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Mount API
	apiHandlers := lo.Uniq(conf.Modules.Market.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			blobStore := do.MustInvoke[blobstore.Store](injector)
			listingFee := conf.Modules.Market.ListingFee
			if listingFee == "" {
				listingFee = DefaultListingFee
			}
			defaultRoyaltyBps := conf.Modules.Market.DefaultRoyaltyBps
			if defaultRoyaltyBps == 0 {
				defaultRoyaltyBps = DefaultRoyaltyBps
			}
			feeCalculator, err := fees.NewCalculator(listingFee, defaultRoyaltyBps)
			if err != nil {
				return nil, errors.Wrap(err, "invalid listing fee configuration")
			}
			marketUsecase := marketusecase.New(marketDg, index, ledgerClient, feeCalculator, blobStore, conf.Modules.Market.FreshnessThreshold)
			marketHTTPHandler := marketapi.NewHTTPHandler(conf.Network, marketUsecase)
			if err := marketHTTPHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount Market API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	datasource := datasources.NewLedgerNode(ledgerClient)
	indexer := indexer.New(processor, datasource)
	return indexer, nil
}
