// Package pricing implements the pricing bounded context: quote sources and
// the per-scan price feed aggregator.
package pricing

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flasharb/business/pricing/app"
	pricingDI "github.com/fd1az/flasharb/business/pricing/di"
	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/business/pricing/infra/binance"
	"github.com/fd1az/flasharb/business/pricing/infra/uniswapv2"
	"github.com/fd1az/flasharb/business/pricing/infra/uniswapv3"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/httpclient"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Sources - private dependency
	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) []app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		sources, err := BuildSources(cfg, ethClient, log)
		if err != nil {
			panic("failed to create quote sources: " + err.Error())
		}
		return sources
	})

	di.RegisterToken(c, pricingDI.Pairs, func(sr di.ServiceRegistry) []domain.TokenPair {
		cfg := sr.Get("config").(*config.Config)
		reg := sr.Get("assetRegistry").(*asset.Registry)

		pairs, err := domain.ResolvePairs(reg, cfg.Pairs)
		if err != nil {
			panic("failed to resolve pairs: " + err.Error())
		}
		return pairs
	})

	// Aggregator (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		agg, err := app.NewAggregator(pricingDI.GetSources(sr), app.AggregatorConfig{
			SourceTimeout: cfg.Scanner.SourceTimeout,
		}, log)
		if err != nil {
			panic("failed to create aggregator: " + err.Error())
		}
		return agg
	})

	return nil
}

// BuildSources creates one QuoteSource per enabled exchange.
func BuildSources(cfg *config.Config, chain uniswapv2.ContractCaller, log logger.LoggerInterface) ([]app.QuoteSource, error) {
	var sources []app.QuoteSource
	for _, ex := range cfg.EnabledExchanges() {
		var (
			src app.QuoteSource
			err error
		)
		switch ex.Kind {
		case config.KindUniswapV2:
			src, err = uniswapv2.NewSource(chain, uniswapv2.Config{
				ExchangeID:        ex.ID,
				Factory:           common.HexToAddress(ex.Factory),
				RequestsPerMinute: ex.RequestsPerMinute,
			}, log)
		case config.KindUniswapV3:
			src, err = uniswapv3.NewSource(chain, uniswapv3.Config{
				ExchangeID:        ex.ID,
				Quoter:            common.HexToAddress(ex.Quoter),
				FeeTiers:          ex.FeeTiers,
				RequestsPerMinute: ex.RequestsPerMinute,
			}, log)
		case config.KindBinance:
			src, err = newBinanceSource(ex, log)
		default:
			err = fmt.Errorf("unknown kind %q", ex.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", ex.ID, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newBinanceSource(ex config.ExchangeConfig, log logger.LoggerInterface) (app.QuoteSource, error) {
	baseURL := ex.BaseURL
	if baseURL == "" {
		baseURL = binance.DefaultBaseURL
	}
	client, err := httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithProviderName(ex.ID),
		httpclient.WithRequestTimeout(ex.Timeout),
	)
	if err != nil {
		return nil, err
	}
	return binance.NewSource(client, binance.Config{
		ExchangeID:        ex.ID,
		RequestsPerMinute: ex.RequestsPerMinute,
	}, log)
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	agg := pricingDI.GetAggregator(mono.Services())
	pairs := pricingDI.GetPairs(mono.Services())

	log.Info(ctx, "pricing module started",
		"sources", len(agg.Sources()),
		"pairs", len(pairs),
	)
	return nil
}
