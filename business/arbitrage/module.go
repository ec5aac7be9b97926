// Package arbitrage implements the arbitrage bounded context: opportunity
// detection, the shared opportunity store and the global scan loop.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/flasharb/business/arbitrage/di"
	"github.com/fd1az/flasharb/business/arbitrage/infra"
	"github.com/fd1az/flasharb/business/arbitrage/infra/memstore"
	blockchainDI "github.com/fd1az/flasharb/business/blockchain/di"
	persistenceDI "github.com/fd1az/flasharb/business/persistence/di"
	pricingDI "github.com/fd1az/flasharb/business/pricing/di"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
	"github.com/fd1az/flasharb/internal/wsconn"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Store, func(sr di.ServiceRegistry) app.OpportunityStore {
		cfg := sr.Get("config").(*config.Config)
		return memstore.New(cfg.Detector.MinProfitDecimal())
	})

	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		rates := make(map[string]decimal.Decimal, len(cfg.Exchanges))
		for _, ex := range cfg.Exchanges {
			rates[ex.ID] = ex.FeeRateDecimal()
		}
		calc := app.NewProfitCalculator(
			cfg.Detector.NotionalDecimal(),
			cfg.Detector.FlashloanFeeRateDecimal(),
			app.NewFeeSchedule(rates, cfg.Detector.DefaultFeeRateDecimal()),
		)

		det, err := app.NewDetector(calc, cfg.Detector.MinProfitDecimal(), log)
		if err != nil {
			panic("failed to create detector: " + err.Error())
		}
		return det
	})

	di.RegisterToken(c, arbitrageDI.StreamHub, func(sr di.ServiceRegistry) *wsconn.Hub {
		log := sr.Get("logger").(logger.LoggerInterface)
		return wsconn.NewHub(wsconn.DefaultConfig(), log)
	})

	di.RegisterToken(c, arbitrageDI.Reporters, func(sr di.ServiceRegistry) app.Reporters {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reporters := app.Reporters{infra.NewStreamReporter(arbitrageDI.GetStreamHub(sr), log)}
		if program, ok := sr.Get("tuiProgram").(infra.Sender); ok && cfg.TUIMode {
			reporters = append(reporters, infra.NewTUIReporter(program))
		} else {
			reporters = append(reporters, infra.NewConsoleReporter())
		}
		return reporters
	})

	di.RegisterToken(c, arbitrageDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		scanner, err := app.NewScanner(
			pricingDI.GetAggregator(sr),
			pricingDI.GetPairs(sr),
			blockchainDI.GetGasService(sr),
			arbitrageDI.GetDetector(sr),
			arbitrageDI.GetStore(sr),
			persistenceDI.GetOpportunityRepository(sr),
			arbitrageDI.GetReporters(sr),
			app.ScannerConfig{
				Interval:          cfg.Scanner.Interval,
				StalenessWindow:   cfg.Scanner.StalenessWindow,
				NativePair:        cfg.Scanner.NativePair,
				NativeUSDFallback: cfg.Scanner.NativeUSDFallbackDecimal(),
			},
			log,
		)
		if err != nil {
			panic("failed to create scanner: " + err.Error())
		}
		return scanner
	})

	return nil
}

// Startup resolves the scan pipeline; the loop itself is supervised by main.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	arbitrageDI.GetScanner(mono.Services())
	hub := arbitrageDI.GetStreamHub(mono.Services())
	mono.OnClose(func() error {
		hub.Close()
		return nil
	})

	log.Info(ctx, "arbitrage module started")
	return nil
}
