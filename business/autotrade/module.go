// Package autotrade implements the autotrade bounded context: per-actor
// trading loops with daily risk limits.
package autotrade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	arbitrageDI "github.com/fd1az/flasharb/business/arbitrage/di"
	"github.com/fd1az/flasharb/business/autotrade/app"
	autotradeDI "github.com/fd1az/flasharb/business/autotrade/di"
	"github.com/fd1az/flasharb/business/autotrade/domain"
	executionDI "github.com/fd1az/flasharb/business/execution/di"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
)

// Module implements the autotrade bounded context.
type Module struct{}

// RegisterServices registers all autotrade services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, autotradeDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		loc, err := time.LoadLocation(cfg.AutoTrade.Location)
		if err != nil {
			panic("failed to load autotrade location: " + err.Error())
		}

		sched, err := app.NewScheduler(
			arbitrageDI.GetStore(sr),
			executionDI.GetExecutor(sr),
			SettingsFromConfig(cfg.AutoTrade.Defaults),
			loc,
			log,
		)
		if err != nil {
			panic("failed to create autotrade scheduler: " + err.Error())
		}
		return sched
	})

	return nil
}

// SettingsFromConfig converts the configured defaults.
func SettingsFromConfig(c config.AutoTradeSettingsConfig) domain.Settings {
	return domain.Settings{
		MinProfitThreshold:  decimal.NewFromFloat(c.MinProfit),
		ProfitTarget:        decimal.NewFromFloat(c.ProfitTarget),
		LossLimit:           decimal.NewFromFloat(c.LossLimit),
		MaxConcurrentTrades: c.MaxConcurrentTrades,
		Cooldown:            c.Cooldown,
		AllowedExchanges:    c.AllowedExchanges,
		TradeAmount:         decimal.NewFromFloat(c.TradeAmount),
		MaxSlippagePct:      decimal.NewFromFloat(c.MaxSlippagePct),
		UseFlashloan:        c.UseFlashloan,
		FlashloanStrategy:   executionDomain.Strategy(c.FlashloanStrategy),
		FailureLossEstimate: decimal.NewFromFloat(c.FailureLossEstimate),
	}
}

// Startup starts the actors listed in the config.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	sched := autotradeDI.GetScheduler(mono.Services())
	for _, actor := range cfg.AutoTrade.Actors {
		if _, err := sched.Start(actor, nil); err != nil {
			log.Error(ctx, "failed to start configured actor", "actor", actor, "error", err)
		}
	}

	log.Info(ctx, "autotrade module started",
		"actors", len(cfg.AutoTrade.Actors),
		"location", cfg.AutoTrade.Location,
	)
	return nil
}
