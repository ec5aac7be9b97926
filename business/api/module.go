// Package api implements the api bounded context: the HTTP surface over
// opportunities, trades and auto-trading.
package api

import (
	"context"

	"github.com/fd1az/flasharb/business/api/app"
	apiDI "github.com/fd1az/flasharb/business/api/di"
	"github.com/fd1az/flasharb/business/api/infra/rest"
	arbitrageDI "github.com/fd1az/flasharb/business/arbitrage/di"
	autotradeDI "github.com/fd1az/flasharb/business/autotrade/di"
	executionDI "github.com/fd1az/flasharb/business/execution/di"
	persistenceDI "github.com/fd1az/flasharb/business/persistence/di"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
)

// Module implements the api bounded context.
type Module struct{}

// RegisterServices registers all api services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, apiDI.Service, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewService(
			arbitrageDI.GetStore(sr),
			executionDI.GetExecutor(sr),
			autotradeDI.GetScheduler(sr),
			persistenceDI.GetTradeRepository(sr),
			cfg.Executor.FallbackPolicy,
			log,
		)
		if err != nil {
			panic("failed to create api service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, apiDI.Handler, func(sr di.ServiceRegistry) *rest.Handler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return rest.NewHandler(apiDI.GetService(sr), arbitrageDI.GetStreamHub(sr), cfg.API.RequestsPerMinute, log)
	})

	di.RegisterToken(c, apiDI.Server, func(sr di.ServiceRegistry) *rest.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return rest.NewServer(cfg.API.Port, apiDI.GetHandler(sr).Instrumented(), log)
	})

	return nil
}

// Startup resolves the server so wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()

	apiDI.GetServer(mono.Services())

	mono.Logger().Info(ctx, "api module started",
		"port", cfg.API.Port,
		"fallback_policy", cfg.Executor.FallbackPolicy,
	)
	return nil
}
