// Package persistence implements the persistence bounded context: the
// opportunity snapshot and the trade audit log.
package persistence

import (
	"context"
	"fmt"
	"time"

	arbitrageApp "github.com/fd1az/flasharb/business/arbitrage/app"
	executionApp "github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/business/persistence/app"
	persistenceDI "github.com/fd1az/flasharb/business/persistence/di"
	"github.com/fd1az/flasharb/business/persistence/infra/memory"
	"github.com/fd1az/flasharb/business/persistence/infra/postgres"
	"github.com/fd1az/flasharb/business/persistence/infra/sqlite"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/monolith"
)

const pingTimeout = 5 * time.Second

// Module implements the persistence bounded context.
type Module struct{}

// RegisterServices registers all persistence services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, persistenceDI.Repository, func(sr di.ServiceRegistry) app.Repository {
		cfg := sr.Get("config").(*config.Config)

		repo, err := Open(context.Background(), cfg.Storage)
		if err != nil {
			panic("failed to open storage: " + err.Error())
		}
		return repo
	})

	di.RegisterToken(c, persistenceDI.OpportunityRepository, func(sr di.ServiceRegistry) arbitrageApp.OpportunityRepository {
		return persistenceDI.GetRepository(sr)
	})

	di.RegisterToken(c, persistenceDI.TradeRepository, func(sr di.ServiceRegistry) executionApp.TradeRepository {
		return persistenceDI.GetRepository(sr)
	})

	return nil
}

// Open returns the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (app.Repository, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(memory.DefaultTradeCapacity), nil
	case config.DriverSQLite:
		return sqlite.New(cfg.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Startup checks the storage is reachable and registers its close.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	repo := persistenceDI.GetRepository(mono.Services())

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}
	mono.OnClose(repo.Close)

	log.Info(ctx, "persistence module started", "driver", cfg.Storage.Driver)
	return nil
}
