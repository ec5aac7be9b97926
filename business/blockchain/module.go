// Package blockchain implements the blockchain bounded context: gas pricing
// for the opportunity detector.
package blockchain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/blockchain/app"
	blockchainDI "github.com/fd1az/flasharb/business/blockchain/di"
	"github.com/fd1az/flasharb/business/blockchain/domain"
	"github.com/fd1az/flasharb/business/blockchain/infra/ethereum"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register GasOracle (private - internal dependency)
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		oracleCfg.CacheTTL = cfg.Gas.CacheTTL
		if cfg.Gas.MaxGwei > 0 {
			oracleCfg.MaxGasPrice = domain.GweiToWei(cfg.Gas.MaxGwei)
		}

		oracle, err := ethereum.NewGasOracle(ethClient, oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register GasService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.GasService, func(sr di.ServiceRegistry) *app.GasService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		model := domain.GasModel{
			Units:  cfg.Gas.Units,
			MinUSD: decimal.NewFromFloat(cfg.Gas.MinUSD),
			MaxUSD: decimal.NewFromFloat(cfg.Gas.MaxUSD),
		}
		svc, err := app.NewGasService(blockchainDI.GetGasOracle(sr), model, decimal.NewFromFloat(cfg.Gas.FallbackUSD), log)
		if err != nil {
			panic("failed to create gas service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	oracle := blockchainDI.GetGasOracle(mono.Services())

	// Probe the node; a failure is not fatal, scans fall back to the configured gas cost.
	if pinger, ok := oracle.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			log.Error(ctx, "ethereum node not reachable", "error", err)
		}
	}
	if closer, ok := oracle.(interface{ Close() error }); ok {
		mono.OnClose(closer.Close)
	}

	log.Info(ctx, "blockchain module started")
	return nil
}
