// Package execution implements the execution bounded context: flashloan
// sizing, settlement submission and the trade audit trail.
package execution

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	arbitrageDI "github.com/fd1az/flasharb/business/arbitrage/di"
	"github.com/fd1az/flasharb/business/execution/app"
	executionDI "github.com/fd1az/flasharb/business/execution/di"
	"github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/business/execution/infra/keys"
	"github.com/fd1az/flasharb/business/execution/infra/settlement"
	persistenceDI "github.com/fd1az/flasharb/business/persistence/di"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.SigningKeys, func(sr di.ServiceRegistry) app.SigningKeys {
		cfg := sr.Get("config").(*config.Config)
		kr, err := keys.NewKeyring(cfg.Keys)
		if err != nil {
			panic("failed to create keyring: " + err.Error())
		}
		return kr
	})

	di.RegisterToken(c, executionDI.Settlement, func(sr di.ServiceRegistry) app.Settlement {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Executor.DryRun {
			return settlement.NewDryRun(cfg.Executor.DryRunDelay, cfg.Gas.Units, log)
		}

		routers := make(map[string]common.Address)
		for _, ex := range cfg.EnabledExchanges() {
			if common.IsHexAddress(ex.Router) {
				routers[ex.ID] = common.HexToAddress(ex.Router)
			}
		}

		client, err := settlement.NewClient(
			sr.Get("ethClient").(*ethclient.Client),
			settlement.Config{
				Address:      cfg.Ethereum.SettlementAddressHex(),
				ChainID:      new(big.Int).SetUint64(cfg.Ethereum.ChainID),
				Routers:      routers,
				Tokens:       sr.Get("assetRegistry").(*asset.Registry),
				GasLimit:     cfg.Gas.Units,
				PollInterval: cfg.Ethereum.ReceiptPollInterval,
			},
			log,
		)
		if err != nil {
			panic("failed to create settlement client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, executionDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		exec, err := app.NewExecutor(
			arbitrageDI.GetStore(sr),
			executionDI.GetSettlement(sr),
			executionDI.GetSigningKeys(sr),
			persistenceDI.GetTradeRepository(sr),
			app.ExecutorConfig{
				ConfirmTimeout:   cfg.Executor.ConfirmTimeout,
				RealizedSlippage: cfg.Executor.RealizedSlippageDecimal(),
				Preflight:        cfg.Executor.Preflight,
				DefaultMinProfit: cfg.Detector.MinProfitDecimal(),
				Sizing:           sizingFromConfig(cfg),
			},
			log,
		)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}
		return exec
	})

	return nil
}

func sizingFromConfig(cfg *config.Config) domain.Sizing {
	fl := cfg.Executor.Flashloan
	ceilings := make(map[string]decimal.Decimal)
	for _, t := range cfg.Tokens {
		if t.FlashloanCeiling > 0 {
			ceilings[strings.ToUpper(t.Symbol)] = decimal.NewFromFloat(t.FlashloanCeiling)
		}
	}
	return domain.Sizing{
		FixedAmount: decimal.NewFromFloat(fl.FixedAmount),
		MaxFraction: decimal.NewFromFloat(fl.MaxFraction),
		MaxAmount:   decimal.NewFromFloat(fl.MaxAmount),
		BaseAmount:  decimal.NewFromFloat(fl.BaseAmount),
		Ceilings:    ceilings,
	}
}

// Startup resolves the executor so misconfiguration fails at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	executionDI.GetExecutor(mono.Services())

	mode := "live"
	if cfg.Executor.DryRun {
		mode = "dry-run"
	}
	log.Info(ctx, "execution module started",
		"mode", mode,
		"actors_with_keys", len(cfg.Keys),
		"confirm_timeout", cfg.Executor.ConfirmTimeout.String(),
	)
	return nil
}
