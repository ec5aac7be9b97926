// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Exchange kinds
const (
	KindUniswapV2 = "uniswap_v2"
	KindUniswapV3 = "uniswap_v3"
	KindBinance   = "binance"
)

// Fallback policies for trade requests that name a missing opportunity.
const (
	PolicyStrictID       = "strict_id"
	PolicyFallbackToBest = "fallback_to_best"
	PolicyReject         = "reject"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	Ethereum  EthereumConfig    `mapstructure:"ethereum"`
	Tokens    []TokenConfig     `mapstructure:"tokens"`
	Exchanges []ExchangeConfig  `mapstructure:"exchanges"`
	Pairs     []string          `mapstructure:"pairs"`
	Scanner   ScannerConfig     `mapstructure:"scanner"`
	Detector  DetectorConfig    `mapstructure:"detector"`
	Gas       GasConfig         `mapstructure:"gas"`
	Executor  ExecutorConfig    `mapstructure:"executor"`
	AutoTrade AutoTradeConfig   `mapstructure:"autotrade"`
	Keys      map[string]string `mapstructure:"keys"`
	Storage   StorageConfig     `mapstructure:"storage"`
	API       APIConfig         `mapstructure:"api"`
	Health    HealthConfig      `mapstructure:"health"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
	TUIMode   bool              `mapstructure:"-"` // Set at runtime, not from config file
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node and settlement contract configuration.
type EthereumConfig struct {
	HTTPURL             string        `mapstructure:"http_url"`
	ChainID             uint64        `mapstructure:"chain_id"`
	SettlementAddress   string        `mapstructure:"settlement_address"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
}

// SettlementAddressHex returns the settlement contract address as common.Address.
func (c *EthereumConfig) SettlementAddressHex() common.Address {
	return common.HexToAddress(c.SettlementAddress)
}

// TokenConfig describes one tradable token.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	// FlashloanCeiling is the hard cap on a single flashloan, in whole tokens
	// of the pair's quote token. Zero means no cap.
	FlashloanCeiling float64 `mapstructure:"flashloan_ceiling"`
}

// ExchangeConfig describes one quote source.
type ExchangeConfig struct {
	ID                string        `mapstructure:"id"`
	Kind              string        `mapstructure:"kind"`
	FeeRate           float64       `mapstructure:"fee_rate"`
	Router            string        `mapstructure:"router"`
	Factory           string        `mapstructure:"factory"`
	Quoter            string        `mapstructure:"quoter"`
	FeeTiers          []int         `mapstructure:"fee_tiers"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// FeeRateDecimal returns the trading fee rate as decimal.Decimal.
func (c *ExchangeConfig) FeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FeeRate)
}

// ScannerConfig holds the global scan loop settings.
type ScannerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	SourceTimeout     time.Duration `mapstructure:"source_timeout"`
	StalenessWindow   time.Duration `mapstructure:"staleness_window"`
	NativePair        string        `mapstructure:"native_pair"`
	NativeUSDFallback float64       `mapstructure:"native_usd_fallback"`
}

// NativeUSDFallbackDecimal returns the native token fallback rate as decimal.Decimal.
func (c *ScannerConfig) NativeUSDFallbackDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.NativeUSDFallback)
}

// DetectorConfig holds opportunity detection settings.
type DetectorConfig struct {
	Notional         float64 `mapstructure:"notional"`
	MinProfit        float64 `mapstructure:"min_profit"`
	FlashloanFeeRate float64 `mapstructure:"flashloan_fee_rate"`
	DefaultFeeRate   float64 `mapstructure:"default_fee_rate"`
}

// NotionalDecimal returns the notional trade size as decimal.Decimal.
func (c *DetectorConfig) NotionalDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Notional)
}

// MinProfitDecimal returns the minimum net profit as decimal.Decimal.
func (c *DetectorConfig) MinProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfit)
}

// FlashloanFeeRateDecimal returns the flashloan fee rate as decimal.Decimal.
func (c *DetectorConfig) FlashloanFeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FlashloanFeeRate)
}

// DefaultFeeRateDecimal returns the fee rate for unconfigured exchanges.
func (c *DetectorConfig) DefaultFeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultFeeRate)
}

// GasConfig holds the network gas model.
type GasConfig struct {
	Units       uint64        `mapstructure:"units"`
	MinUSD      float64       `mapstructure:"min_usd"`
	MaxUSD      float64       `mapstructure:"max_usd"`
	FallbackUSD float64       `mapstructure:"fallback_usd"`
	MaxGwei     float64       `mapstructure:"max_gwei"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// ExecutorConfig holds trade execution settings.
type ExecutorConfig struct {
	ConfirmTimeout   time.Duration   `mapstructure:"confirm_timeout"`
	RealizedSlippage float64         `mapstructure:"realized_slippage"`
	FallbackPolicy   string          `mapstructure:"fallback_policy"`
	Preflight        bool            `mapstructure:"preflight"`
	DryRun           bool            `mapstructure:"dry_run"`
	DryRunDelay      time.Duration   `mapstructure:"dry_run_delay"`
	Flashloan        FlashloanConfig `mapstructure:"flashloan"`
}

// RealizedSlippageDecimal returns the realized slippage factor as decimal.Decimal.
func (c *ExecutorConfig) RealizedSlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.RealizedSlippage)
}

// FlashloanConfig holds flashloan sizing parameters, in quote-token units.
type FlashloanConfig struct {
	FixedAmount float64 `mapstructure:"fixed_amount"`
	MaxFraction float64 `mapstructure:"max_fraction"`
	MaxAmount   float64 `mapstructure:"max_amount"`
	BaseAmount  float64 `mapstructure:"base_amount"`
}

// AutoTradeConfig holds the per-actor supervisor settings.
type AutoTradeConfig struct {
	Actors   []string                `mapstructure:"actors"`
	Location string                  `mapstructure:"location"`
	Defaults AutoTradeSettingsConfig `mapstructure:"defaults"`
}

// AutoTradeSettingsConfig is the default settings block for new actors.
type AutoTradeSettingsConfig struct {
	MinProfit           float64       `mapstructure:"min_profit"`
	ProfitTarget        float64       `mapstructure:"profit_target"`
	LossLimit           float64       `mapstructure:"loss_limit"`
	MaxConcurrentTrades int           `mapstructure:"max_concurrent_trades"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	AllowedExchanges    []string      `mapstructure:"allowed_exchanges"`
	TradeAmount         float64       `mapstructure:"trade_amount"`
	MaxSlippagePct      float64       `mapstructure:"max_slippage_pct"`
	UseFlashloan        bool          `mapstructure:"use_flashloan"`
	FlashloanStrategy   string        `mapstructure:"flashloan_strategy"`
	FailureLossEstimate float64       `mapstructure:"failure_loss_estimate"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Port              int `mapstructure:"port"`
	RequestsPerMinute int `mapstructure:"requests_per_minute"` // 0 disables limiting
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	keys, err := parseSigningKeys(os.Getenv("ARB_SIGNING_KEYS"))
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 && cfg.Keys == nil {
		cfg.Keys = make(map[string]string, len(keys))
	}
	for actor, key := range keys {
		cfg.Keys[actor] = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseSigningKeys reads "actor=hexkey,actor2=hexkey" pairs.
func parseSigningKeys(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		actor, key, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || actor == "" || key == "" {
			return nil, fmt.Errorf("invalid ARB_SIGNING_KEYS entry %q", entry)
		}
		out[strings.ToLower(actor)] = key
	}
	return out, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.settlement_address", "ARB_SETTLEMENT_ADDRESS")

	// Execution
	v.BindEnv("executor.dry_run", "ARB_DRY_RUN")
	v.BindEnv("executor.fallback_policy", "ARB_FALLBACK_POLICY")

	// Storage
	v.BindEnv("storage.driver", "ARB_STORAGE_DRIVER")
	v.BindEnv("storage.dsn", "ARB_STORAGE_DSN", "DATABASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "flasharb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.receipt_poll_interval", "2s")

	// Mainnet tokens
	v.SetDefault("tokens", []map[string]any{
		{"symbol": "WETH", "address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "decimals": 18, "flashloan_ceiling": 0},
		{"symbol": "USDC", "address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "decimals": 6, "flashloan_ceiling": 250000},
	})
	v.SetDefault("pairs", []string{"WETH/USDC"})

	// Exchanges: Uniswap V2, Sushiswap (V2 fork), Uniswap V3
	v.SetDefault("exchanges", []map[string]any{
		{
			"id": "uniswap_v2", "kind": KindUniswapV2, "fee_rate": 0.003, "enabled": true,
			"router":  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			"factory": "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		},
		{
			"id": "sushiswap", "kind": KindUniswapV2, "fee_rate": 0.003, "enabled": true,
			"router":  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
			"factory": "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
		},
		{
			"id": "uniswap_v3", "kind": KindUniswapV3, "fee_rate": 0.003, "enabled": true,
			"router":    "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45",
			"quoter":    "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
			"fee_tiers": []int{500, 3000},
		},
	})

	// Scanner defaults
	v.SetDefault("scanner.interval", "10s")
	v.SetDefault("scanner.source_timeout", "3s")
	v.SetDefault("scanner.staleness_window", "60s")
	v.SetDefault("scanner.native_pair", "WETH/USDC")
	v.SetDefault("scanner.native_usd_fallback", 3000)

	// Detector defaults
	v.SetDefault("detector.notional", 1000)
	v.SetDefault("detector.min_profit", 10)
	v.SetDefault("detector.flashloan_fee_rate", 0)
	v.SetDefault("detector.default_fee_rate", 0.003)

	// Gas defaults
	v.SetDefault("gas.units", 350000)
	v.SetDefault("gas.min_usd", 1)
	v.SetDefault("gas.max_usd", 200)
	v.SetDefault("gas.fallback_usd", 25)
	v.SetDefault("gas.max_gwei", 500)
	v.SetDefault("gas.cache_ttl", "12s")

	// Executor defaults
	v.SetDefault("executor.confirm_timeout", "60s")
	v.SetDefault("executor.realized_slippage", 0.005)
	v.SetDefault("executor.fallback_policy", PolicyStrictID)
	v.SetDefault("executor.preflight", true)
	v.SetDefault("executor.dry_run", true)
	v.SetDefault("executor.dry_run_delay", "1s")
	v.SetDefault("executor.flashloan.fixed_amount", 10000)
	v.SetDefault("executor.flashloan.max_fraction", 0.1)
	v.SetDefault("executor.flashloan.max_amount", 100000)
	v.SetDefault("executor.flashloan.base_amount", 5000)

	// Auto-trade defaults
	v.SetDefault("autotrade.location", "Local")
	v.SetDefault("autotrade.defaults.min_profit", 10)
	v.SetDefault("autotrade.defaults.profit_target", 500)
	v.SetDefault("autotrade.defaults.loss_limit", 100)
	v.SetDefault("autotrade.defaults.max_concurrent_trades", 1)
	v.SetDefault("autotrade.defaults.cooldown", "30s")
	v.SetDefault("autotrade.defaults.trade_amount", 1000)
	v.SetDefault("autotrade.defaults.max_slippage_pct", 0.5)
	v.SetDefault("autotrade.defaults.use_flashloan", true)
	v.SetDefault("autotrade.defaults.flashloan_strategy", "percentage")
	v.SetDefault("autotrade.defaults.failure_loss_estimate", 5)

	// Storage defaults
	v.SetDefault("storage.driver", DriverMemory)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.requests_per_minute", 600)
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flasharb")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if !c.Executor.DryRun && !common.IsHexAddress(c.Ethereum.SettlementAddress) {
		return fmt.Errorf("invalid ethereum.settlement_address: %q", c.Ethereum.SettlementAddress)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("pairs cannot be empty")
	}

	symbols := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("invalid address for token %s: %q", t.Symbol, t.Address)
		}
		symbols[strings.ToUpper(t.Symbol)] = true
	}
	for _, p := range c.Pairs {
		base, quote, err := SplitPair(p)
		if err != nil {
			return err
		}
		if !symbols[base] || !symbols[quote] {
			return fmt.Errorf("pair %s references an unknown token", p)
		}
	}

	ids := make(map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		if ex.ID == "" {
			return fmt.Errorf("exchanges: id is required")
		}
		if ids[ex.ID] {
			return fmt.Errorf("exchanges: duplicate id %s", ex.ID)
		}
		ids[ex.ID] = true

		if ex.FeeRate < 0 || ex.FeeRate >= 1 {
			return fmt.Errorf("exchange %s: fee_rate must be in [0, 1)", ex.ID)
		}
		switch ex.Kind {
		case KindUniswapV2:
			if !common.IsHexAddress(ex.Factory) {
				return fmt.Errorf("exchange %s: invalid factory address", ex.ID)
			}
		case KindUniswapV3:
			if !common.IsHexAddress(ex.Quoter) {
				return fmt.Errorf("exchange %s: invalid quoter address", ex.ID)
			}
		case KindBinance:
		default:
			return fmt.Errorf("exchange %s: unknown kind %q", ex.ID, ex.Kind)
		}
	}

	if c.Scanner.Interval <= 0 || c.Scanner.SourceTimeout <= 0 || c.Scanner.StalenessWindow <= 0 {
		return fmt.Errorf("scanner intervals must be positive")
	}
	if c.Detector.Notional <= 0 {
		return fmt.Errorf("detector.notional must be positive")
	}
	if c.Gas.MinUSD < 0 || c.Gas.MaxUSD < c.Gas.MinUSD {
		return fmt.Errorf("gas band [%v, %v] is invalid", c.Gas.MinUSD, c.Gas.MaxUSD)
	}
	if c.Executor.RealizedSlippage < 0 || c.Executor.RealizedSlippage >= 1 {
		return fmt.Errorf("executor.realized_slippage must be in [0, 1)")
	}

	switch c.Executor.FallbackPolicy {
	case PolicyStrictID, PolicyFallbackToBest, PolicyReject:
	default:
		return fmt.Errorf("unknown executor.fallback_policy %q", c.Executor.FallbackPolicy)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	return nil
}

// Token returns the token configuration for symbol.
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return TokenConfig{}, false
}

// Exchange returns the exchange configuration for id.
func (c *Config) Exchange(id string) (ExchangeConfig, bool) {
	for _, ex := range c.Exchanges {
		if ex.ID == id {
			return ex, true
		}
	}
	return ExchangeConfig{}, false
}

// EnabledExchanges returns the exchanges with enabled set.
func (c *Config) EnabledExchanges() []ExchangeConfig {
	var out []ExchangeConfig
	for _, ex := range c.Exchanges {
		if ex.Enabled {
			out = append(out, ex)
		}
	}
	return out
}

// SplitPair parses "BASE/QUOTE" into upper-cased symbols.
func SplitPair(pair string) (base, quote string, err error) {
	b, q, ok := strings.Cut(pair, "/")
	b, q = strings.ToUpper(strings.TrimSpace(b)), strings.ToUpper(strings.TrimSpace(q))
	if !ok || b == "" || q == "" || b == q {
		return "", "", fmt.Errorf("invalid pair %q, want BASE/QUOTE", pair)
	}
	return b, q, nil
}
