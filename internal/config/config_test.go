package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testYAML = `
ethereum:
  http_url: http://localhost:8545
pairs: ["WETH/USDC"]
executor:
  fallback_policy: fallback_to_best
  flashloan:
    max_fraction: 0.2
keys:
  alice: "0xabc"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Executor.FallbackPolicy != PolicyFallbackToBest {
		t.Errorf("fallback_policy = %s", cfg.Executor.FallbackPolicy)
	}
	if cfg.Executor.Flashloan.MaxFraction != 0.2 {
		t.Errorf("max_fraction = %v", cfg.Executor.Flashloan.MaxFraction)
	}
	if cfg.Executor.ConfirmTimeout != 60*time.Second {
		t.Errorf("confirm_timeout = %v", cfg.Executor.ConfirmTimeout)
	}
	if !cfg.Executor.DryRun {
		t.Error("dry_run should default to true")
	}
	if len(cfg.EnabledExchanges()) != 3 {
		t.Errorf("enabled exchanges = %d, want 3", len(cfg.EnabledExchanges()))
	}
	if _, ok := cfg.Token("weth"); !ok {
		t.Error("default WETH token missing")
	}
	if cfg.Keys["alice"] != "0xabc" {
		t.Errorf("keys = %v", cfg.Keys)
	}
	if cfg.Detector.MinProfitDecimal().String() != "10" || cfg.Detector.Notional != 1000 {
		t.Errorf("detector defaults = %+v", cfg.Detector)
	}
}

func TestLoad_SigningKeysFromEnv(t *testing.T) {
	t.Setenv("ARB_SIGNING_KEYS", "Bob=0xdef, carol=0x123")

	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keys["bob"] != "0xdef" || cfg.Keys["carol"] != "0x123" || cfg.Keys["alice"] != "0xabc" {
		t.Errorf("keys = %v", cfg.Keys)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, testYAML))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing rpc", func(c *Config) { c.Ethereum.HTTPURL = "" }, "http_url"},
		{"live without settlement", func(c *Config) { c.Executor.DryRun = false }, "settlement_address"},
		{"bad pair", func(c *Config) { c.Pairs = []string{"WETH"} }, "invalid pair"},
		{"unknown token", func(c *Config) { c.Pairs = []string{"WBTC/USDC"} }, "unknown token"},
		{"bad policy", func(c *Config) { c.Executor.FallbackPolicy = "guess" }, "fallback_policy"},
		{"sqlite without dsn", func(c *Config) { c.Storage.Driver = DriverSQLite }, "storage.dsn"},
		{"inverted gas band", func(c *Config) { c.Gas.MaxUSD = 0.5 }, "gas band"},
		{"duplicate exchange", func(c *Config) { c.Exchanges = append(c.Exchanges, c.Exchanges[0]) }, "duplicate"},
		{"unknown kind", func(c *Config) { c.Exchanges[0].Kind = "curve" }, "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair(" weth/usdc ")
	if err != nil || base != "WETH" || quote != "USDC" {
		t.Errorf("SplitPair = %s, %s, %v", base, quote, err)
	}
	if _, _, err := SplitPair("USDC/USDC"); err == nil {
		t.Error("expected error for identical symbols")
	}
}
