// Package domain contains the per-actor auto-trading model.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apperror"
)

// Settings are one actor's trading parameters.
type Settings struct {
	MinProfitThreshold  decimal.Decimal          `json:"minProfitThreshold"`
	ProfitTarget        decimal.Decimal          `json:"profitTarget"`
	LossLimit           decimal.Decimal          `json:"lossLimit"`
	MaxConcurrentTrades int                      `json:"maxConcurrentTrades"`
	Cooldown            time.Duration            `json:"cooldown"`
	AllowedExchanges    []string                 `json:"allowedExchanges,omitempty"` // empty allows all
	TradeAmount         decimal.Decimal          `json:"tradeAmount"`
	MaxSlippagePct      decimal.Decimal          `json:"maxSlippagePct"`
	UseFlashloan        bool                     `json:"useFlashloan"`
	FlashloanStrategy   executionDomain.Strategy `json:"flashloanStrategy"`
	// FailureLossEstimate is charged to the daily loss for each failed on-chain attempt.
	FailureLossEstimate decimal.Decimal `json:"failureLossEstimate"`
}

// DefaultSettings returns conservative defaults.
func DefaultSettings() Settings {
	return Settings{
		MinProfitThreshold:  decimal.NewFromInt(10),
		ProfitTarget:        decimal.NewFromInt(500),
		LossLimit:           decimal.NewFromInt(100),
		MaxConcurrentTrades: 1,
		Cooldown:            30 * time.Second,
		TradeAmount:         decimal.NewFromInt(1000),
		MaxSlippagePct:      decimal.RequireFromString("0.5"),
		UseFlashloan:        true,
		FlashloanStrategy:   executionDomain.StrategyPercentage,
		FailureLossEstimate: decimal.NewFromInt(5),
	}
}

// Validate checks every field, returning INVALID_SETTINGS on the first violation.
func (s Settings) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperror.New(apperror.CodeInvalidSettings, apperror.WithContext(fmt.Sprintf(format, args...)))
	}

	switch {
	case s.MinProfitThreshold.IsNegative():
		return invalid("minProfitThreshold must not be negative")
	case !s.ProfitTarget.IsPositive():
		return invalid("profitTarget must be positive")
	case !s.LossLimit.IsPositive():
		return invalid("lossLimit must be positive")
	case s.MaxConcurrentTrades < 1:
		return invalid("maxConcurrentTrades must be at least 1")
	case s.Cooldown < time.Second:
		return invalid("cooldown must be at least 1s")
	case s.TradeAmount.IsNegative():
		return invalid("tradeAmount must not be negative")
	case s.MaxSlippagePct.IsNegative() || s.MaxSlippagePct.GreaterThan(decimal.NewFromInt(100)):
		return invalid("maxSlippagePct must be in [0, 100]")
	case s.FailureLossEstimate.IsNegative():
		return invalid("failureLossEstimate must not be negative")
	}
	if _, err := executionDomain.ParseStrategy(string(s.FlashloanStrategy)); err != nil {
		return invalid("unknown flashloanStrategy %q", s.FlashloanStrategy)
	}
	if !s.UseFlashloan && !s.TradeAmount.IsPositive() {
		return invalid("tradeAmount is required without a flashloan")
	}
	return nil
}
