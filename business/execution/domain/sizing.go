package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Sizing holds flashloan sizing parameters, all in quote-token units.
type Sizing struct {
	FixedAmount decimal.Decimal
	MaxFraction decimal.Decimal // share of liquidity for the percentage strategy
	MaxAmount   decimal.Decimal // cap for percentage and dynamic, zero means none
	BaseAmount  decimal.Decimal // dynamic amount at netProfit == minProfit
	// Ceilings are per-token hard caps keyed by upper-case symbol.
	Ceilings map[string]decimal.Decimal
}

// SizingInput is the opportunity-dependent part of a sizing decision.
type SizingInput struct {
	UseFlashloan bool
	Strategy     Strategy
	Requested    decimal.Decimal
	Liquidity    decimal.Decimal
	NetProfit    decimal.Decimal
	MinProfit    decimal.Decimal
	Token        string
}

// Amount returns the trade amount. Without a flashloan the requested amount
// is used; otherwise the strategy decides and requested is ignored. The
// result is always clamped to the token ceiling and never negative.
func (s Sizing) Amount(in SizingInput) decimal.Decimal {
	var amount decimal.Decimal

	switch {
	case !in.UseFlashloan:
		amount = in.Requested
	case in.Strategy == StrategyFixed:
		amount = s.FixedAmount
	case in.Strategy == StrategyDynamic:
		amount = s.BaseAmount
		if in.MinProfit.IsPositive() {
			amount = s.BaseAmount.Mul(in.NetProfit).Div(in.MinProfit)
		}
		amount = s.capped(amount)
	default:
		amount = s.capped(in.Liquidity.Mul(s.MaxFraction))
	}

	if ceiling, ok := s.Ceilings[strings.ToUpper(in.Token)]; ok && ceiling.IsPositive() {
		amount = decimal.Min(amount, ceiling)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func (s Sizing) capped(amount decimal.Decimal) decimal.Decimal {
	if s.MaxAmount.IsPositive() {
		return decimal.Min(amount, s.MaxAmount)
	}
	return amount
}
