// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
)

var hundred = decimal.NewFromInt(100)

// FeeSchedule maps exchange ids to trading fee rates.
type FeeSchedule struct {
	rates    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewFeeSchedule creates a schedule; exchanges missing from rates pay fallback.
func NewFeeSchedule(rates map[string]decimal.Decimal, fallback decimal.Decimal) FeeSchedule {
	return FeeSchedule{rates: rates, fallback: fallback}
}

// Rate returns the fee rate for exchangeID.
func (f FeeSchedule) Rate(exchangeID string) decimal.Decimal {
	if r, ok := f.rates[exchangeID]; ok {
		return r
	}
	return f.fallback
}

// ProfitCalculator prices a buy/sell round trip of a fixed notional.
type ProfitCalculator struct {
	notional         decimal.Decimal
	flashloanFeeRate decimal.Decimal
	fees             FeeSchedule
}

// NewProfitCalculator creates a new ProfitCalculator.
func NewProfitCalculator(notional, flashloanFeeRate decimal.Decimal, fees FeeSchedule) *ProfitCalculator {
	return &ProfitCalculator{
		notional:         notional,
		flashloanFeeRate: flashloanFeeRate,
		fees:             fees,
	}
}

// Notional returns the trade size every candidate is priced at.
func (c *ProfitCalculator) Notional() decimal.Decimal {
	return c.notional
}

// Calculate computes the draft for buying on buy and selling on sell.
//
//	bought   = notional × (1 − buyFee) / buyPrice
//	proceeds = bought × sellPrice × (1 − sellFee)
//	gross    = proceeds − notional
//	net      = gross − gas − notional × flashloanFeeRate
func (c *ProfitCalculator) Calculate(buy, sell pricingDomain.PriceQuote, gasUSD decimal.Decimal) domain.Draft {
	one := decimal.NewFromInt(1)

	bought := c.notional.Mul(one.Sub(c.fees.Rate(buy.ExchangeID))).Div(buy.Price)
	proceeds := bought.Mul(sell.Price).Mul(one.Sub(c.fees.Rate(sell.ExchangeID)))
	gross := proceeds.Sub(c.notional)
	flashFee := c.notional.Mul(c.flashloanFeeRate)

	d := domain.Draft{
		Key: domain.Key{
			PairKey:      buy.PairKey,
			BuyExchange:  buy.ExchangeID,
			SellExchange: sell.ExchangeID,
		},
		BuyPrice:             buy.Price,
		SellPrice:            sell.Price,
		PriceDiffPct:         sell.Price.Sub(buy.Price).Div(buy.Price).Mul(hundred),
		Notional:             c.notional,
		GrossProfit:          gross,
		GasCostEstimate:      gasUSD,
		FlashloanFeeEstimate: flashFee,
		NetProfit:            gross.Sub(gasUSD).Sub(flashFee),
		LiquidityEstimate:    liquidity(buy.Liquidity, sell.Liquidity),
	}

	if p := buy.Pair; p.Base != nil && p.Quote != nil {
		d.Token0 = p.Base.Symbol()
		d.Token1 = p.Quote.Symbol()
		d.Token0Address = p.Base.Address().Hex()
		d.Token1Address = p.Quote.Address().Hex()
	}
	return d
}

// liquidity is the shallower side, or whichever side is known.
func liquidity(a, b decimal.Decimal) decimal.Decimal {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	default:
		return decimal.Min(a, b)
	}
}
