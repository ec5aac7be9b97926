// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies an opportunity: one pair bought on one exchange and sold on another.
type Key struct {
	PairKey      string `json:"tokenPairKey"`
	BuyExchange  string `json:"buyExchange"`
	SellExchange string `json:"sellExchange"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s->%s", k.PairKey, k.BuyExchange, k.SellExchange)
}

// Draft is a detector result that has not entered the store yet.
type Draft struct {
	Key

	Token0        string `json:"token0"`
	Token1        string `json:"token1"`
	Token0Address string `json:"token0Address"`
	Token1Address string `json:"token1Address"`

	BuyPrice             decimal.Decimal `json:"buyPrice"`
	SellPrice            decimal.Decimal `json:"sellPrice"`
	PriceDiffPct         decimal.Decimal `json:"priceDiffPct"`
	Notional             decimal.Decimal `json:"notional"`
	GrossProfit          decimal.Decimal `json:"grossProfit"`
	GasCostEstimate      decimal.Decimal `json:"gasCostEstimate"`
	FlashloanFeeEstimate decimal.Decimal `json:"flashloanFeeEstimate"`
	NetProfit            decimal.Decimal `json:"netProfit"`
	LiquidityEstimate    decimal.Decimal `json:"liquidityEstimate"`
}

// Opportunity is a stored draft with identity and lifecycle state.
type Opportunity struct {
	ID string `json:"id"`
	Draft

	IsActive      bool      `json:"isActive"`
	IsLocked      bool      `json:"isLocked"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// IsTradable reports whether the opportunity can still be executed.
func (o Opportunity) IsTradable() bool {
	return o.IsActive && o.NetProfit.IsPositive()
}

// Filter selects opportunities from the store.
type Filter struct {
	MinProfit  decimal.NullDecimal
	ActiveOnly bool
	Limit      int
	Offset     int

	// Exchanges, when set, restricts both legs to these exchange ids.
	Exchanges []string
}

// Matches reports whether o passes every criterion except paging.
func (f Filter) Matches(o Opportunity) bool {
	if f.ActiveOnly && !o.IsActive {
		return false
	}
	if f.MinProfit.Valid && o.NetProfit.LessThan(f.MinProfit.Decimal) {
		return false
	}
	if len(f.Exchanges) > 0 && !(contains(f.Exchanges, o.BuyExchange) && contains(f.Exchanges, o.SellExchange)) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Stats summarizes the store.
type Stats struct {
	Total          int             `json:"total"`
	Active         int             `json:"active"`
	Locked         int             `json:"locked"`
	BestNetProfit  decimal.Decimal `json:"bestNetProfit"`
	TotalNetProfit decimal.Decimal `json:"totalNetProfit"`
}
