// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var (
	weiPerGwei  = decimal.New(1, 9)
	weiPerEther = decimal.New(1, 18)
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Timestamp: time.Now(),
	}
}

// Gwei returns the price in gwei.
func (p *GasPrice) Gwei() float64 {
	f, _ := decimal.NewFromBigInt(p.Wei, 0).Div(weiPerGwei).Float64()
	return f
}

// GweiToWei converts a gwei amount to wei, truncating sub-wei fractions.
func GweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Mul(weiPerGwei).BigInt()
}

// GasCost is the USD cost of spending Units gas at a given price.
type GasCost struct {
	Units     uint64
	WeiPrice  *big.Int
	NativeUSD decimal.Decimal
	USD       decimal.Decimal
}

// NewGasCost computes units × weiPrice (in native token) × nativeUSD.
func NewGasCost(units uint64, weiPrice *big.Int, nativeUSD decimal.Decimal) GasCost {
	totalWei := decimal.NewFromBigInt(weiPrice, 0).Mul(decimal.NewFromInt(int64(units)))
	return GasCost{
		Units:     units,
		WeiPrice:  weiPrice,
		NativeUSD: nativeUSD,
		USD:       totalWei.Div(weiPerEther).Mul(nativeUSD),
	}
}

// GasModel bounds the USD gas estimate fed to the detector.
type GasModel struct {
	Units  uint64
	MinUSD decimal.Decimal
	MaxUSD decimal.Decimal
}

// Clamp returns usd limited to [MinUSD, MaxUSD]. A zero MaxUSD means no upper bound.
func (m GasModel) Clamp(usd decimal.Decimal) decimal.Decimal {
	if usd.LessThan(m.MinUSD) {
		return m.MinUSD
	}
	if m.MaxUSD.IsPositive() && usd.GreaterThan(m.MaxUSD) {
		return m.MaxUSD
	}
	return usd
}
