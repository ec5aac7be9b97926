// Package domain contains the pricing domain model: token pairs and normalized quotes.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/internal/asset"
)

var (
	ErrNonPositivePrice = errors.New("pricing: price must be positive")
	ErrNegativeDepth    = errors.New("pricing: liquidity cannot be negative")
	ErrMissingExchange  = errors.New("pricing: exchange id is required")
)

// TokenPair is an ordered (base, quote) pair; prices are quote units per base unit.
type TokenPair struct {
	Base  *asset.Asset
	Quote *asset.Asset
}

// NewTokenPair creates a pair.
func NewTokenPair(base, quote *asset.Asset) TokenPair {
	return TokenPair{Base: base, Quote: quote}
}

// Key returns the canonical pair key, e.g. "WETH/USDC".
func (p TokenPair) Key() string {
	return p.Base.Symbol() + "/" + p.Quote.Symbol()
}

func (p TokenPair) String() string {
	return p.Key()
}

// ResolvePairs maps "BASE/QUOTE" keys to registered assets.
func ResolvePairs(reg *asset.Registry, keys []string) ([]TokenPair, error) {
	pairs := make([]TokenPair, 0, len(keys))
	for _, key := range keys {
		b, q, ok := strings.Cut(key, "/")
		if !ok {
			return nil, fmt.Errorf("pricing: invalid pair %q", key)
		}
		base, ok := reg.BySymbol(strings.TrimSpace(b))
		if !ok {
			return nil, fmt.Errorf("pricing: unknown token %q in pair %s", b, key)
		}
		quote, ok := reg.BySymbol(strings.TrimSpace(q))
		if !ok {
			return nil, fmt.Errorf("pricing: unknown token %q in pair %s", q, key)
		}
		pairs = append(pairs, NewTokenPair(base, quote))
	}
	return pairs, nil
}

// PriceQuote is one exchange's normalized price for a pair, valid for one scan cycle.
type PriceQuote struct {
	PairKey    string          `json:"pairKey"`
	Pair       TokenPair       `json:"-"`
	ExchangeID string          `json:"exchangeId"`
	Price      decimal.Decimal `json:"price"`
	Liquidity  decimal.Decimal `json:"liquidity"` // pool depth in quote units, zero when unknown
	ObservedAt time.Time       `json:"observedAt"`
}

// NewPriceQuote creates a quote observed at t.
func NewPriceQuote(pair TokenPair, exchangeID string, price, liquidity decimal.Decimal, t time.Time) PriceQuote {
	return PriceQuote{
		PairKey:    pair.Key(),
		Pair:       pair,
		ExchangeID: exchangeID,
		Price:      price,
		Liquidity:  liquidity,
		ObservedAt: t,
	}
}

// Validate rejects quotes the detector must never see.
func (q PriceQuote) Validate() error {
	if q.ExchangeID == "" {
		return ErrMissingExchange
	}
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositivePrice, q.Price)
	}
	if q.Liquidity.IsNegative() {
		return ErrNegativeDepth
	}
	return nil
}

// SpotPrice returns quoteAmount/baseAmount in whole-token units.
func SpotPrice(baseAmount, quoteAmount asset.Amount) (decimal.Decimal, error) {
	base := baseAmount.ToDecimal()
	if !base.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: zero base amount", ErrNonPositivePrice)
	}
	return quoteAmount.ToDecimal().Div(base), nil
}
