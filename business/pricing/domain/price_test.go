package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/internal/asset"
)

func TestPriceQuote_Validate(t *testing.T) {
	pair := NewTokenPair(asset.WETH, asset.USDC)
	now := time.Now()

	tests := []struct {
		name    string
		quote   PriceQuote
		wantErr error
	}{
		{
			name:  "valid",
			quote: NewPriceQuote(pair, "uniswap_v2", decimal.NewFromInt(3000), decimal.Zero, now),
		},
		{
			name:    "zero_price",
			quote:   NewPriceQuote(pair, "uniswap_v2", decimal.Zero, decimal.Zero, now),
			wantErr: ErrNonPositivePrice,
		},
		{
			name:    "negative_liquidity",
			quote:   NewPriceQuote(pair, "uniswap_v2", decimal.NewFromInt(1), decimal.NewFromInt(-1), now),
			wantErr: ErrNegativeDepth,
		},
		{
			name:    "missing_exchange",
			quote:   NewPriceQuote(pair, "", decimal.NewFromInt(1), decimal.Zero, now),
			wantErr: ErrMissingExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quote.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpotPrice_DecimalAdjusted(t *testing.T) {
	// 10 WETH against 30,000 USDC
	base := asset.NewAmount(asset.WETH, new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)))
	quote := asset.NewAmount(asset.USDC, big.NewInt(30_000_000_000))

	got, err := SpotPrice(base, quote)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("price = %s, want 3000", got)
	}
}

func TestResolvePairs(t *testing.T) {
	reg := asset.DefaultRegistry()

	pairs, err := ResolvePairs(reg, []string{"WETH/USDC", "wbtc/usdt"})
	if err != nil {
		t.Fatalf("ResolvePairs: %v", err)
	}
	if pairs[0].Key() != "WETH/USDC" || pairs[1].Key() != "WBTC/USDT" {
		t.Errorf("keys = %s, %s", pairs[0].Key(), pairs[1].Key())
	}

	if _, err := ResolvePairs(reg, []string{"PEPE/USDC"}); err == nil {
		t.Error("expected unknown token error")
	}
}
