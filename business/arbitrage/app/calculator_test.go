package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/asset"
)

var wethUSDC = pricingDomain.NewTokenPair(asset.WETH, asset.USDC)

func quote(exchange string, price, liquidity float64) pricingDomain.PriceQuote {
	return pricingDomain.NewPriceQuote(wethUSDC, exchange,
		decimal.NewFromFloat(price), decimal.NewFromFloat(liquidity), time.Unix(1_700_000_000, 0))
}

func flatFees(rate string) FeeSchedule {
	return NewFeeSchedule(nil, decimal.RequireFromString(rate))
}

func TestProfitCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name      string
		notional  string
		flashRate string
		gas       string
		buy, sell pricingDomain.PriceQuote
		wantGross string
		wantNet   string
		tolerance string
	}{
		{
			// 6000 × 0.997 / 3000 × 3030 × 0.997 − 6000
			name:      "two_venues_1pct_apart",
			notional:  "6000",
			flashRate: "0",
			gas:       "5",
			buy:       quote("dex_a", 3000, 0),
			sell:      quote("dex_b", 3030, 0),
			wantGross: "23.82",
			wantNet:   "18.82",
			tolerance: "0.25",
		},
		{
			name:      "small_notional_fees_eat_spread",
			notional:  "1000",
			flashRate: "0",
			gas:       "5",
			buy:       quote("dex_a", 3000, 0),
			sell:      quote("dex_b", 3030, 0),
			wantGross: "3.949",
			wantNet:   "-1.051",
			tolerance: "0.001",
		},
		{
			// 0.09% flashloan fee on 10000 = 9
			name:      "flashloan_fee_deducted",
			notional:  "10000",
			flashRate: "0.0009",
			gas:       "5",
			buy:       quote("dex_a", 3000, 0),
			sell:      quote("dex_b", 3030, 0),
			wantGross: "39.4909",
			wantNet:   "25.4909",
			tolerance: "0.001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewProfitCalculator(
				decimal.RequireFromString(tt.notional),
				decimal.RequireFromString(tt.flashRate),
				flatFees("0.003"),
			)
			d := calc.Calculate(tt.buy, tt.sell, decimal.RequireFromString(tt.gas))

			tol := decimal.RequireFromString(tt.tolerance)
			if d.GrossProfit.Sub(decimal.RequireFromString(tt.wantGross)).Abs().GreaterThan(tol) {
				t.Errorf("gross = %s, want %s ± %s", d.GrossProfit.StringFixed(4), tt.wantGross, tt.tolerance)
			}
			if d.NetProfit.Sub(decimal.RequireFromString(tt.wantNet)).Abs().GreaterThan(tol) {
				t.Errorf("net = %s, want %s ± %s", d.NetProfit.StringFixed(4), tt.wantNet, tt.tolerance)
			}
			want := d.GrossProfit.Sub(d.GasCostEstimate).Sub(d.FlashloanFeeEstimate)
			if !d.NetProfit.Equal(want) {
				t.Errorf("net %s != gross − gas − flashloan fee %s", d.NetProfit, want)
			}
		})
	}
}

func TestProfitCalculator_DraftFields(t *testing.T) {
	calc := NewProfitCalculator(decimal.NewFromInt(1000), decimal.Zero, flatFees("0.003"))
	d := calc.Calculate(quote("dex_a", 3000, 50_000), quote("dex_b", 3030, 20_000), decimal.NewFromInt(5))

	if d.BuyExchange != "dex_a" || d.SellExchange != "dex_b" || d.PairKey != "WETH/USDC" {
		t.Errorf("key = %+v", d.Key)
	}
	if !d.PriceDiffPct.Equal(decimal.NewFromInt(1)) {
		t.Errorf("priceDiffPct = %s, want 1", d.PriceDiffPct)
	}
	if !d.LiquidityEstimate.Equal(decimal.NewFromInt(20_000)) {
		t.Errorf("liquidity = %s, want the shallower side", d.LiquidityEstimate)
	}
	if d.Token0 != "WETH" || d.Token1 != "USDC" || d.Token1Address != asset.AddrUSDCEthereum.Hex() {
		t.Errorf("tokens = %s/%s %s", d.Token0, d.Token1, d.Token1Address)
	}
}

func TestLiquidity(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
	}{
		{"both_known", 100, 40, 40},
		{"buy_unknown", 0, 40, 40},
		{"sell_unknown", 100, 0, 100},
		{"neither_known", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := liquidity(decimal.NewFromInt(tt.a), decimal.NewFromInt(tt.b))
			if !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("liquidity = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestFeeSchedule_Rate(t *testing.T) {
	fees := NewFeeSchedule(map[string]decimal.Decimal{"uniswap_v3": decimal.RequireFromString("0.0005")}, decimal.RequireFromString("0.003"))
	if !fees.Rate("uniswap_v3").Equal(decimal.RequireFromString("0.0005")) {
		t.Error("configured rate not used")
	}
	if !fees.Rate("unknown").Equal(decimal.RequireFromString("0.003")) {
		t.Error("fallback rate not used")
	}
}
