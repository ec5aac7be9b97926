package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewGasCost(t *testing.T) {
	// 350k gas at 20 gwei with ETH at 3000 = 0.007 ETH = 21 USD
	cost := NewGasCost(350_000, GweiToWei(20), decimal.NewFromInt(3000))
	if !cost.USD.Equal(decimal.NewFromInt(21)) {
		t.Errorf("USD = %s, want 21", cost.USD)
	}
}

func TestGasModel_Clamp(t *testing.T) {
	m := GasModel{Units: 1, MinUSD: decimal.NewFromInt(1), MaxUSD: decimal.NewFromInt(200)}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"below_min", "0.2", "1"},
		{"inside", "42.5", "42.5"},
		{"above_max", "900", "200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Clamp(decimal.RequireFromString(tt.in))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Clamp(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestGasPrice_Gwei(t *testing.T) {
	p := NewGasPrice(big.NewInt(1_500_000_000))
	if p.Gwei() != 1.5 {
		t.Errorf("Gwei = %v, want 1.5", p.Gwei())
	}
}
