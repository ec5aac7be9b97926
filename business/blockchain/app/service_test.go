package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/blockchain/domain"
	"github.com/fd1az/flasharb/internal/logger"
)

type stubOracle struct {
	gwei float64
	err  error
}

func (o stubOracle) GetGasPrice(context.Context) (*domain.GasPrice, error) {
	if o.err != nil {
		return nil, o.err
	}
	return domain.NewGasPrice(domain.GweiToWei(o.gwei)), nil
}

func TestGasService_EstimateCostUSD(t *testing.T) {
	model := domain.GasModel{
		Units:  350_000,
		MinUSD: decimal.NewFromInt(1),
		MaxUSD: decimal.NewFromInt(200),
	}

	tests := []struct {
		name    string
		oracle  stubOracle
		native  int64
		fallbk  int64
		want    string
		wantErr bool
	}{
		{"priced", stubOracle{gwei: 20}, 3000, 25, "21", false},
		{"clamped_high", stubOracle{gwei: 400}, 3000, 25, "200", false},
		{"clamped_low", stubOracle{gwei: 0.1}, 3000, 25, "1", false},
		{"oracle_down_uses_fallback", stubOracle{err: errors.New("rpc down")}, 3000, 25, "25", true},
		{"fallback_is_clamped", stubOracle{err: errors.New("rpc down")}, 3000, 500, "200", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewGasService(tt.oracle, model, decimal.NewFromInt(tt.fallbk), logger.Discard())
			if err != nil {
				t.Fatalf("NewGasService: %v", err)
			}

			got, err := svc.EstimateCostUSD(context.Background(), decimal.NewFromInt(tt.native))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("cost = %s, want %s", got, tt.want)
			}
		})
	}
}
