package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/logger"
)

type stubSource struct {
	id    string
	price decimal.Decimal
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubSource) ExchangeID() string { return s.id }

func (s *stubSource) FetchPrice(ctx context.Context, pair domain.TokenPair) (*domain.PriceQuote, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	q := domain.NewPriceQuote(pair, "ignored", s.price, decimal.Zero, time.Time{})
	return &q, nil
}

func newAggregator(t *testing.T, timeout time.Duration, sources ...QuoteSource) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(sources, AggregatorConfig{SourceTimeout: timeout}, logger.Discard())
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return agg
}

func TestAggregator_SkipsFailedAndSlowSources(t *testing.T) {
	good := &stubSource{id: "uniswap_v2", price: decimal.NewFromInt(3000)}
	broken := &stubSource{id: "sushiswap", err: errors.New("execution reverted")}
	slow := &stubSource{id: "uniswap_v3", price: decimal.NewFromInt(3010), delay: time.Second}
	zero := &stubSource{id: "binance", price: decimal.Zero}

	agg := newAggregator(t, 50*time.Millisecond, good, broken, slow, zero)
	pairs := []domain.TokenPair{domain.NewTokenPair(asset.WETH, asset.USDC)}

	start := time.Now()
	quotes := agg.FetchAll(context.Background(), pairs)

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("FetchAll took %v, slow source should be bounded by its timeout", elapsed)
	}
	if len(quotes) != 1 {
		t.Fatalf("quotes = %d, want 1", len(quotes))
	}
	q := quotes[0]
	if q.ExchangeID != "uniswap_v2" || q.PairKey != "WETH/USDC" || q.ObservedAt.IsZero() {
		t.Errorf("quote = %+v", q)
	}
}

func TestAggregator_CallsEverySourceForEveryPair(t *testing.T) {
	a := &stubSource{id: "b_exchange", price: decimal.NewFromInt(10)}
	b := &stubSource{id: "a_exchange", price: decimal.NewFromInt(11)}

	agg := newAggregator(t, time.Second, a, b)
	pairs := []domain.TokenPair{
		domain.NewTokenPair(asset.WETH, asset.USDC),
		domain.NewTokenPair(asset.WBTC, asset.USDC),
	}

	quotes := agg.FetchAll(context.Background(), pairs)

	if a.calls.Load() != 2 || b.calls.Load() != 2 {
		t.Errorf("calls = %d, %d", a.calls.Load(), b.calls.Load())
	}

	want := []string{"WBTC/USDC|a_exchange", "WBTC/USDC|b_exchange", "WETH/USDC|a_exchange", "WETH/USDC|b_exchange"}
	if len(quotes) != len(want) {
		t.Fatalf("quotes = %d, want %d", len(quotes), len(want))
	}
	for i, q := range quotes {
		if got := q.PairKey + "|" + q.ExchangeID; got != want[i] {
			t.Errorf("quotes[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestAggregator_NoSources(t *testing.T) {
	agg := newAggregator(t, time.Second)
	if got := agg.FetchAll(context.Background(), []domain.TokenPair{domain.NewTokenPair(asset.WETH, asset.USDC)}); len(got) != 0 {
		t.Errorf("quotes = %v", got)
	}
}
