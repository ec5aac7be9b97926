package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/logger"
)

func newTestDetector(t *testing.T, notional, minProfit int64) *Detector {
	t.Helper()
	calc := NewProfitCalculator(decimal.NewFromInt(notional), decimal.Zero, flatFees("0.003"))
	d, err := NewDetector(calc, decimal.NewFromInt(minProfit), logger.Discard())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestDetector_BuysLowSellsHigh(t *testing.T) {
	d := newTestDetector(t, 6000, 10)

	drafts := d.Detect(context.Background(), []pricingDomain.PriceQuote{
		quote("dex_b", 3030, 0),
		quote("dex_a", 3000, 0),
	}, decimal.NewFromInt(5))

	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if drafts[0].BuyExchange != "dex_a" || drafts[0].SellExchange != "dex_b" {
		t.Errorf("direction = %s", drafts[0].Key)
	}
}

func TestDetector_FiltersBelowMinProfit(t *testing.T) {
	d := newTestDetector(t, 1000, 10)

	drafts := d.Detect(context.Background(), []pricingDomain.PriceQuote{
		quote("dex_a", 3000, 0),
		quote("dex_b", 3030, 0),
	}, decimal.NewFromInt(5))

	if len(drafts) != 0 {
		t.Errorf("drafts = %d, want none (net below threshold)", len(drafts))
	}
}

func TestDetector_EveryQualifyingPairReturned(t *testing.T) {
	d := newTestDetector(t, 10000, 10)

	drafts := d.Detect(context.Background(), []pricingDomain.PriceQuote{
		quote("dex_a", 3000, 0),
		quote("dex_b", 3030, 0),
		quote("dex_c", 3060, 0),
		quote("dex_d", 3000, 0), // same price as dex_a: skipped
	}, decimal.NewFromInt(5))

	// a->b, a->c, d->b, d->c, b->c
	if len(drafts) != 5 {
		t.Fatalf("drafts = %d, want 5", len(drafts))
	}
	for i := 1; i < len(drafts); i++ {
		if drafts[i].NetProfit.GreaterThan(drafts[i-1].NetProfit) {
			t.Errorf("drafts not sorted by net profit at %d", i)
		}
	}
	if drafts[0].SellExchange != "dex_c" {
		t.Errorf("best draft = %s", drafts[0].Key)
	}
}

func TestDetector_LatestQuoteWins(t *testing.T) {
	d := newTestDetector(t, 6000, 10)

	stale := quote("dex_b", 3030, 0)
	fresh := quote("dex_b", 3001, 0)
	fresh.ObservedAt = stale.ObservedAt.Add(time.Second)

	drafts := d.Detect(context.Background(), []pricingDomain.PriceQuote{
		quote("dex_a", 3000, 0), fresh, stale,
	}, decimal.NewFromInt(5))

	if len(drafts) != 0 {
		t.Errorf("drafts = %d, want none: fresh quote removes the spread", len(drafts))
	}
}

func TestDetector_IgnoresInvalidQuotes(t *testing.T) {
	d := newTestDetector(t, 6000, 10)

	drafts := d.Detect(context.Background(), []pricingDomain.PriceQuote{
		quote("dex_a", 3000, 0),
		quote("dex_b", 0, 0),
	}, decimal.NewFromInt(5))

	if len(drafts) != 0 {
		t.Errorf("drafts = %d, want 0", len(drafts))
	}
}
