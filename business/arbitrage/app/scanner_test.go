package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/business/arbitrage/infra/memstore"
	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/logger"
)

var pair = pricingDomain.NewTokenPair(asset.WETH, asset.USDC)

type fakeFeed struct {
	mu     sync.Mutex
	quotes []pricingDomain.PriceQuote
}

func (f *fakeFeed) set(q ...pricingDomain.PriceQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = q
}

func (f *fakeFeed) FetchAll(context.Context, []pricingDomain.TokenPair) []pricingDomain.PriceQuote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pricingDomain.PriceQuote(nil), f.quotes...)
}

type fakeGas struct {
	usd       decimal.Decimal
	err       error
	gotNative decimal.Decimal
}

func (g *fakeGas) EstimateCostUSD(_ context.Context, nativeUSD decimal.Decimal) (decimal.Decimal, error) {
	g.gotNative = nativeUSD
	return g.usd, g.err
}

type fakeRepo struct {
	upserted []domain.Opportunity
	deleted  []string
}

func (r *fakeRepo) UpsertOpportunities(_ context.Context, opps []domain.Opportunity) error {
	r.upserted = append(r.upserted, opps...)
	return nil
}

func (r *fakeRepo) DeleteOpportunities(_ context.Context, ids []string) error {
	r.deleted = append(r.deleted, ids...)
	return nil
}

func (r *fakeRepo) ListOpportunities(context.Context, int) ([]domain.Opportunity, error) {
	return r.upserted, nil
}

type captureReporter struct {
	mu      sync.Mutex
	reports []domain.ScanReport
	started bool
	stopped bool
}

func (c *captureReporter) Start(context.Context) error {
	c.started = true
	return nil
}

func (c *captureReporter) Report(_ context.Context, r domain.ScanReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *captureReporter) Stop() error {
	c.stopped = true
	return nil
}

func (c *captureReporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

type harness struct {
	scanner  *app.Scanner
	store    *memstore.Store
	feed     *fakeFeed
	gas      *fakeGas
	repo     *fakeRepo
	reporter *captureReporter
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		feed:     &fakeFeed{},
		gas:      &fakeGas{usd: decimal.NewFromInt(5)},
		repo:     &fakeRepo{},
		reporter: &captureReporter{},
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	minProfit := decimal.NewFromInt(10)
	h.store = memstore.New(minProfit, memstore.WithClock(func() time.Time { return h.now }))

	calc := app.NewProfitCalculator(decimal.NewFromInt(6000), decimal.Zero,
		app.NewFeeSchedule(nil, decimal.RequireFromString("0.003")))
	det, err := app.NewDetector(calc, minProfit, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}

	h.scanner, err = app.NewScanner(h.feed, []pricingDomain.TokenPair{pair}, h.gas, det, h.store, h.repo,
		app.Reporters{h.reporter},
		app.ScannerConfig{
			Interval:          10 * time.Millisecond,
			StalenessWindow:   time.Minute,
			NativePair:        "WETH/USDC",
			NativeUSDFallback: decimal.NewFromInt(2500),
		}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func q(exchange string, price int64) pricingDomain.PriceQuote {
	return pricingDomain.NewPriceQuote(pair, exchange, decimal.NewFromInt(price), decimal.Zero, time.Now())
}

func TestScanner_ScanOnceStoresOpportunity(t *testing.T) {
	h := newHarness(t)
	h.feed.set(q("dex_a", 3000), q("dex_b", 3030))

	rep := h.scanner.ScanOnce(context.Background())

	if rep.Detected != 1 || rep.Upserted != 1 {
		t.Fatalf("detected/upserted = %d/%d", rep.Detected, rep.Upserted)
	}
	if !h.gas.gotNative.Equal(decimal.NewFromInt(3015)) {
		t.Errorf("native usd = %s, want mean 3015", h.gas.gotNative)
	}
	if len(rep.Opportunities) != 1 || rep.Opportunities[0].BuyExchange != "dex_a" {
		t.Errorf("opportunities = %+v", rep.Opportunities)
	}
	if len(h.repo.upserted) != 1 {
		t.Errorf("persisted = %d", len(h.repo.upserted))
	}
	if h.reporter.count() != 1 {
		t.Errorf("reports = %d", h.reporter.count())
	}
	if last, ok := h.scanner.LastScan(); !ok || last.Seq != rep.Seq {
		t.Errorf("LastScan = %d, %v", last.Seq, ok)
	}

	// Same quotes again: refreshed, not duplicated.
	h.scanner.ScanOnce(context.Background())
	if h.store.Stats().Total != 1 {
		t.Errorf("records = %d, want 1", h.store.Stats().Total)
	}
}

func TestScanner_SweepsStaleAndDeletes(t *testing.T) {
	h := newHarness(t)
	h.feed.set(q("dex_a", 3000), q("dex_b", 3030))
	first := h.scanner.ScanOnce(context.Background())
	id := first.Opportunities[0].ID

	h.feed.set()
	h.now = h.now.Add(2 * time.Minute)
	rep := h.scanner.ScanOnce(context.Background())

	if len(rep.Swept) != 1 || rep.Swept[0] != id {
		t.Errorf("swept = %v, want [%s]", rep.Swept, id)
	}
	if len(h.repo.deleted) != 1 || h.repo.deleted[0] != id {
		t.Errorf("repo deleted = %v", h.repo.deleted)
	}
	if !h.gas.gotNative.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("native usd = %s, want fallback", h.gas.gotNative)
	}
}

func TestScanner_PersistsConsumedOpportunity(t *testing.T) {
	h := newHarness(t)
	h.feed.set(q("dex_a", 3000), q("dex_b", 3030))
	id := h.scanner.ScanOnce(context.Background()).Opportunities[0].ID

	h.store.Deactivate(id)
	h.feed.set()
	h.repo.upserted = nil
	h.scanner.ScanOnce(context.Background())

	if len(h.repo.upserted) != 1 || h.repo.upserted[0].ID != id || h.repo.upserted[0].IsActive {
		t.Fatalf("persisted = %+v, want the consumed record inactive", h.repo.upserted)
	}

	h.repo.upserted = nil
	h.scanner.ScanOnce(context.Background())
	if len(h.repo.upserted) != 0 {
		t.Errorf("consumed record persisted twice: %+v", h.repo.upserted)
	}
}

func TestScanner_GasFailureUsesFallbackValue(t *testing.T) {
	h := newHarness(t)
	h.gas.err = errors.New("rpc down")
	h.gas.usd = decimal.NewFromInt(25)
	h.feed.set(q("dex_a", 3000), q("dex_b", 3030))

	rep := h.scanner.ScanOnce(context.Background())

	if !rep.GasFailed || !rep.GasUSD.Equal(decimal.NewFromInt(25)) {
		t.Errorf("gas = %s failed=%v", rep.GasUSD, rep.GasFailed)
	}
	// 23.69 gross − 25 gas is below the bar.
	if rep.Detected != 0 {
		t.Errorf("detected = %d", rep.Detected)
	}
}

func TestScanner_RunUntilCancelled(t *testing.T) {
	h := newHarness(t)
	h.feed.set(q("dex_a", 3000), q("dex_b", 3030))

	if err := h.scanner.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.scanner.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.reporter.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.scanner.Stop()

	if h.reporter.count() < 3 {
		t.Errorf("reports = %d, want at least 3", h.reporter.count())
	}
	if !h.reporter.started || !h.reporter.stopped {
		t.Error("reporters not started and stopped")
	}
}
