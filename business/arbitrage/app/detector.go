package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/logger"
)

const (
	tracerName = "arbitrage"
	meterName  = "arbitrage"
)

type detectorMetrics struct {
	candidates metric.Int64Counter
	qualified  metric.Int64Counter
}

// Detector turns one scan's quotes into opportunity drafts.
type Detector struct {
	calculator *ProfitCalculator
	minProfit  decimal.Decimal
	logger     logger.LoggerInterface

	tracer  trace.Tracer
	metrics *detectorMetrics
}

// NewDetector creates a new arbitrage Detector.
func NewDetector(calculator *ProfitCalculator, minProfit decimal.Decimal, log logger.LoggerInterface) (*Detector, error) {
	d := &Detector{
		calculator: calculator,
		minProfit:  minProfit,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	candidates, err := meter.Int64Counter(
		"arbitrage_candidates_total",
		metric.WithDescription("Exchange pairs evaluated by the detector"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	qualified, err := meter.Int64Counter(
		"arbitrage_qualified_total",
		metric.WithDescription("Drafts meeting the minimum profit"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	d.metrics = &detectorMetrics{candidates: candidates, qualified: qualified}

	return d, nil
}

// MinProfit returns the admission threshold.
func (d *Detector) MinProfit() decimal.Decimal {
	return d.minProfit
}

// Detect evaluates every exchange pair quoting the same token pair and
// returns the drafts whose net profit reaches the minimum, best first.
func (d *Detector) Detect(ctx context.Context, quotes []pricingDomain.PriceQuote, gasUSD decimal.Decimal) []domain.Draft {
	ctx, span := apm.Start(ctx, d.tracer, "arbitrage.detect",
		attribute.Int("quotes", len(quotes)),
		attribute.String("gas_usd", gasUSD.String()),
	)
	defer span.End()

	groups := groupLatest(quotes)

	pairKeys := make([]string, 0, len(groups))
	for k := range groups {
		pairKeys = append(pairKeys, k)
	}
	sort.Strings(pairKeys)

	var (
		drafts    []domain.Draft
		evaluated int64
	)
	for _, pk := range pairKeys {
		group := groups[pk]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.Price.Equal(b.Price) {
					continue
				}
				buy, sell := a, b
				if b.Price.LessThan(a.Price) {
					buy, sell = b, a
				}

				evaluated++
				draft := d.calculator.Calculate(buy, sell, gasUSD)
				if draft.NetProfit.LessThan(d.minProfit) {
					continue
				}
				drafts = append(drafts, draft)
			}
		}
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		if c := drafts[i].NetProfit.Cmp(drafts[j].NetProfit); c != 0 {
			return c > 0
		}
		return drafts[i].Key.String() < drafts[j].Key.String()
	})

	d.metrics.candidates.Add(ctx, evaluated)
	d.metrics.qualified.Add(ctx, int64(len(drafts)))
	span.SetAttributes(
		attribute.Int64("evaluated", evaluated),
		attribute.Int("qualified", len(drafts)),
	)

	d.logger.Debug(ctx, "detection complete",
		"pairs", len(pairKeys),
		"evaluated", evaluated,
		"qualified", len(drafts),
	)
	return drafts
}

// groupLatest keeps the most recent quote per (pair, exchange) and returns
// them grouped by pair, each group ordered by exchange id.
func groupLatest(quotes []pricingDomain.PriceQuote) map[string][]pricingDomain.PriceQuote {
	type slot struct{ pair, exchange string }

	latest := make(map[slot]pricingDomain.PriceQuote, len(quotes))
	for _, q := range quotes {
		if q.Validate() != nil {
			continue
		}
		k := slot{q.PairKey, q.ExchangeID}
		if prev, ok := latest[k]; ok && prev.ObservedAt.After(q.ObservedAt) {
			continue
		}
		latest[k] = q
	}

	groups := make(map[string][]pricingDomain.PriceQuote)
	for k, q := range latest {
		groups[k.pair] = append(groups[k.pair], q)
	}
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].ExchangeID < g[j].ExchangeID })
	}
	return groups
}
