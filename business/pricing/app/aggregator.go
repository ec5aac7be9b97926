package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"

	defaultSourceTimeout = 3 * time.Second
	defaultMaxInFlight   = 16
)

type aggregatorMetrics struct {
	fetchTotal   metric.Int64Counter
	fetchErrors  metric.Int64Counter
	fetchLatency metric.Float64Histogram
	quotesPerRun metric.Int64Histogram
}

// AggregatorConfig tunes FetchAll.
type AggregatorConfig struct {
	SourceTimeout time.Duration // bound on each (source, pair) call
	MaxInFlight   int           // concurrent calls across all sources
}

// Aggregator fans out to every QuoteSource for every pair once per scan.
type Aggregator struct {
	sources []QuoteSource
	config  AggregatorConfig
	logger  logger.LoggerInterface
	now     func() time.Time

	tracer  trace.Tracer
	metrics *aggregatorMetrics
}

// NewAggregator creates an aggregator over sources.
func NewAggregator(sources []QuoteSource, cfg AggregatorConfig, log logger.LoggerInterface) (*Aggregator, error) {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}

	a := &Aggregator{
		sources: sources,
		config:  cfg,
		logger:  log,
		now:     time.Now,
		tracer:  otel.Tracer(tracerName),
	}
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &aggregatorMetrics{}

	a.metrics.fetchTotal, err = meter.Int64Counter(
		"pricing_fetch_total",
		metric.WithDescription("Quote fetches attempted, by exchange"),
	)
	if err != nil {
		return err
	}

	a.metrics.fetchErrors, err = meter.Int64Counter(
		"pricing_fetch_errors_total",
		metric.WithDescription("Quote fetches that failed or timed out, by exchange"),
	)
	if err != nil {
		return err
	}

	a.metrics.fetchLatency, err = meter.Float64Histogram(
		"pricing_fetch_latency_ms",
		metric.WithDescription("Quote fetch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	a.metrics.quotesPerRun, err = meter.Int64Histogram(
		"pricing_quotes_per_scan",
		metric.WithDescription("Valid quotes collected per FetchAll"),
	)
	return err
}

// Sources returns the exchange ids of the configured sources.
func (a *Aggregator) Sources() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ExchangeID()
	}
	return ids
}

// FetchAll calls every source for every pair independently. A failing or
// slow source is logged and skipped; FetchAll itself never fails. Quotes
// are ordered by pair key, then exchange id.
func (a *Aggregator) FetchAll(ctx context.Context, pairs []domain.TokenPair) []domain.PriceQuote {
	ctx, span := apm.Start(ctx, a.tracer, "pricing.fetch_all",
		attribute.Int("sources", len(a.sources)),
		attribute.Int("pairs", len(pairs)),
	)
	defer span.End()

	results := make([]*domain.PriceQuote, len(a.sources)*len(pairs))

	var g errgroup.Group
	g.SetLimit(a.config.MaxInFlight)

	for si, src := range a.sources {
		for pi, pair := range pairs {
			slot := si*len(pairs) + pi
			g.Go(func() error {
				results[slot] = a.fetchOne(ctx, src, pair)
				return nil
			})
		}
	}
	_ = g.Wait()

	quotes := make([]domain.PriceQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].PairKey != quotes[j].PairKey {
			return quotes[i].PairKey < quotes[j].PairKey
		}
		return quotes[i].ExchangeID < quotes[j].ExchangeID
	})

	a.metrics.quotesPerRun.Record(ctx, int64(len(quotes)))
	span.SetAttributes(attribute.Int("quotes", len(quotes)))

	return quotes
}

func (a *Aggregator) fetchOne(ctx context.Context, src QuoteSource, pair domain.TokenPair) *domain.PriceQuote {
	exchange := src.ExchangeID()
	attrs := metric.WithAttributes(attribute.String("exchange", exchange), attribute.String("pair", pair.Key()))

	callCtx, cancel := context.WithTimeout(ctx, a.config.SourceTimeout)
	defer cancel()

	start := a.now()
	a.metrics.fetchTotal.Add(ctx, 1, attrs)

	q, err := src.FetchPrice(callCtx, pair)
	a.metrics.fetchLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err == nil {
		if q == nil {
			err = apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("nil quote"))
		} else {
			q.ExchangeID = exchange
			q.Pair = pair
			q.PairKey = pair.Key()
			if q.ObservedAt.IsZero() {
				q.ObservedAt = a.now()
			}
			if verr := q.Validate(); verr != nil {
				err = apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(verr))
			}
		}
	}

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(err))
		}
		a.metrics.fetchErrors.Add(ctx, 1, attrs)
		a.logger.Warn(ctx, "Quote source unavailable",
			"code", apperror.CodeSourceUnavailable,
			"exchange", exchange,
			"pair", pair.Key(),
			"error", err,
		)
		return nil
	}

	return q
}
