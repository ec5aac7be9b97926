package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
)

const defaultReportTop = 20

// ScannerConfig tunes the scan loop.
type ScannerConfig struct {
	Interval          time.Duration
	StalenessWindow   time.Duration
	NativePair        string          // pair whose mean price converts gas to USD
	NativeUSDFallback decimal.Decimal // used when no native quote arrived
	ReportTop         int             // opportunities included in each report
}

type scannerMetrics struct {
	scans        metric.Int64Counter
	scanDuration metric.Float64Histogram
	swept        metric.Int64Counter
	active       metric.Int64Gauge
}

// Scanner runs the global fetch → detect → store cycle.
type Scanner struct {
	feed      PriceFeed
	pairs     []pricingDomain.TokenPair
	gas       GasEstimator
	detector  *Detector
	store     OpportunityStore
	repo      OpportunityRepository
	reporters Reporter
	config    ScannerConfig
	logger    logger.LoggerInterface

	tracer  trace.Tracer
	metrics *scannerMetrics

	mu      sync.Mutex
	seq     uint64
	last    domain.ScanReport
	hasLast bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScanner creates a Scanner. repo may be nil.
func NewScanner(
	feed PriceFeed,
	pairs []pricingDomain.TokenPair,
	gas GasEstimator,
	detector *Detector,
	store OpportunityStore,
	repo OpportunityRepository,
	reporters Reporter,
	cfg ScannerConfig,
	log logger.LoggerInterface,
) (*Scanner, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("scanner interval must be positive")
	}
	if cfg.ReportTop <= 0 {
		cfg.ReportTop = defaultReportTop
	}
	if reporters == nil {
		reporters = Reporters{}
	}

	s := &Scanner{
		feed:      feed,
		pairs:     pairs,
		gas:       gas,
		detector:  detector,
		store:     store,
		repo:      repo,
		reporters: reporters,
		config:    cfg,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Scanner) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &scannerMetrics{}

	s.metrics.scans, err = meter.Int64Counter(
		"arbitrage_scans_total",
		metric.WithDescription("Completed scan cycles"),
	)
	if err != nil {
		return err
	}

	s.metrics.scanDuration, err = meter.Float64Histogram(
		"arbitrage_scan_duration_ms",
		metric.WithDescription("Scan cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.swept, err = meter.Int64Counter(
		"arbitrage_swept_total",
		metric.WithDescription("Stale opportunities removed"),
	)
	if err != nil {
		return err
	}

	s.metrics.active, err = meter.Int64Gauge(
		"arbitrage_active_opportunities",
		metric.WithDescription("Active opportunities after the last scan"),
	)
	return err
}

// ScanOnce performs one full cycle. Failures inside the cycle are logged
// and never returned.
func (s *Scanner) ScanOnce(ctx context.Context) domain.ScanReport {
	ctx, span := apm.Start(ctx, s.tracer, "arbitrage.scan")
	defer span.End()

	s.mu.Lock()
	s.seq++
	report := domain.ScanReport{Seq: s.seq, StartedAt: time.Now()}
	s.mu.Unlock()

	report.Quotes = s.feed.FetchAll(ctx, s.pairs)
	report.NativeUSD = s.nativeUSD(report.Quotes)

	gasUSD, err := s.gas.EstimateCostUSD(ctx, report.NativeUSD)
	if err != nil {
		report.GasFailed = true
		s.logger.Warn(ctx, "gas estimate degraded", "gas_usd", gasUSD.String(), "error", err)
	}
	report.GasUSD = gasUSD

	drafts := s.detector.Detect(ctx, report.Quotes, gasUSD)
	report.Detected = len(drafts)

	upserted := make([]domain.Opportunity, 0, len(drafts))
	for _, d := range drafts {
		opp, err := s.store.Upsert(d)
		if err != nil {
			s.logger.Debug(ctx, "draft rejected by store", "key", d.Key.String(), "code", apperror.GetCode(err))
			continue
		}
		upserted = append(upserted, opp)
	}
	report.Upserted = len(upserted)

	report.Swept = s.store.SweepStale(s.config.StalenessWindow)
	s.persist(ctx, append(upserted, s.store.TakeDeactivated()...), report.Swept)

	report.Opportunities = s.store.Query(domain.Filter{ActiveOnly: true, Limit: s.config.ReportTop})
	report.Stats = s.store.Stats()
	report.Duration = time.Since(report.StartedAt)

	s.metrics.scans.Add(ctx, 1)
	s.metrics.scanDuration.Record(ctx, float64(report.Duration.Milliseconds()))
	s.metrics.swept.Add(ctx, int64(len(report.Swept)))
	s.metrics.active.Record(ctx, int64(report.Stats.Active))
	span.SetAttributes(
		attribute.Int("quotes", len(report.Quotes)),
		attribute.Int("detected", report.Detected),
		attribute.Int("swept", len(report.Swept)),
	)

	s.logger.Info(ctx, "scan complete",
		"seq", report.Seq,
		"quotes", len(report.Quotes),
		"detected", report.Detected,
		"swept", len(report.Swept),
		"active", report.Stats.Active,
		"gas_usd", gasUSD.StringFixed(2),
		"duration_ms", report.Duration.Milliseconds(),
	)

	s.reporters.Report(ctx, report)

	s.mu.Lock()
	s.last, s.hasLast = report, true
	s.mu.Unlock()

	return report
}

// nativeUSD is the mean price across native pair quotes.
func (s *Scanner) nativeUSD(quotes []pricingDomain.PriceQuote) decimal.Decimal {
	sum, n := decimal.Zero, 0
	for _, q := range quotes {
		if q.PairKey == s.config.NativePair && q.Price.IsPositive() {
			sum = sum.Add(q.Price)
			n++
		}
	}
	if n == 0 {
		return s.config.NativeUSDFallback
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

func (s *Scanner) persist(ctx context.Context, upserted []domain.Opportunity, swept []string) {
	if s.repo == nil {
		return
	}
	if len(upserted) > 0 {
		if err := s.repo.UpsertOpportunities(ctx, upserted); err != nil {
			s.logger.Warn(ctx, "persist opportunities failed", "count", len(upserted), "error", err)
		}
	}
	if len(swept) > 0 {
		if err := s.repo.DeleteOpportunities(ctx, swept); err != nil {
			s.logger.Warn(ctx, "delete swept opportunities failed", "count", len(swept), "error", err)
		}
	}
}

// Run scans immediately and then on every interval until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.reporters.Start(ctx); err != nil {
		return fmt.Errorf("start reporters: %w", err)
	}
	defer func() {
		if err := s.reporters.Stop(); err != nil {
			s.logger.Warn(ctx, "stop reporters", "error", err)
		}
	}()

	s.logger.Info(ctx, "scanner started", "interval", s.config.Interval.String(), "pairs", len(s.pairs))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.safeScan(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scanner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) safeScan(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "scan panicked", "panic", fmt.Sprint(r))
		}
	}()
	s.ScanOnce(ctx)
}

// Start runs the loop in the background.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scanner already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			s.logger.Error(ctx, "scanner stopped", "error", err)
		}
	}()
	return nil
}

// Stop cancels a loop started with Start and waits for it.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastScan returns the most recent report.
func (s *Scanner) LastScan() (domain.ScanReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Reporters fans a report out to several reporters.
type Reporters []Reporter

// Start starts every reporter.
func (rs Reporters) Start(ctx context.Context) error {
	for _, r := range rs {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Report forwards the report to every reporter.
func (rs Reporters) Report(ctx context.Context, report domain.ScanReport) {
	for _, r := range rs {
		r.Report(ctx, report)
	}
}

// Stop stops every reporter and joins their errors.
func (rs Reporters) Stop() error {
	var errs []error
	for _, r := range rs {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
