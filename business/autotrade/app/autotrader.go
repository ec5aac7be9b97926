package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/business/autotrade/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/logger"
)

// CycleOutcome is what one Cycle did.
type CycleOutcome string

const (
	OutcomeInactive      CycleOutcome = "inactive"
	OutcomeTargetReached CycleOutcome = "target_reached"
	OutcomeHalted        CycleOutcome = "halted"
	OutcomeBackpressure  CycleOutcome = "backpressure"
	OutcomeNoOpportunity CycleOutcome = "no_opportunity"
	OutcomeDispatched    CycleOutcome = "dispatched"
)

// Stopped reports whether the outcome ends the actor's loop.
func (o CycleOutcome) Stopped() bool {
	return o == OutcomeInactive || o == OutcomeTargetReached || o == OutcomeHalted
}

type traderMetrics struct {
	cycles     metric.Int64Counter
	dispatched metric.Int64Counter
	halts      metric.Int64Counter
}

// AutoTrader is one actor's trading state machine. Risk counters are only
// mutated under mu.
type AutoTrader struct {
	actorID string
	picker  OpportunityPicker
	exec    TradeExecutor
	logger  logger.LoggerInterface
	now     func() time.Time

	tracer  trace.Tracer
	metrics *traderMetrics

	mu       sync.Mutex
	settings domain.Settings
	risk     domain.RiskState

	inflight sync.WaitGroup
}

// NewAutoTrader creates a stopped trader for actorID.
func NewAutoTrader(
	actorID string,
	settings domain.Settings,
	picker OpportunityPicker,
	exec TradeExecutor,
	log logger.LoggerInterface,
) (*AutoTrader, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	t := &AutoTrader{
		actorID:  actorID,
		picker:   picker,
		exec:     exec,
		logger:   log,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		settings: settings,
		risk: domain.RiskState{
			Status:      domain.StatusStopped,
			DailyProfit: decimal.Zero,
			DailyLoss:   decimal.Zero,
			TotalProfit: decimal.Zero,
		},
	}
	if err := t.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return t, nil
}

func (t *AutoTrader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	t.metrics = &traderMetrics{}

	t.metrics.cycles, err = meter.Int64Counter(
		"autotrade_cycles_total",
		metric.WithDescription("Auto-trade cycles by outcome"),
	)
	if err != nil {
		return err
	}

	t.metrics.dispatched, err = meter.Int64Counter(
		"autotrade_dispatched_total",
		metric.WithDescription("Trades dispatched by auto-traders"),
	)
	if err != nil {
		return err
	}

	t.metrics.halts, err = meter.Int64Counter(
		"autotrade_halts_total",
		metric.WithDescription("Actors halted by the daily loss limit"),
	)
	return err
}

// ActorID returns the actor this trader runs for.
func (t *AutoTrader) ActorID() string {
	return t.actorID
}

// Cycle runs one pass of the trading loop. A dispatched trade keeps running
// after Cycle returns.
func (t *AutoTrader) Cycle(ctx context.Context) CycleOutcome {
	ctx, span := apm.Start(ctx, t.tracer, "autotrade.cycle", attribute.String("actor", t.actorID))
	defer span.End()

	outcome, opp := t.cycle(ctx)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	t.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))

	if outcome == OutcomeDispatched {
		t.metrics.dispatched.Add(ctx, 1)
		t.logger.Info(ctx, "auto-trade dispatched",
			"actor", t.actorID,
			"opportunity_id", opp.ID,
			"pair", opp.PairKey,
			"net_profit", opp.NetProfit.StringFixed(2),
		)
	}
	return outcome
}

func (t *AutoTrader) cycle(ctx context.Context) (CycleOutcome, arbitrageDomain.Opportunity) {
	t.mu.Lock()
	settings := t.settings

	if t.risk.Status != domain.StatusRunning || t.risk.IsHalted {
		t.mu.Unlock()
		return OutcomeInactive, arbitrageDomain.Opportunity{}
	}
	if t.risk.DailyProfit.GreaterThanOrEqual(settings.ProfitTarget) {
		t.risk.Status = domain.StatusStopped
		t.risk.StopReason = domain.StopProfitTarget
		daily := t.risk.DailyProfit
		t.mu.Unlock()
		t.logger.Info(ctx, "profit target reached", "actor", t.actorID, "daily_profit", daily.StringFixed(2))
		return OutcomeTargetReached, arbitrageDomain.Opportunity{}
	}
	if t.risk.LossLimitReached(settings.LossLimit) {
		t.risk.Halt()
		t.mu.Unlock()
		t.metrics.halts.Add(ctx, 1)
		t.logger.Warn(ctx, "daily loss limit reached, halting", "actor", t.actorID)
		return OutcomeHalted, arbitrageDomain.Opportunity{}
	}
	if t.risk.ActiveTradeCount >= settings.MaxConcurrentTrades {
		t.mu.Unlock()
		return OutcomeBackpressure, arbitrageDomain.Opportunity{}
	}
	t.mu.Unlock()

	candidates := t.picker.Query(arbitrageDomain.Filter{
		MinProfit:  decimal.NewNullDecimal(settings.MinProfitThreshold),
		ActiveOnly: true,
		Exchanges:  settings.AllowedExchanges,
	})

	var (
		chosen arbitrageDomain.Opportunity
		found  bool
	)
	for _, c := range candidates {
		if c.IsLocked {
			continue
		}
		if t.picker.AcquireLock(c.ID) {
			chosen, found = c, true
			break
		}
	}
	if !found {
		return OutcomeNoOpportunity, arbitrageDomain.Opportunity{}
	}

	// The trader may have been stopped, or another loop may have dispatched,
	// while the lock was being picked.
	t.mu.Lock()
	if t.risk.Status != domain.StatusRunning || t.risk.IsHalted {
		t.mu.Unlock()
		t.picker.ReleaseLock(chosen.ID)
		return OutcomeInactive, arbitrageDomain.Opportunity{}
	}
	if t.risk.ActiveTradeCount >= t.settings.MaxConcurrentTrades {
		t.mu.Unlock()
		t.picker.ReleaseLock(chosen.ID)
		return OutcomeBackpressure, arbitrageDomain.Opportunity{}
	}
	t.risk.ActiveTradeCount++
	t.mu.Unlock()

	req := executionDomain.TradeRequest{
		ActorID:            t.actorID,
		OpportunityID:      chosen.ID,
		TradeAmount:        settings.TradeAmount,
		MaxSlippagePct:     settings.MaxSlippagePct,
		UseFlashloan:       settings.UseFlashloan,
		FlashloanStrategy:  settings.FlashloanStrategy,
		MinProfitThreshold: settings.MinProfitThreshold,
	}

	t.inflight.Add(1)
	go t.dispatch(context.WithoutCancel(ctx), req, settings.FailureLossEstimate)

	return OutcomeDispatched, chosen
}

// dispatch runs the trade and folds its result into the risk counters. The
// executor owns the lock from here on and releases it itself.
func (t *AutoTrader) dispatch(ctx context.Context, req executionDomain.TradeRequest, failureLoss decimal.Decimal) {
	defer t.inflight.Done()

	result := executionDomain.TradeResult{
		ErrorKind: executionDomain.ErrorSubmissionFailed,
		Error:     "executor panicked",
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(ctx, "auto-trade panicked", "actor", t.actorID, "opportunity_id", req.OpportunityID, "panic", fmt.Sprint(r))
		}
		t.settle(ctx, req, result, failureLoss)
	}()

	result = t.exec.ExecuteLocked(ctx, req)
}

func (t *AutoTrader) settle(ctx context.Context, req executionDomain.TradeRequest, result executionDomain.TradeResult, failureLoss decimal.Decimal) {
	t.mu.Lock()
	t.risk.ActiveTradeCount--

	switch {
	case result.Success:
		t.risk.RecordSuccess(result.ActualProfit, t.now())
	case result.ErrorKind.IsPrecondition():
		// Nothing reached the chain.
	default:
		t.risk.RecordFailure(failureLoss, t.now())
	}

	halted := false
	if !t.risk.IsHalted && t.risk.LossLimitReached(t.settings.LossLimit) {
		t.risk.Halt()
		halted = true
	}
	risk := t.risk
	t.mu.Unlock()

	if result.Success {
		t.logger.Info(ctx, "auto-trade completed",
			"actor", t.actorID,
			"opportunity_id", req.OpportunityID,
			"tx_hash", result.TxHash,
			"profit", result.ActualProfit.StringFixed(2),
			"daily_profit", risk.DailyProfit.StringFixed(2),
		)
	} else {
		t.logger.Warn(ctx, "auto-trade failed",
			"actor", t.actorID,
			"opportunity_id", req.OpportunityID,
			"kind", string(result.ErrorKind),
			"error", result.Error,
			"daily_loss", risk.DailyLoss.StringFixed(2),
		)
	}
	if halted {
		t.metrics.halts.Add(ctx, 1)
		t.logger.Warn(ctx, "daily loss limit reached, halting", "actor", t.actorID, "daily_loss", risk.DailyLoss.StringFixed(2))
	}
}

// Settings returns the current settings.
func (t *AutoTrader) Settings() domain.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// UpdateSettings replaces the settings after validating them.
func (t *AutoTrader) UpdateSettings(s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.settings = s
	t.mu.Unlock()
	return nil
}

// Start marks the trader RUNNING and clears any halt.
func (t *AutoTrader) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.risk.Status = domain.StatusRunning
	t.risk.StopReason = domain.StopNone
	t.risk.IsHalted = false
}

// Stop marks the trader STOPPED. In-flight trades finish on their own.
func (t *AutoTrader) Stop(reason domain.StopReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.risk.Status == domain.StatusStopped {
		return
	}
	t.risk.Status = domain.StatusStopped
	t.risk.StopReason = reason
}

// ResetDaily zeroes the daily counters.
func (t *AutoTrader) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.risk.ResetDaily()
}

// ResetRisk zeroes the daily counters and clears a halt without starting.
func (t *AutoTrader) ResetRisk() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.risk.ResetDaily()
	t.risk.IsHalted = false
}

// Snapshot returns a copy of the trader's state.
func (t *AutoTrader) Snapshot() domain.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.settings
	s.AllowedExchanges = append([]string(nil), s.AllowedExchanges...)
	return domain.Snapshot{ActorID: t.actorID, Settings: s, Risk: t.risk}
}

// Wait blocks until every dispatched trade has settled or ctx is done.
func (t *AutoTrader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
