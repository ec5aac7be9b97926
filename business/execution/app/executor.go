// Package app implements trade execution against the shared opportunity store.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/logger"
)

const (
	tracerName = "execution"
	meterName  = "execution"

	saveTimeout = 5 * time.Second
)

// ExecutorConfig tunes trade execution.
type ExecutorConfig struct {
	ConfirmTimeout   time.Duration
	RealizedSlippage decimal.Decimal // fraction of estimated profit lost on execution
	Preflight        bool
	DefaultMinProfit decimal.Decimal // dynamic sizing threshold when the request has none
	Sizing           domain.Sizing
}

type executorMetrics struct {
	attempts   metric.Int64Counter
	duration   metric.Float64Histogram
	profit     metric.Float64Counter
	contention metric.Int64Counter
}

// Executor runs one trade attempt per call. It never retries.
type Executor struct {
	ledger     OpportunityLedger
	settlement Settlement
	keys       SigningKeys
	trades     TradeRepository
	config     ExecutorConfig
	logger     logger.LoggerInterface
	now        func() time.Time

	tracer  trace.Tracer
	metrics *executorMetrics
}

// NewExecutor creates an Executor. trades may be nil.
func NewExecutor(
	ledger OpportunityLedger,
	settlement Settlement,
	keys SigningKeys,
	trades TradeRepository,
	cfg ExecutorConfig,
	log logger.LoggerInterface,
) (*Executor, error) {
	if cfg.ConfirmTimeout <= 0 {
		return nil, errors.New("confirm timeout must be positive")
	}
	if cfg.RealizedSlippage.IsNegative() || cfg.RealizedSlippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New("realized slippage must be in [0, 1)")
	}

	e := &Executor{
		ledger:     ledger,
		settlement: settlement,
		keys:       keys,
		trades:     trades,
		config:     cfg,
		logger:     log,
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return e, nil
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &executorMetrics{}

	e.metrics.attempts, err = meter.Int64Counter(
		"execution_attempts_total",
		metric.WithDescription("Trade attempts by outcome"),
	)
	if err != nil {
		return err
	}

	e.metrics.duration, err = meter.Float64Histogram(
		"execution_duration_ms",
		metric.WithDescription("Trade attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	e.metrics.profit, err = meter.Float64Counter(
		"execution_realized_profit_usd",
		metric.WithDescription("Realized profit of completed trades"),
	)
	if err != nil {
		return err
	}

	e.metrics.contention, err = meter.Int64Counter(
		"execution_lock_contention_total",
		metric.WithDescription("Attempts rejected because the opportunity was locked"),
	)
	return err
}

// Execute runs a trade, acquiring the opportunity lock itself.
func (e *Executor) Execute(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	return e.run(ctx, req, false)
}

// ExecuteLocked runs a trade whose opportunity lock the caller already holds.
// The executor releases the lock before returning.
func (e *Executor) ExecuteLocked(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	return e.run(ctx, req, true)
}

// attempt carries one trade through the state machine.
type attempt struct {
	rec       domain.TradeRecord
	span      trace.Span
	logger    logger.LoggerInterface
	holdsLock bool
}

func (a *attempt) transition(ctx context.Context, s domain.State) {
	a.rec.State = s
	a.span.AddEvent(string(s))
	a.logger.Debug(ctx, "trade state", "attempt", a.rec.AttemptID, "state", string(s))
}

func (a *attempt) fail(kind domain.ErrorKind, msg string) domain.TradeResult {
	a.rec.State = domain.StateFailed
	a.rec.Result.Success = false
	a.rec.Result.ErrorKind = kind
	a.rec.Result.Error = msg
	return a.rec.Result
}

func (e *Executor) run(ctx context.Context, req domain.TradeRequest, locked bool) (result domain.TradeResult) {
	ctx, span := apm.Start(ctx, e.tracer, "execution.trade",
		attribute.String("actor", req.ActorID),
		attribute.String("opportunity", req.OpportunityID),
	)
	defer span.End()

	a := &attempt{
		rec: domain.TradeRecord{
			AttemptID:     uuid.NewString(),
			ActorID:       req.ActorID,
			OpportunityID: req.OpportunityID,
			UseFlashloan:  req.UseFlashloan,
			Strategy:      req.FlashloanStrategy,
			State:         domain.StatePending,
			StartedAt:     e.now(),
		},
		span:      span,
		logger:    e.logger,
		holdsLock: locked,
	}
	a.rec.Result.AttemptID = a.rec.AttemptID

	// Every attempt is recorded and its lock released exactly once, panics included.
	defer func() {
		if r := recover(); r != nil {
			apm.Fail(span, fmt.Errorf("panic: %v", r), "executor panicked")
			e.logger.Error(ctx, "trade attempt panicked", "attempt", a.rec.AttemptID, "panic", fmt.Sprint(r))
			result = a.fail(domain.ErrorSubmissionFailed, fmt.Sprintf("executor panicked: %v", r))
		}
		a.rec.FinishedAt = e.now()
		e.record(ctx, a)
		if a.holdsLock {
			e.ledger.ReleaseLock(req.OpportunityID)
		}
	}()

	return e.execute(ctx, a, req)
}

func (e *Executor) execute(ctx context.Context, a *attempt, req domain.TradeRequest) domain.TradeResult {
	a.transition(ctx, domain.StateValidating)

	opp, ok := e.ledger.Get(req.OpportunityID)
	if !ok {
		return a.fail(domain.ErrorValidationFailed, "opportunity no longer exists")
	}
	a.rec.PairKey = opp.PairKey
	a.rec.BuyExchange = opp.BuyExchange
	a.rec.SellExchange = opp.SellExchange
	a.rec.EstimatedProfit = opp.NetProfit

	if !opp.IsActive {
		return a.fail(domain.ErrorValidationFailed, "opportunity is no longer active")
	}
	if !opp.NetProfit.IsPositive() {
		return a.fail(domain.ErrorValidationFailed, "opportunity is no longer profitable")
	}

	key, err := e.keys.SigningKey(ctx, req.ActorID)
	if err != nil {
		return a.fail(domain.ErrorSigningKeyMissing, err.Error())
	}

	if !a.holdsLock {
		if !e.ledger.AcquireLock(req.OpportunityID) {
			e.metrics.contention.Add(ctx, 1)
			return a.fail(domain.ErrorLockContention, "opportunity is already being executed")
		}
		a.holdsLock = true
	}

	minProfit := req.MinProfitThreshold
	if !minProfit.IsPositive() {
		minProfit = e.config.DefaultMinProfit
	}
	amount := e.config.Sizing.Amount(domain.SizingInput{
		UseFlashloan: req.UseFlashloan,
		Strategy:     req.FlashloanStrategy,
		Requested:    req.TradeAmount,
		Liquidity:    opp.LiquidityEstimate,
		NetProfit:    opp.NetProfit,
		MinProfit:    minProfit,
		Token:        opp.Token1,
	})
	a.rec.Amount = amount
	if !amount.IsPositive() {
		return a.fail(domain.ErrorValidationFailed, "trade amount sized to zero")
	}

	order := orderFor(opp, amount, req.UseFlashloan)

	if e.config.Preflight {
		est, err := e.settlement.EstimateProfit(ctx, order)
		if err != nil {
			if isInsufficientFunds(err) {
				return a.fail(domain.ErrorInsufficientFunds, err.Error())
			}
			return a.fail(domain.ErrorValidationFailed, "pre-flight estimate failed: "+err.Error())
		}
		if !est.IsPositive() {
			return a.fail(domain.ErrorValidationFailed, "pre-flight estimate is not profitable")
		}
	}

	a.transition(ctx, domain.StateExecuting)

	txHash, err := e.settlement.Submit(ctx, key, order)
	if err != nil {
		apm.Fail(a.span, err, "submit failed")
		if isInsufficientFunds(err) {
			return a.fail(domain.ErrorInsufficientFunds, err.Error())
		}
		return a.fail(domain.ErrorSubmissionFailed, err.Error())
	}
	a.rec.Result.TxHash = txHash
	a.span.SetAttributes(attribute.String("tx_hash", txHash))

	waitCtx, cancel := context.WithTimeout(ctx, e.config.ConfirmTimeout)
	defer cancel()

	receipt, err := e.settlement.WaitReceipt(waitCtx, txHash)
	if err != nil {
		// Without a receipt the outcome is unknown and is not tracked further.
		return a.fail(domain.ErrorConfirmationTimeout,
			fmt.Sprintf("no confirmation within %s: %v", e.config.ConfirmTimeout, err))
	}
	a.rec.Result.GasUsed = receipt.GasUsed
	if !receipt.Success {
		return a.fail(domain.ErrorExecutionReverted, "transaction reverted")
	}

	actual := opp.NetProfit.Mul(decimal.NewFromInt(1).Sub(e.config.RealizedSlippage))
	e.ledger.Deactivate(req.OpportunityID)

	a.rec.State = domain.StateCompleted
	a.rec.Result.Success = true
	a.rec.Result.ActualProfit = actual
	e.metrics.profit.Add(ctx, actual.InexactFloat64())
	return a.rec.Result
}

// orderFor borrows the quote token and routes through the opportunity's exchanges.
func orderFor(opp arbitrageDomain.Opportunity, amount decimal.Decimal, flashloan bool) domain.Order {
	return domain.Order{
		TokenA:       opp.Token1Address,
		TokenB:       opp.Token0Address,
		AmountIn:     amount,
		BuyRoute:     opp.BuyExchange,
		SellRoute:    opp.SellExchange,
		MinProfit:    opp.NetProfit,
		UseFlashloan: flashloan,
	}
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

func (e *Executor) record(ctx context.Context, a *attempt) {
	outcome := "completed"
	if a.rec.State != domain.StateCompleted {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("error_kind", string(a.rec.Result.ErrorKind)),
	)
	e.metrics.attempts.Add(ctx, 1, attrs)
	e.metrics.duration.Record(ctx, float64(a.rec.FinishedAt.Sub(a.rec.StartedAt).Milliseconds()))

	if a.rec.State == domain.StateCompleted {
		e.logger.Info(ctx, "trade completed",
			"attempt", a.rec.AttemptID,
			"actor", a.rec.ActorID,
			"opportunity", a.rec.OpportunityID,
			"tx", a.rec.Result.TxHash,
			"profit", a.rec.Result.ActualProfit.StringFixed(2),
		)
	} else {
		e.logger.Warn(ctx, "trade failed",
			"attempt", a.rec.AttemptID,
			"actor", a.rec.ActorID,
			"opportunity", a.rec.OpportunityID,
			"kind", string(a.rec.Result.ErrorKind),
			"error", a.rec.Result.Error,
		)
	}

	if e.trades == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := e.trades.SaveTrade(saveCtx, a.rec); err != nil {
		e.logger.Error(ctx, "persist trade record failed", "attempt", a.rec.AttemptID, "error", err)
	}
}
