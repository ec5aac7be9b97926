// Package uniswapv3 implements a QuoteSource over the Uniswap V3 QuoterV2.
package uniswapv3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/pricing/app"
	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/circuitbreaker"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/ratelimit"
)

const (
	tracerName = "uniswapv3"
	meterName  = "uniswapv3"
)

// Ensure Source implements QuoteSource.
var _ app.QuoteSource = (*Source)(nil)

// ContractCaller is the read-only slice of ethclient the source needs.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config configures the quoter venue.
type Config struct {
	ExchangeID        string
	Quoter            common.Address
	FeeTiers          []int
	RequestsPerMinute int
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Source prices one whole base token through the quoter, across fee tiers.
type Source struct {
	id        string
	client    ContractCaller
	quoter    common.Address
	quoterABI abi.ABI
	feeTiers  []int

	cb      *circuitbreaker.CircuitBreaker[[]byte]
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource creates a V3 quoter source.
func NewSource(client ContractCaller, cfg Config, log logger.LoggerInterface) (*Source, error) {
	parsedABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = DefaultFeeTiers
	}

	s := &Source{
		id:        cfg.ExchangeID,
		client:    client,
		quoter:    cfg.Quoter,
		quoterABI: parsedABI,
		feeTiers:  tiers,
		cb:        circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig(cfg.ExchangeID + "-quoter")),
		limiter:   ratelimit.New(cfg.RequestsPerMinute),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Source) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sourceMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter(
		"uniswapv3_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswapv3_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswapv3_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	return err
}

// ExchangeID implements QuoteSource.
func (s *Source) ExchangeID() string {
	return s.id
}

// FetchPrice implements QuoteSource using the best fee tier output for
// exactly one base token. Pool depth is not observable here, so liquidity is zero.
func (s *Source) FetchPrice(ctx context.Context, pair domain.TokenPair) (*domain.PriceQuote, error) {
	ctx, span := apm.Start(ctx, s.tracer, "uniswapv3.fetch_price",
		attribute.String("exchange", s.id),
		attribute.String("pair", pair.Key()),
	)
	defer span.End()

	start := time.Now()
	s.metrics.quotesTotal.Add(ctx, 1)
	defer func() {
		s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		s.metrics.quoteErrors.Add(ctx, 1)
		apm.Fail(span, err, "rate limited")
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err), apperror.WithContext(s.id))
	}

	oneBase := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pair.Base.Decimals())), nil)

	var (
		bestOut  *big.Int
		bestTier int
		lastErr  error
	)
	for _, tier := range s.feeTiers {
		out, err := s.quoteForFeeTier(ctx, pair.Base.Address(), pair.Quote.Address(), oneBase, tier)
		if err != nil {
			lastErr = err
			span.AddEvent("fee_tier_failed", trace.WithAttributes(
				attribute.Int("fee_tier", tier),
				attribute.String("error", err.Error()),
			))
			continue
		}
		if bestOut == nil || out.Cmp(bestOut) > 0 {
			bestOut, bestTier = out, tier
		}
	}

	if bestOut == nil || bestOut.Sign() == 0 {
		s.metrics.quoteErrors.Add(ctx, 1)
		err := apperror.New(apperror.CodePoolNotFound,
			apperror.WithCause(lastErr),
			apperror.WithContext(fmt.Sprintf("%s: no pool quoted %s", s.id, pair.Key())))
		apm.Fail(span, err, "no valid quote")
		return nil, err
	}

	price := asset.NewAmount(pair.Quote, bestOut).ToDecimal()

	span.SetAttributes(
		attribute.Int("fee_tier", bestTier),
		attribute.String("price", price.String()),
	)

	s.logger.Debug(ctx, "uniswap v3 quote",
		"exchange", s.id,
		"pair", pair.Key(),
		"fee_tier", bestTier,
		"price", price.String(),
	)

	q := domain.NewPriceQuote(pair, s.id, price, decimal.Zero, time.Now())
	return &q, nil
}

// quoteForFeeTier calls QuoterV2.quoteExactInputSingle for a specific fee tier.
func (s *Source) quoteForFeeTier(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int) (*big.Int, error) {
	callData, err := s.quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	result, err := s.cb.Execute(func() ([]byte, error) {
		return s.client.CallContract(ctx, ethereum.CallMsg{To: &s.quoter, Data: callData}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("quoter call failed for fee tier %d", feeTier)))
	}

	outputs, err := s.quoterABI.Unpack("quoteExactInputSingle", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if len(outputs) < 1 {
		return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
	}
	amountOut, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amountOut type %T", outputs[0])
	}
	return amountOut, nil
}
