// Package uniswapv2 implements a QuoteSource over Uniswap V2 style pools
// (Uniswap V2, Sushiswap and other forks sharing the factory/pair ABI).
package uniswapv2

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
	"github.com/fd1az/flasharb/internal/cache"
	"github.com/fd1az/flasharb/internal/circuitbreaker"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/ratelimit"
)

const (
	tracerName = "uniswapv2"
	meterName  = "uniswapv2"

	pairCacheTTL = time.Hour
)

// Ensure Source implements QuoteSource.
var _ app.QuoteSource = (*Source)(nil)

// ContractCaller is the read-only slice of ethclient the source needs.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config configures one V2-style venue.
type Config struct {
	ExchangeID        string
	Factory           common.Address
	RequestsPerMinute int
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteErrors  metric.Int64Counter
	quoteLatency metric.Float64Histogram
}

// pool is the immutable part of a pair lookup.
type pool struct {
	address      common.Address
	baseIsToken0 bool
}

// Source reads spot prices from V2 pair reserves.
type Source struct {
	id         string
	client     ContractCaller
	factory    common.Address
	factoryABI abi.ABI
	pairABI    abi.ABI

	pools   *cache.Cache[string, pool]
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource creates a V2 source.
func NewSource(client ContractCaller, cfg Config, log logger.LoggerInterface) (*Source, error) {
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	s := &Source{
		id:         cfg.ExchangeID,
		client:     client,
		factory:    cfg.Factory,
		factoryABI: factoryABI,
		pairABI:    pairABI,
		pools:      cache.New[string, pool](cache.DefaultSize, pairCacheTTL),
		cb:         circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig(cfg.ExchangeID + "-rpc")),
		limiter:    ratelimit.New(cfg.RequestsPerMinute),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
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
		"uniswapv2_quotes_total",
		metric.WithDescription("Total reserve-based quotes"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswapv2_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswapv2_quote_latency_ms",
		metric.WithDescription("Quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ExchangeID implements QuoteSource.
func (s *Source) ExchangeID() string {
	return s.id
}

// FetchPrice implements QuoteSource. Price is quote reserve over base
// reserve; liquidity is twice the quote reserve.
func (s *Source) FetchPrice(ctx context.Context, pair domain.TokenPair) (q *domain.PriceQuote, err error) {
	ctx, span := apm.Start(ctx, s.tracer, "uniswapv2.fetch_price",
		attribute.String("exchange", s.id),
		attribute.String("pair", pair.Key()),
	)
	defer func() { apm.Finish(span, err) }()

	attrs := metric.WithAttributes(attribute.String("exchange", s.id))
	start := time.Now()
	s.metrics.quotesTotal.Add(ctx, 1, attrs)
	defer func() {
		s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		if err != nil {
			s.metrics.quoteErrors.Add(ctx, 1, attrs)
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err), apperror.WithContext(s.id))
	}

	p, err := s.lookupPool(ctx, pair)
	if err != nil {
		return nil, err
	}

	out, err := s.call(ctx, p.address, s.pairABI, "getReserves")
	if err != nil {
		return nil, err
	}
	if len(out) < 2 {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("getReserves: short output"))
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("getReserves: unexpected types"))
	}

	baseRes, quoteRes := r0, r1
	if !p.baseIsToken0 {
		baseRes, quoteRes = r1, r0
	}
	if baseRes.Sign() == 0 || quoteRes.Sign() == 0 {
		return nil, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s: empty reserves for %s", s.id, pair.Key())))
	}

	baseAmt := asset.NewAmount(pair.Base, baseRes)
	quoteAmt := asset.NewAmount(pair.Quote, quoteRes)
	price, err := domain.SpotPrice(baseAmt, quoteAmt)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err))
	}
	liquidity := quoteAmt.ToDecimal().Mul(decimal.NewFromInt(2))

	span.SetAttributes(attribute.String("price", price.String()))

	quote := domain.NewPriceQuote(pair, s.id, price, liquidity, time.Now())
	return &quote, nil
}

func (s *Source) lookupPool(ctx context.Context, pair domain.TokenPair) (pool, error) {
	key := pair.Base.Address().Hex() + pair.Quote.Address().Hex()
	if p, ok := s.pools.Get(key); ok {
		return p, nil
	}

	out, err := s.call(ctx, s.factory, s.factoryABI, "getPair", pair.Base.Address(), pair.Quote.Address())
	if err != nil {
		return pool{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return pool{}, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s: no pair for %s", s.id, pair.Key())))
	}

	out, err = s.call(ctx, addr, s.pairABI, "token0")
	if err != nil {
		return pool{}, err
	}
	token0, ok := out[0].(common.Address)
	if !ok {
		return pool{}, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("token0: unexpected type"))
	}

	p := pool{address: addr, baseIsToken0: token0 == pair.Base.Address()}
	s.pools.Set(key, p)
	return p, nil
}

func (s *Source) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := s.cb.Execute(func() ([]byte, error) {
		return s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		code := apperror.CodeContractCallFailed
		if circuitbreaker.IsOpen(err) {
			code = apperror.CodeCircuitOpen
		}
		return nil, apperror.New(code, apperror.WithCause(err), apperror.WithContext(s.id+"."+method))
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err),
			apperror.WithContext("decode "+method))
	}
	if len(out) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext(method+": empty output"))
	}
	return out, nil
}
