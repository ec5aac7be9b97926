// Package binance implements a QuoteSource over the Binance spot REST API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/pricing/app"
	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/circuitbreaker"
	"github.com/fd1az/flasharb/internal/httpclient"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/ratelimit"
)

const (
	tracerName = "binance"
	meterName  = "binance"

	bookTickerEndpoint = "/api/v3/ticker/bookTicker"

	// DefaultBaseURL is the public spot REST endpoint.
	DefaultBaseURL = "https://api.binance.com"
)

// Ensure Source implements QuoteSource.
var _ app.QuoteSource = (*Source)(nil)

// JSONGetter is the slice of httpclient.Client the source needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Config configures the Binance venue.
type Config struct {
	ExchangeID        string
	RequestsPerMinute int
}

// BookTicker is the REST response for the best bid/ask of a symbol.
type BookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// APIError is an error body returned by the Binance API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteErrors  metric.Int64Counter
	quoteLatency metric.Float64Histogram
}

// Source prices a pair from the top of the Binance order book.
type Source struct {
	id      string
	client  JSONGetter
	cb      *circuitbreaker.CircuitBreaker[*BookTicker]
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource creates a Binance source.
func NewSource(client JSONGetter, cfg Config, log logger.LoggerInterface) (*Source, error) {
	s := &Source{
		id:      cfg.ExchangeID,
		client:  client,
		cb:      circuitbreaker.New[*BookTicker](circuitbreaker.DefaultConfig(cfg.ExchangeID + "-rest")),
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
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
		"binance_quotes_total",
		metric.WithDescription("Total book ticker requests"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteErrors, err = meter.Int64Counter(
		"binance_quote_errors_total",
		metric.WithDescription("Total book ticker errors"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteLatency, err = meter.Float64Histogram(
		"binance_quote_latency_ms",
		metric.WithDescription("Book ticker latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ExchangeID implements QuoteSource.
func (s *Source) ExchangeID() string {
	return s.id
}

// Symbol maps a token pair to a Binance market, e.g. WETH/USDC -> ETHUSDC.
func Symbol(pair domain.TokenPair) string {
	return cexSymbol(pair.Base.Symbol()) + cexSymbol(pair.Quote.Symbol())
}

func cexSymbol(s string) string {
	s = strings.ToUpper(s)
	switch s {
	case "WETH", "WBTC":
		return s[1:]
	}
	return s
}

// FetchPrice implements QuoteSource. Price is the bid/ask mid; liquidity is
// the quote-denominated value resting at the top of both sides.
func (s *Source) FetchPrice(ctx context.Context, pair domain.TokenPair) (*domain.PriceQuote, error) {
	symbol := Symbol(pair)

	ctx, span := apm.Start(ctx, s.tracer, "binance.fetch_price",
		attribute.String("exchange", s.id),
		attribute.String("symbol", symbol),
	)
	defer span.End()

	start := time.Now()
	s.metrics.quotesTotal.Add(ctx, 1)
	defer func() {
		s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	fail := func(err error, desc string) (*domain.PriceQuote, error) {
		s.metrics.quoteErrors.Add(ctx, 1)
		apm.Fail(span, err, desc)
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fail(apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err), apperror.WithContext(s.id)), "rate limited")
	}

	ticker, err := s.cb.Execute(func() (*BookTicker, error) {
		var t BookTicker
		if err := s.client.GetJSON(ctx, bookTickerEndpoint, url.Values{"symbol": {symbol}}, &t); err != nil {
			return nil, decodeAPIError(err)
		}
		return &t, nil
	})
	if err != nil {
		code := apperror.CodeSourceUnavailable
		if circuitbreaker.IsOpen(err) {
			code = apperror.CodeCircuitOpen
		}
		return fail(apperror.New(code, apperror.WithCause(err), apperror.WithContext(s.id+" "+symbol)), "book ticker failed")
	}

	price, liquidity, err := ticker.midAndDepth()
	if err != nil {
		return fail(apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err), apperror.WithContext(symbol)), "bad ticker")
	}

	span.SetAttributes(attribute.String("price", price.String()))

	s.logger.Debug(ctx, "binance quote",
		"symbol", symbol,
		"price", price.String(),
		"liquidity", liquidity.StringFixed(2),
	)

	q := domain.NewPriceQuote(pair, s.id, price, liquidity, time.Now())
	return &q, nil
}

func (t *BookTicker) midAndDepth() (decimal.Decimal, decimal.Decimal, error) {
	bid, err := decimal.NewFromString(t.BidPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bid price: %w", err)
	}
	ask, err := decimal.NewFromString(t.AskPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ask price: %w", err)
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.New("empty book")
	}

	bidQty, _ := decimal.NewFromString(t.BidQty)
	askQty, _ := decimal.NewFromString(t.AskQty)

	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	depth := bidQty.Mul(bid).Add(askQty.Mul(ask))
	return mid, depth, nil
}

// decodeAPIError unwraps a Binance error body when one is present.
func decodeAPIError(err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var apiErr APIError
	if json.Unmarshal([]byte(se.Body), &apiErr) == nil && apiErr.Code != 0 {
		return fmt.Errorf("%w: %w", se, &apiErr)
	}
	return err
}
