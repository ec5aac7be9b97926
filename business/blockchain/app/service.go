package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/blockchain/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
)

const (
	tracerName = "blockchain"
	meterName  = "blockchain"
)

// GasService converts the network gas price into the USD cost of one
// arbitrage transaction.
type GasService struct {
	oracle      GasOracle
	model       domain.GasModel
	fallbackUSD decimal.Decimal
	logger      logger.LoggerInterface

	tracer    trace.Tracer
	gasUSD    metric.Float64Gauge
	fallbacks metric.Int64Counter
}

// NewGasService creates a GasService. fallbackUSD is used, clamped, when
// the oracle cannot answer.
func NewGasService(oracle GasOracle, model domain.GasModel, fallbackUSD decimal.Decimal, log logger.LoggerInterface) (*GasService, error) {
	meter := otel.Meter(meterName)

	gasUSD, err := meter.Float64Gauge(
		"gas_cost_usd",
		metric.WithDescription("Estimated USD cost of one arbitrage transaction"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	fallbacks, err := meter.Int64Counter(
		"gas_cost_fallbacks_total",
		metric.WithDescription("Gas estimates that used the fallback cost"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &GasService{
		oracle:      oracle,
		model:       model,
		fallbackUSD: fallbackUSD,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		gasUSD:      gasUSD,
		fallbacks:   fallbacks,
	}, nil
}

// Model returns the configured gas model.
func (s *GasService) Model() domain.GasModel {
	return s.model
}

// EstimateCostUSD returns units × gas price × nativeUSD, clamped to the model
// band. On oracle failure it returns the clamped fallback cost together with
// the oracle error; the cost is usable either way.
func (s *GasService) EstimateCostUSD(ctx context.Context, nativeUSD decimal.Decimal) (decimal.Decimal, error) {
	ctx, span := apm.Start(ctx, s.tracer, "gas.estimate_cost_usd",
		attribute.String("native_usd", nativeUSD.String()),
	)
	defer span.End()

	price, err := s.oracle.GetGasPrice(ctx)
	if err != nil {
		cost := s.model.Clamp(s.fallbackUSD)
		s.fallbacks.Add(ctx, 1)
		apm.Fail(span, err, "oracle failed")
		s.logger.Warn(ctx, "gas oracle unavailable, using fallback cost",
			"fallback_usd", cost.String(),
			"code", apperror.GetCode(err),
			"error", err,
		)
		return cost, err
	}

	cost := s.model.Clamp(domain.NewGasCost(s.model.Units, price.Wei, nativeUSD).USD)

	usd, _ := cost.Float64()
	s.gasUSD.Record(ctx, usd)
	span.SetAttributes(
		attribute.Float64("gwei", price.Gwei()),
		attribute.String("cost_usd", cost.String()),
	)
	return cost, nil
}
