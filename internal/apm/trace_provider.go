package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fd1az/flasharb/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp_grpc"
	OTLPHTTPProvider Provider = "otlp_http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "empty"
)

// ParseProvider maps a config value to a Provider; unknown values are empty.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, ConsoleProvider:
		return p
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

// Endpoint describes where spans are exported.
type Endpoint struct {
	ServiceName string
	URL         string
	Headers     string // "key=value,key2=value2"
}

type TracerOptions struct {
	exporter           sdktrace.SpanExporter
	tracerProviderName string
	serviceName        string
	useEmpty           bool
	err                error
}

type TracerOption func(*TracerOptions)

func WithProvider(provider Provider, ep Endpoint) TracerOption {
	return func(option *TracerOptions) {
		option.serviceName = ep.ServiceName
		option.tracerProviderName = string(provider)

		var (
			exp sdktrace.SpanExporter
			err error
		)
		switch provider {
		case ZipkinProvider:
			exp, err = zipkin.New(ep.URL)
		case OTLPGRPCProvider:
			exp, err = otlptracegrpc.New(context.Background(),
				otlptracegrpc.WithEndpointURL(ep.URL),
				otlptracegrpc.WithHeaders(ParseHeaders(ep.Headers)),
			)
		case OTLPHTTPProvider:
			exp, err = otlptracehttp.New(context.Background(),
				otlptracehttp.WithEndpointURL(ep.URL),
				otlptracehttp.WithHeaders(ParseHeaders(ep.Headers)),
			)
		case ConsoleProvider:
			exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		default:
			option.useEmpty = true
			return
		}

		if err != nil {
			option.err = fmt.Errorf("%s exporter: %w", provider, err)
			return
		}
		option.exporter = exp
	}
}

// ParseHeaders splits "k=v,k2=v2" exporter headers. Malformed pairs are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, kv := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}

// NewTraceProvider installs the global tracer provider. Exporter setup
// failures are logged and leave tracing disabled.
func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) TraceProvider {
	opts := &TracerOptions{}
	for _, opt := range options {
		opt(opts)
	}

	if opts.err != nil {
		log.Error(context.Background(), "Trace exporter unavailable, tracing disabled", "error", opts.err)
		return NewEmptyTraceProvider()
	}
	if opts.useEmpty || opts.exporter == nil {
		return NewEmptyTraceProvider()
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", opts.tracerProviderName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(context.Background(), "Tracing enabled", "provider", opts.tracerProviderName)

	return &traceProvider{tp}
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
