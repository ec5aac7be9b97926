package apm

import (
	"testing"

	"github.com/fd1az/flasharb/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := map[string]Provider{
		"zipkin":     ZipkinProvider,
		" OTLP_GRPC": OTLPGRPCProvider,
		"otlp_http":  OTLPHTTPProvider,
		"console":    ConsoleProvider,
		"newrelic":   EmptyProvider,
		"":           EmptyProvider,
	}
	for in, want := range tests {
		if got := ParseProvider(in); got != want {
			t.Errorf("ParseProvider(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("api-key=abc, x-team=ops,broken")
	if h["api-key"] != "abc" || h["x-team"] != "ops" || len(h) != 2 {
		t.Errorf("headers = %v", h)
	}
}

func TestNewTraceProvider_EmptyIsNoop(t *testing.T) {
	tp := NewTraceProvider(logger.Discard(), WithProvider(EmptyProvider, Endpoint{}))
	if _, ok := tp.(emptyTraceProvider); !ok {
		t.Fatalf("got %T, want emptyTraceProvider", tp)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
