package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/httpclient"
	"github.com/fd1az/flasharb/internal/logger"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := httpclient.New(httpclient.WithBaseURL(srv.URL), httpclient.WithProviderName("binance"))
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	s, err := NewSource(client, Config{ExchangeID: "binance"}, logger.Discard())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return s
}

func TestSource_FetchPrice(t *testing.T) {
	var gotSymbol string
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bookTickerEndpoint {
			http.NotFound(w, r)
			return
		}
		gotSymbol = r.URL.Query().Get("symbol")
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDC","bidPrice":"2999.00","bidQty":"2.0","askPrice":"3001.00","askQty":"1.0"}`))
	})

	q, err := s.FetchPrice(context.Background(), domain.NewTokenPair(asset.WETH, asset.USDC))
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}

	if gotSymbol != "ETHUSDC" {
		t.Errorf("symbol = %q, want ETHUSDC", gotSymbol)
	}
	if !q.Price.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("price = %s, want 3000", q.Price)
	}
	// 2*2999 + 1*3001
	if !q.Liquidity.Equal(decimal.NewFromInt(8999)) {
		t.Errorf("liquidity = %s, want 8999", q.Liquidity)
	}
	if q.ExchangeID != "binance" {
		t.Errorf("exchange = %s", q.ExchangeID)
	}
}

func TestSource_FetchPriceErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode apperror.Code
	}{
		{"api_error", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, apperror.CodeSourceUnavailable},
		{"server_error", http.StatusInternalServerError, `oops`, apperror.CodeSourceUnavailable},
		{"empty_book", http.StatusOK, `{"symbol":"ETHUSDC","bidPrice":"0","bidQty":"0","askPrice":"0","askQty":"0"}`, apperror.CodeInvalidQuote},
		{"garbage_price", http.StatusOK, `{"symbol":"ETHUSDC","bidPrice":"x","askPrice":"1"}`, apperror.CodeInvalidQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := s.FetchPrice(context.Background(), domain.NewTokenPair(asset.WETH, asset.USDC))
			if got := apperror.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s (err=%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestDecodeAPIError(t *testing.T) {
	err := decodeAPIError(&httpclient.StatusError{StatusCode: 400, Body: `{"code":-1121,"msg":"Invalid symbol."}`})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1121 {
		t.Errorf("decodeAPIError = %v", err)
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol(domain.NewTokenPair(asset.WBTC, asset.USDT)); got != "BTCUSDT" {
		t.Errorf("Symbol = %s", got)
	}
}
