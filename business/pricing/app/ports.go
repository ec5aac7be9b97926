// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/flasharb/business/pricing/domain"
)

// QuoteSource wraps one external price provider (an exchange router or an oracle).
type QuoteSource interface {
	// ExchangeID identifies the venue; it keys fee rates and routes downstream.
	ExchangeID() string

	// FetchPrice returns the current normalized price for pair.
	FetchPrice(ctx context.Context, pair domain.TokenPair) (*domain.PriceQuote, error)
}
