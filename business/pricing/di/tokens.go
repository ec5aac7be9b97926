// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/flasharb/business/pricing/app"
	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("pricing.Aggregator")
	Pairs      = di.NewToken[[]domain.TokenPair]("pricing.Pairs")
)

// Private dependency tokens - internal to pricing module
var (
	Sources = di.NewToken[[]app.QuoteSource]("pricing:sources")
)

// Helper functions for type-safe access
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetPairs(c di.ServiceRegistry) []domain.TokenPair {
	return di.GetToken(c, Pairs)
}

func GetSources(c di.ServiceRegistry) []app.QuoteSource {
	return di.GetToken(c, Sources)
}
