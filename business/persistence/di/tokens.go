// Package di contains dependency injection tokens for the persistence context.
package di

import (
	arbitrageApp "github.com/fd1az/flasharb/business/arbitrage/app"
	executionApp "github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/business/persistence/app"
	"github.com/fd1az/flasharb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Repository            = di.NewToken[app.Repository]("persistence.Repository")
	OpportunityRepository = di.NewToken[arbitrageApp.OpportunityRepository]("persistence.OpportunityRepository")
	TradeRepository       = di.NewToken[executionApp.TradeRepository]("persistence.TradeRepository")
)

// Helper functions for type-safe access
func GetRepository(c di.ServiceRegistry) app.Repository {
	return di.GetToken(c, Repository)
}

func GetOpportunityRepository(c di.ServiceRegistry) arbitrageApp.OpportunityRepository {
	return di.GetToken(c, OpportunityRepository)
}

func GetTradeRepository(c di.ServiceRegistry) executionApp.TradeRepository {
	return di.GetToken(c, TradeRepository)
}
