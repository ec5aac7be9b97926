// Package app defines the persistence ports shared by the storage backends.
package app

import (
	"context"

	arbitrageApp "github.com/fd1az/flasharb/business/arbitrage/app"
	executionApp "github.com/fd1az/flasharb/business/execution/app"
)

// Repository stores the opportunity snapshot and the trade audit log.
type Repository interface {
	arbitrageApp.OpportunityRepository
	executionApp.TradeRepository

	Ping(ctx context.Context) error
	Close() error
}
