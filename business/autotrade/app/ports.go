// Package app runs per-actor auto-trading loops over the shared opportunity store.
package app

import (
	"context"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
)

const (
	tracerName = "autotrade"
	meterName  = "autotrade"
)

// OpportunityPicker is the slice of the opportunity store an auto-trader uses.
type OpportunityPicker interface {
	Query(filter arbitrageDomain.Filter) []arbitrageDomain.Opportunity
	AcquireLock(id string) bool
	ReleaseLock(id string)
}

// TradeExecutor runs a trade whose lock the caller already holds.
type TradeExecutor interface {
	ExecuteLocked(ctx context.Context, req executionDomain.TradeRequest) executionDomain.TradeResult
}
