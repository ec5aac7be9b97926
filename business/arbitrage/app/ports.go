package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
)

// OpportunityStore is the shared ledger of known opportunities.
//
// AcquireLock is the only admission point for a trade: it succeeds for
// exactly one caller while the record exists, is active and is unlocked.
// A false result is contention or staleness, never a fault.
type OpportunityStore interface {
	Upsert(draft domain.Draft) (domain.Opportunity, error)
	Get(id string) (domain.Opportunity, bool)
	Query(filter domain.Filter) []domain.Opportunity
	Best(filter domain.Filter) (domain.Opportunity, bool)
	AcquireLock(id string) bool
	ReleaseLock(id string)
	Deactivate(id string) bool
	TakeDeactivated() []domain.Opportunity
	SweepStale(maxAge time.Duration) []string
	Stats() domain.Stats
}

// OpportunityRepository persists snapshots of the store.
type OpportunityRepository interface {
	UpsertOpportunities(ctx context.Context, opps []domain.Opportunity) error
	DeleteOpportunities(ctx context.Context, ids []string) error
	ListOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// Reporter receives every completed scan.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report publishes one scan report.
	Report(ctx context.Context, report domain.ScanReport)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// PriceFeed collects quotes for a scan.
type PriceFeed interface {
	FetchAll(ctx context.Context, pairs []pricingDomain.TokenPair) []pricingDomain.PriceQuote
}

// GasEstimator prices one arbitrage transaction in USD. A non-nil error
// accompanies a usable fallback value.
type GasEstimator interface {
	EstimateCostUSD(ctx context.Context, nativeUSD decimal.Decimal) (decimal.Decimal, error)
}
