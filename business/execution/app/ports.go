package app

import (
	"context"
	"crypto/ecdsa"

	"github.com/shopspring/decimal"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/business/execution/domain"
)

// OpportunityLedger is the part of the opportunity store the executor needs.
type OpportunityLedger interface {
	Get(id string) (arbitrageDomain.Opportunity, bool)
	AcquireLock(id string) bool
	ReleaseLock(id string)
	Deactivate(id string) bool
}

// Settlement talks to the on-chain settlement contract.
type Settlement interface {
	// EstimateProfit simulates the order and returns the expected profit in TokenA units.
	EstimateProfit(ctx context.Context, order domain.Order) (decimal.Decimal, error)

	// Submit signs and broadcasts the order, returning the transaction hash.
	Submit(ctx context.Context, key *ecdsa.PrivateKey, order domain.Order) (string, error)

	// WaitReceipt blocks until the transaction is mined or ctx is done.
	WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error)
}

// SigningKeys resolves an actor's signing key.
type SigningKeys interface {
	SigningKey(ctx context.Context, actorID string) (*ecdsa.PrivateKey, error)
}

// TradeRepository is the append-only trade audit log.
type TradeRepository interface {
	SaveTrade(ctx context.Context, rec domain.TradeRecord) error
	ListTrades(ctx context.Context, actorID string, limit int) ([]domain.TradeRecord, error)
}
