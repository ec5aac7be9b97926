// Package memory is the Repository used when nothing is persisted to disk.
// Opportunities already live in the in-process store, so only the recent
// trade history is kept.
package memory

import (
	"context"
	"sync"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/business/persistence/app"
)

// DefaultTradeCapacity bounds the trade history.
const DefaultTradeCapacity = 1000

var _ app.Repository = (*Repository)(nil)

// Repository keeps the newest trades in memory.
type Repository struct {
	mu       sync.RWMutex
	trades   []executionDomain.TradeRecord // oldest first
	seen     map[string]struct{}
	capacity int
}

// New creates a Repository holding at most capacity trades.
func New(capacity int) *Repository {
	if capacity <= 0 {
		capacity = DefaultTradeCapacity
	}
	return &Repository{capacity: capacity, seen: make(map[string]struct{})}
}

func (r *Repository) UpsertOpportunities(context.Context, []arbitrageDomain.Opportunity) error {
	return nil
}

func (r *Repository) DeleteOpportunities(context.Context, []string) error {
	return nil
}

func (r *Repository) ListOpportunities(context.Context, int) ([]arbitrageDomain.Opportunity, error) {
	return []arbitrageDomain.Opportunity{}, nil
}

// SaveTrade appends rec, evicting the oldest record when full.
func (r *Repository) SaveTrade(_ context.Context, rec executionDomain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[rec.AttemptID]; dup {
		return nil
	}
	if len(r.trades) == r.capacity {
		delete(r.seen, r.trades[0].AttemptID)
		r.trades = r.trades[1:]
	}
	r.trades = append(r.trades, rec)
	r.seen[rec.AttemptID] = struct{}{}
	return nil
}

// ListTrades returns the newest trades first.
func (r *Repository) ListTrades(_ context.Context, actorID string, limit int) ([]executionDomain.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []executionDomain.TradeRecord{}
	for i := len(r.trades) - 1; i >= 0; i-- {
		if actorID != "" && r.trades[i].ActorID != actorID {
			continue
		}
		out = append(out, r.trades[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Repository) Ping(context.Context) error { return nil }

func (r *Repository) Close() error { return nil }
