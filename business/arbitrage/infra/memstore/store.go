// Package memstore is the in-process OpportunityStore.
package memstore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/internal/apperror"
)

// Ensure Store implements OpportunityStore.
var _ app.OpportunityStore = (*Store)(nil)

// record holds one opportunity. opp is guarded by Store.mu; locked is only
// touched through CAS so upserts can never overwrite it.
type record struct {
	opp    domain.Opportunity
	locked atomic.Bool
}

func (r *record) snapshot() domain.Opportunity {
	o := r.opp
	o.IsLocked = r.locked.Load()
	return o
}

// Store keeps opportunities indexed by id and by composite key.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*record
	byKey    map[domain.Key]*record
	consumed map[string]struct{} // deactivated since the last TakeDeactivated

	minProfit decimal.Decimal
	now       func() time.Time
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store that refuses drafts below minProfit.
func New(minProfit decimal.Decimal, opts ...Option) *Store {
	s := &Store{
		byID:      make(map[string]*record),
		byKey:     make(map[domain.Key]*record),
		consumed:  make(map[string]struct{}),
		minProfit: minProfit,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upsert inserts the draft or refreshes the record with the same key.
// A refresh keeps id, creation time and lock state and reactivates the record.
func (s *Store) Upsert(d domain.Draft) (domain.Opportunity, error) {
	if d.NetProfit.LessThan(s.minProfit) {
		return domain.Opportunity{}, apperror.New(apperror.CodeBelowProfitThreshold,
			apperror.WithContext(d.Key.String()+" net "+d.NetProfit.StringFixed(2)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if r, ok := s.byKey[d.Key]; ok {
		r.opp.Draft = d
		r.opp.IsActive = true
		r.opp.LastUpdatedAt = now
		return r.snapshot(), nil
	}

	r := &record{opp: domain.Opportunity{
		ID:            s.newID(),
		Draft:         d,
		IsActive:      true,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}}
	s.byID[r.opp.ID] = r
	s.byKey[d.Key] = r
	return r.snapshot(), nil
}

// Get returns the opportunity with id.
func (s *Store) Get(id string) (domain.Opportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return domain.Opportunity{}, false
	}
	return r.snapshot(), true
}

// AcquireLock marks id locked iff it exists, is active and is not locked.
func (s *Store) AcquireLock(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok || !r.opp.IsActive {
		return false
	}
	return r.locked.CompareAndSwap(false, true)
}

// ReleaseLock clears the lock. Unknown ids are ignored.
func (s *Store) ReleaseLock(id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.byID[id]; ok {
		r.locked.Store(false)
	}
}

// Deactivate marks id consumed.
func (s *Store) Deactivate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return false
	}
	r.opp.IsActive = false
	r.opp.LastUpdatedAt = s.now()
	s.consumed[id] = struct{}{}
	return true
}

// TakeDeactivated returns the records deactivated since the previous call
// that are still present and still inactive.
func (s *Store) TakeDeactivated() []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Opportunity, 0, len(s.consumed))
	for id := range s.consumed {
		if r, ok := s.byID[id]; ok && !r.opp.IsActive {
			out = append(out, r.snapshot())
		}
	}
	clear(s.consumed)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SweepStale removes unlocked records not refreshed within maxAge and
// returns their ids. Locked records survive regardless of age.
func (s *Store) SweepStale(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)

	var removed []string
	for id, r := range s.byID {
		if r.locked.Load() || !r.opp.LastUpdatedAt.Before(cutoff) {
			continue
		}
		delete(s.byID, id)
		delete(s.byKey, r.opp.Key)
		delete(s.consumed, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}

// Query returns matching opportunities by net profit, best first.
func (s *Store) Query(f domain.Filter) []domain.Opportunity {
	s.mu.RLock()
	out := make([]domain.Opportunity, 0, len(s.byID))
	for _, r := range s.byID {
		o := r.snapshot()
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].NetProfit.Cmp(out[j].NetProfit); c != 0 {
			return c > 0
		}
		if !out[i].LastUpdatedAt.Equal(out[j].LastUpdatedAt) {
			return out[i].LastUpdatedAt.After(out[j].LastUpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Opportunity{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Best returns the most profitable match.
func (s *Store) Best(f domain.Filter) (domain.Opportunity, bool) {
	f.Offset, f.Limit = 0, 1
	res := s.Query(f)
	if len(res) == 0 {
		return domain.Opportunity{}, false
	}
	return res[0], true
}

// Stats summarizes the store.
func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := domain.Stats{Total: len(s.byID)}
	first := true
	for _, r := range s.byID {
		if r.locked.Load() {
			st.Locked++
		}
		if !r.opp.IsActive {
			continue
		}
		st.Active++
		st.TotalNetProfit = st.TotalNetProfit.Add(r.opp.NetProfit)
		if first || r.opp.NetProfit.GreaterThan(st.BestNetProfit) {
			st.BestNetProfit = r.opp.NetProfit
			first = false
		}
	}
	return st
}
