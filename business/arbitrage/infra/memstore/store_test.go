package memstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/internal/apperror"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	seq := 0
	s := New(decimal.NewFromInt(10),
		WithClock(clk.Now),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("opp-%d", seq) }),
	)
	return s, clk
}

func draft(buy, sell string, net int64) domain.Draft {
	return domain.Draft{
		Key:       domain.Key{PairKey: "WETH/USDC", BuyExchange: buy, SellExchange: sell},
		NetProfit: decimal.NewFromInt(net),
	}
}

func TestStore_UpsertIsIdempotentPerKey(t *testing.T) {
	s, clk := newTestStore(t)

	first, err := s.Upsert(draft("a", "b", 12))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	clk.Advance(time.Second)
	second, err := s.Upsert(draft("a", "b", 20))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("id changed: %s -> %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.LastUpdatedAt.After(first.LastUpdatedAt) {
		t.Errorf("timestamps = %v / %v", second.CreatedAt, second.LastUpdatedAt)
	}

	all := s.Query(domain.Filter{})
	if len(all) != 1 || !all[0].NetProfit.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("records = %+v, want one with net 20", all)
	}
}

func TestStore_UpsertRejectsBelowMinProfit(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Upsert(draft("a", "b", 9))
	if apperror.GetCode(err) != apperror.CodeBelowProfitThreshold {
		t.Errorf("err = %v", err)
	}
	if s.Stats().Total != 0 {
		t.Error("draft below threshold was stored")
	}
}

func TestStore_UpsertKeepsLockAndReactivates(t *testing.T) {
	s, _ := newTestStore(t)

	opp, _ := s.Upsert(draft("a", "b", 12))
	if !s.AcquireLock(opp.ID) {
		t.Fatal("AcquireLock failed")
	}
	s.Deactivate(opp.ID)

	refreshed, _ := s.Upsert(draft("a", "b", 15))
	if !refreshed.IsLocked {
		t.Error("refresh dropped the lock")
	}
	if !refreshed.IsActive {
		t.Error("refresh did not reactivate")
	}
}

func TestStore_ConsumedOpportunityReturnsOnRedetection(t *testing.T) {
	s, clk := newTestStore(t)

	opp, _ := s.Upsert(draft("a", "b", 12))
	clk.Advance(time.Second)
	if !s.Deactivate(opp.ID) {
		t.Fatal("Deactivate failed")
	}
	if s.AcquireLock(opp.ID) {
		t.Error("consumed opportunity was lockable")
	}

	consumed := s.TakeDeactivated()
	if len(consumed) != 1 || consumed[0].ID != opp.ID || consumed[0].IsActive {
		t.Fatalf("TakeDeactivated = %+v", consumed)
	}
	if again := s.TakeDeactivated(); len(again) != 0 {
		t.Errorf("second TakeDeactivated = %+v, want empty", again)
	}

	// The spread is still there on the next scan: same record, tradable again.
	s.Deactivate(opp.ID)
	refreshed, _ := s.Upsert(draft("a", "b", 14))
	if refreshed.ID != opp.ID || !refreshed.IsActive {
		t.Errorf("refreshed = %+v", refreshed)
	}
	if !s.AcquireLock(opp.ID) {
		t.Error("re-detected opportunity should be lockable")
	}
	if pending := s.TakeDeactivated(); len(pending) != 0 {
		t.Errorf("reactivated record still reported as consumed: %+v", pending)
	}
}

func TestStore_AcquireLockExclusive(t *testing.T) {
	s, _ := newTestStore(t)
	opp, _ := s.Upsert(draft("a", "b", 15))

	const callers = 64
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		start = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.AcquireLock(opp.ID) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestStore_AcquireLockPreconditions(t *testing.T) {
	s, _ := newTestStore(t)
	opp, _ := s.Upsert(draft("a", "b", 15))

	if s.AcquireLock("missing") {
		t.Error("locked a missing record")
	}

	s.Deactivate(opp.ID)
	if s.AcquireLock(opp.ID) {
		t.Error("locked an inactive record")
	}
}

func TestStore_ReleaseLockIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	opp, _ := s.Upsert(draft("a", "b", 15))

	s.AcquireLock(opp.ID)
	s.ReleaseLock(opp.ID)
	s.ReleaseLock(opp.ID)
	s.ReleaseLock("deleted-meanwhile")

	if !s.AcquireLock(opp.ID) {
		t.Error("lock not reacquirable after release")
	}
}

func TestStore_SweepRespectsLocks(t *testing.T) {
	s, clk := newTestStore(t)

	locked, _ := s.Upsert(draft("a", "b", 15))
	idle, _ := s.Upsert(draft("b", "c", 12))
	s.AcquireLock(locked.ID)

	clk.Advance(2 * time.Minute)

	removed := s.SweepStale(time.Minute)
	if len(removed) != 1 || removed[0] != idle.ID {
		t.Fatalf("removed = %v, want [%s]", removed, idle.ID)
	}
	if _, ok := s.Get(locked.ID); !ok {
		t.Fatal("locked record was swept")
	}

	s.ReleaseLock(locked.ID)
	removed = s.SweepStale(time.Minute)
	if len(removed) != 1 || removed[0] != locked.ID {
		t.Errorf("removed = %v, want [%s]", removed, locked.ID)
	}

	// The key is free again.
	again, _ := s.Upsert(draft("a", "b", 15))
	if again.ID == locked.ID {
		t.Error("swept key reused old id")
	}
}

func TestStore_QueryOrderingAndPaging(t *testing.T) {
	s, clk := newTestStore(t)

	s.Upsert(draft("a", "b", 12))
	clk.Advance(time.Second)
	s.Upsert(draft("b", "c", 30))
	clk.Advance(time.Second)
	newer, _ := s.Upsert(draft("c", "d", 12))
	inactive, _ := s.Upsert(draft("d", "e", 50))
	s.Deactivate(inactive.ID)

	all := s.Query(domain.Filter{ActiveOnly: true})
	if len(all) != 3 {
		t.Fatalf("active = %d, want 3", len(all))
	}
	if !all[0].NetProfit.Equal(decimal.NewFromInt(30)) {
		t.Errorf("first = %s", all[0].NetProfit)
	}
	if all[1].ID != newer.ID {
		t.Errorf("tie not broken by recency: %s", all[1].ID)
	}

	page := s.Query(domain.Filter{ActiveOnly: true, Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].ID != newer.ID {
		t.Errorf("page = %+v", page)
	}

	if got := s.Query(domain.Filter{Offset: 10}); len(got) != 0 {
		t.Errorf("offset past end = %d", len(got))
	}

	best, ok := s.Best(domain.Filter{ActiveOnly: true, MinProfit: decimal.NewNullDecimal(decimal.NewFromInt(13))})
	if !ok || !best.NetProfit.Equal(decimal.NewFromInt(30)) {
		t.Errorf("best = %+v, %v", best, ok)
	}
}

func TestStore_Stats(t *testing.T) {
	s, _ := newTestStore(t)

	a, _ := s.Upsert(draft("a", "b", 12))
	s.Upsert(draft("b", "c", 30))
	c, _ := s.Upsert(draft("c", "d", 40))
	s.AcquireLock(a.ID)
	s.Deactivate(c.ID)

	st := s.Stats()
	if st.Total != 3 || st.Active != 2 || st.Locked != 1 {
		t.Errorf("stats = %+v", st)
	}
	if !st.BestNetProfit.Equal(decimal.NewFromInt(30)) || !st.TotalNetProfit.Equal(decimal.NewFromInt(42)) {
		t.Errorf("profit stats = %s / %s", st.BestNetProfit, st.TotalNetProfit)
	}
}

func TestStore_ConcurrentUpsertSweepLock(t *testing.T) {
	s, clk := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				opp, err := s.Upsert(draft(fmt.Sprintf("x%d", i%5), "y", int64(10+w)))
				if err != nil {
					t.Error(err)
					return
				}
				if s.AcquireLock(opp.ID) {
					s.ReleaseLock(opp.ID)
				}
				if i%50 == 0 {
					clk.Advance(time.Second)
					s.SweepStale(time.Hour)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := s.Stats().Total; got != 5 {
		t.Errorf("records = %d, want 5 distinct keys", got)
	}
}
