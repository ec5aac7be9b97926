package app_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/business/arbitrage/infra/memstore"
	"github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
)

type fakeSettlement struct {
	mu        sync.Mutex
	estimate  decimal.Decimal
	estErr    error
	submitErr error
	receipt   domain.Receipt
	waitErr   error
	hang      bool // WaitReceipt blocks until ctx is done
	panics    bool // Submit panics
	orders    []domain.Order
}

func (f *fakeSettlement) EstimateProfit(ctx context.Context, order domain.Order) (decimal.Decimal, error) {
	return f.estimate, f.estErr
}

func (f *fakeSettlement) Submit(ctx context.Context, key *ecdsa.PrivateKey, order domain.Order) (string, error) {
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.mu.Unlock()
	if f.panics {
		panic("nonce manager corrupted")
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "0xabc", nil
}

func (f *fakeSettlement) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	if f.hang {
		<-ctx.Done()
		return domain.Receipt{}, ctx.Err()
	}
	return f.receipt, f.waitErr
}

type fakeKeys struct {
	keys map[string]*ecdsa.PrivateKey
}

func (f *fakeKeys) SigningKey(ctx context.Context, actorID string) (*ecdsa.PrivateKey, error) {
	k, ok := f.keys[actorID]
	if !ok {
		return nil, apperror.New(apperror.CodeSigningKeyMissing, apperror.WithContext(actorID))
	}
	return k, nil
}

type fakeTrades struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (f *fakeTrades) SaveTrade(ctx context.Context, rec domain.TradeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeTrades) ListTrades(ctx context.Context, actorID string, limit int) ([]domain.TradeRecord, error) {
	return nil, nil
}

type fixture struct {
	store      *memstore.Store
	settlement *fakeSettlement
	trades     *fakeTrades
	exec       *app.Executor
	oppID      string
}

func newFixture(t *testing.T, mutate func(cfg *app.ExecutorConfig)) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	store := memstore.New(decimal.NewFromInt(10))
	opp, err := store.Upsert(arbitrageDomain.Draft{
		Key:               arbitrageDomain.Key{PairKey: "WETH/USDC", BuyExchange: "uniswap_v2", SellExchange: "sushiswap"},
		Token0:            "WETH",
		Token1:            "USDC",
		Token0Address:     "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Token1Address:     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		NetProfit:         decimal.RequireFromString("18.82"),
		LiquidityEstimate: decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	cfg := app.ExecutorConfig{
		ConfirmTimeout:   time.Second,
		RealizedSlippage: decimal.RequireFromString("0.1"),
		Preflight:        true,
		DefaultMinProfit: decimal.NewFromInt(10),
		Sizing: domain.Sizing{
			FixedAmount: decimal.NewFromInt(10000),
			MaxFraction: decimal.RequireFromString("0.1"),
			MaxAmount:   decimal.NewFromInt(100000),
			BaseAmount:  decimal.NewFromInt(5000),
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	settlement := &fakeSettlement{
		estimate: decimal.NewFromInt(15),
		receipt:  domain.Receipt{TxHash: "0xabc", Success: true, GasUsed: 310000},
	}
	trades := &fakeTrades{}
	exec, err := app.NewExecutor(store, settlement, &fakeKeys{keys: map[string]*ecdsa.PrivateKey{"alice": key}}, trades, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	return &fixture{store: store, settlement: settlement, trades: trades, exec: exec, oppID: opp.ID}
}

func (f *fixture) request() domain.TradeRequest {
	return domain.TradeRequest{
		ActorID:           "alice",
		OpportunityID:     f.oppID,
		UseFlashloan:      true,
		FlashloanStrategy: domain.StrategyPercentage,
	}
}

func TestExecutor_Success(t *testing.T) {
	f := newFixture(t, nil)

	res := f.exec.Execute(context.Background(), f.request())

	if !res.Success || res.TxHash != "0xabc" || res.GasUsed != 310000 {
		t.Fatalf("result = %+v", res)
	}
	if want := decimal.RequireFromString("16.938"); !res.ActualProfit.Equal(want) {
		t.Errorf("ActualProfit = %s, want %s", res.ActualProfit, want)
	}

	opp, _ := f.store.Get(f.oppID)
	if opp.IsActive {
		t.Error("completed trade should deactivate the opportunity")
	}
	if opp.IsLocked {
		t.Error("lock should be released")
	}

	if len(f.settlement.orders) != 1 {
		t.Fatalf("orders = %d", len(f.settlement.orders))
	}
	order := f.settlement.orders[0]
	if !order.AmountIn.Equal(decimal.NewFromInt(10000)) || order.BuyRoute != "uniswap_v2" || order.SellRoute != "sushiswap" {
		t.Errorf("order = %+v", order)
	}

	if len(f.trades.records) != 1 || f.trades.records[0].State != domain.StateCompleted {
		t.Errorf("records = %+v", f.trades.records)
	}
}

func TestExecutor_ConfirmationTimeoutReleasesLock(t *testing.T) {
	f := newFixture(t, func(cfg *app.ExecutorConfig) { cfg.ConfirmTimeout = 30 * time.Millisecond })
	f.settlement.hang = true

	res := f.exec.Execute(context.Background(), f.request())

	if res.Success || res.ErrorKind != domain.ErrorConfirmationTimeout {
		t.Fatalf("result = %+v, want ConfirmationTimeout", res)
	}
	if res.TxHash != "0xabc" {
		t.Errorf("TxHash = %q, want the submitted hash", res.TxHash)
	}
	if !f.store.AcquireLock(f.oppID) {
		t.Error("lock should be acquirable after a timed out trade")
	}

	opp, _ := f.store.Get(f.oppID)
	if !opp.IsActive {
		t.Error("timed out trade must not consume the opportunity")
	}
	if f.trades.records[0].State != domain.StateFailed {
		t.Errorf("record state = %s", f.trades.records[0].State)
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture, req *domain.TradeRequest)
		wantKind domain.ErrorKind
		wantSent bool
	}{
		{
			name:     "missing_opportunity",
			setup:    func(f *fixture, req *domain.TradeRequest) { req.OpportunityID = "nope" },
			wantKind: domain.ErrorValidationFailed,
		},
		{
			name:     "inactive_opportunity",
			setup:    func(f *fixture, req *domain.TradeRequest) { f.store.Deactivate(f.oppID) },
			wantKind: domain.ErrorValidationFailed,
		},
		{
			name:     "no_signing_key",
			setup:    func(f *fixture, req *domain.TradeRequest) { req.ActorID = "mallory" },
			wantKind: domain.ErrorSigningKeyMissing,
		},
		{
			name:     "lock_contention",
			setup:    func(f *fixture, req *domain.TradeRequest) { f.store.AcquireLock(f.oppID) },
			wantKind: domain.ErrorLockContention,
		},
		{
			name: "sized_to_zero",
			setup: func(f *fixture, req *domain.TradeRequest) {
				req.UseFlashloan = false
				req.TradeAmount = decimal.Zero
			},
			wantKind: domain.ErrorValidationFailed,
		},
		{
			name:     "preflight_unprofitable",
			setup:    func(f *fixture, req *domain.TradeRequest) { f.settlement.estimate = decimal.NewFromInt(-2) },
			wantKind: domain.ErrorValidationFailed,
		},
		{
			name: "insufficient_funds",
			setup: func(f *fixture, req *domain.TradeRequest) {
				f.settlement.submitErr = errors.New("insufficient funds for gas * price + value")
			},
			wantKind: domain.ErrorInsufficientFunds,
			wantSent: true,
		},
		{
			name:     "submission_failed",
			setup:    func(f *fixture, req *domain.TradeRequest) { f.settlement.submitErr = errors.New("nonce too low") },
			wantKind: domain.ErrorSubmissionFailed,
			wantSent: true,
		},
		{
			name: "reverted",
			setup: func(f *fixture, req *domain.TradeRequest) {
				f.settlement.receipt = domain.Receipt{TxHash: "0xabc", Success: false, GasUsed: 90000}
			},
			wantKind: domain.ErrorExecutionReverted,
			wantSent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := f.request()
			tt.setup(f, &req)

			res := f.exec.Execute(context.Background(), req)

			if res.Success || res.ErrorKind != tt.wantKind {
				t.Fatalf("result = %+v, want %s", res, tt.wantKind)
			}
			if res.Error == "" {
				t.Error("failure should carry a message")
			}
			if sent := len(f.settlement.orders) > 0; sent != tt.wantSent {
				t.Errorf("submitted = %v, want %v", sent, tt.wantSent)
			}
			if len(f.trades.records) != 1 {
				t.Errorf("records = %d, want 1", len(f.trades.records))
			}

			if tt.wantKind == domain.ErrorLockContention {
				if opp, _ := f.store.Get(f.oppID); !opp.IsLocked {
					t.Error("contention must not release a lock held by someone else")
				}
				return
			}
			if opp, ok := f.store.Get(f.oppID); ok && opp.IsLocked {
				t.Error("lock should be released")
			}
		})
	}
}

func TestExecutor_ExecuteLockedReleasesCallerLock(t *testing.T) {
	f := newFixture(t, nil)
	if !f.store.AcquireLock(f.oppID) {
		t.Fatal("AcquireLock failed")
	}
	f.settlement.receipt = domain.Receipt{Success: false}

	res := f.exec.ExecuteLocked(context.Background(), f.request())

	if res.ErrorKind != domain.ErrorExecutionReverted {
		t.Fatalf("result = %+v", res)
	}
	if !f.store.AcquireLock(f.oppID) {
		t.Error("ExecuteLocked should release the caller's lock")
	}
}

func TestExecutor_ConcurrentAttemptsSingleWinner(t *testing.T) {
	f := newFixture(t, nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([]domain.TradeResult, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.exec.Execute(context.Background(), f.request())
		}()
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r.Success {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("successful executions = %d, want 1", wins)
	}
}

func TestExecutor_PanicIsRecordedAndReleasesLock(t *testing.T) {
	f := newFixture(t, nil)
	f.settlement.panics = true

	res := f.exec.Execute(context.Background(), f.request())

	if res.Success || res.ErrorKind != domain.ErrorSubmissionFailed {
		t.Fatalf("result = %+v, want SubmissionFailed", res)
	}
	if opp, _ := f.store.Get(f.oppID); opp.IsLocked {
		t.Error("lock should be released after a panic")
	}

	if len(f.trades.records) != 1 {
		t.Fatalf("records = %d, want 1", len(f.trades.records))
	}
	rec := f.trades.records[0]
	if rec.State != domain.StateFailed || rec.Result.ErrorKind != domain.ErrorSubmissionFailed || rec.FinishedAt.IsZero() {
		t.Errorf("record = %+v", rec)
	}
}
