package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apperror"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "flasharb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func opportunity(id, buy, sell, net string) arbitrageDomain.Opportunity {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return arbitrageDomain.Opportunity{
		ID: id,
		Draft: arbitrageDomain.Draft{
			Key:               arbitrageDomain.Key{PairKey: "WETH/USDC", BuyExchange: buy, SellExchange: sell},
			Token0:            "WETH",
			Token1:            "USDC",
			BuyPrice:          decimal.RequireFromString("3000"),
			SellPrice:         decimal.RequireFromString("3030"),
			PriceDiffPct:      decimal.RequireFromString("1"),
			Notional:          decimal.NewFromInt(1000),
			GrossProfit:       decimal.NewFromInt(10),
			NetProfit:         decimal.RequireFromString(net),
			LiquidityEstimate: decimal.NewFromInt(50000),
		},
		IsActive:      true,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

func TestRepository_OpportunitySnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.UpsertOpportunities(ctx, []arbitrageDomain.Opportunity{
		opportunity("a", "uniswap_v2", "sushiswap", "12.5"),
		opportunity("b", "sushiswap", "uniswap_v3", "40"),
		opportunity("c", "uniswap_v3", "uniswap_v2", "9.75"),
	}))

	// Same composite key, new numbers.
	refreshed := opportunity("a", "uniswap_v2", "sushiswap", "55.1")
	refreshed.LastUpdatedAt = refreshed.LastUpdatedAt.Add(time.Minute)
	require.NoError(t, repo.UpsertOpportunities(ctx, []arbitrageDomain.Opportunity{refreshed}))

	got, err := repo.ListOpportunities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.True(t, got[0].NetProfit.Equal(decimal.RequireFromString("55.1")))
	assert.True(t, got[0].LastUpdatedAt.Equal(refreshed.LastUpdatedAt))
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
	assert.True(t, got[2].IsActive)

	require.NoError(t, repo.DeleteOpportunities(ctx, []string{"a", "c"}))
	got, err = repo.ListOpportunities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func trade(attempt, actor, tx string, started time.Time) executionDomain.TradeRecord {
	return executionDomain.TradeRecord{
		AttemptID:       attempt,
		ActorID:         actor,
		OpportunityID:   "opp-1",
		PairKey:         "WETH/USDC",
		BuyExchange:     "uniswap_v2",
		SellExchange:    "sushiswap",
		Amount:          decimal.NewFromInt(10000),
		EstimatedProfit: decimal.RequireFromString("18.82"),
		UseFlashloan:    true,
		Strategy:        executionDomain.StrategyFixed,
		State:           executionDomain.StateCompleted,
		Result: executionDomain.TradeResult{
			AttemptID:    attempt,
			Success:      tx != "",
			TxHash:       tx,
			ActualProfit: decimal.RequireFromString("16.938"),
			GasUsed:      310000,
		},
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Second),
	}
}

func TestRepository_Trades(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	t0 := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveTrade(ctx, trade("t1", "alice", "0x01", t0)))
	require.NoError(t, repo.SaveTrade(ctx, trade("t2", "alice", "", t0.Add(time.Minute))))
	require.NoError(t, repo.SaveTrade(ctx, trade("t3", "bob", "0x02", t0.Add(2*time.Minute))))
	// Saving an attempt twice keeps one row.
	require.NoError(t, repo.SaveTrade(ctx, trade("t1", "alice", "0x01", t0)))

	alice, err := repo.ListTrades(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "t2", alice[0].AttemptID)
	assert.Equal(t, "t1", alice[1].AttemptID)

	first := alice[1]
	assert.Equal(t, executionDomain.StrategyFixed, first.Strategy)
	assert.Equal(t, executionDomain.StateCompleted, first.State)
	assert.True(t, first.Result.Success)
	assert.Equal(t, uint64(310000), first.Result.GasUsed)
	assert.True(t, first.Result.ActualProfit.Equal(decimal.RequireFromString("16.938")))
	assert.True(t, first.StartedAt.Equal(t0))

	all, err := repo.ListTrades(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t3", all[0].AttemptID)
}

func TestRepository_DuplicateTxHashRejected(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	t0 := time.Now().UTC()

	require.NoError(t, repo.SaveTrade(ctx, trade("t1", "alice", "0xdup", t0)))
	err := repo.SaveTrade(ctx, trade("t2", "bob", "0xdup", t0))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeStorageError, apperror.GetCode(err))
}
