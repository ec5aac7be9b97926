// Package record maps opportunities and trades to table rows. Both SQL
// backends share the column order defined here.
package record

import (
	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
)

// Scanner is satisfied by *sql.Row, *sql.Rows and pgx.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// OpportunityColumns lists opportunity columns in argument order.
const OpportunityColumns = `id, pair_key, buy_exchange, sell_exchange, token0, token1,
	token0_address, token1_address, buy_price, sell_price, price_diff_pct, notional,
	gross_profit, gas_cost, flashloan_fee, net_profit, liquidity, is_active,
	created_at, updated_at`

// OpportunityColumnCount is the number of OpportunityColumns.
const OpportunityColumnCount = 20

// OpportunityArgs returns o's values in OpportunityColumns order.
func OpportunityArgs(o arbitrageDomain.Opportunity) []any {
	return []any{
		o.ID, o.PairKey, o.BuyExchange, o.SellExchange, o.Token0, o.Token1,
		o.Token0Address, o.Token1Address, o.BuyPrice, o.SellPrice, o.PriceDiffPct, o.Notional,
		o.GrossProfit, o.GasCostEstimate, o.FlashloanFeeEstimate, o.NetProfit, o.LiquidityEstimate, o.IsActive,
		o.CreatedAt.UTC(), o.LastUpdatedAt.UTC(),
	}
}

// ScanOpportunity reads one row selected with OpportunityColumns.
func ScanOpportunity(s Scanner) (arbitrageDomain.Opportunity, error) {
	var o arbitrageDomain.Opportunity
	err := s.Scan(
		&o.ID, &o.PairKey, &o.BuyExchange, &o.SellExchange, &o.Token0, &o.Token1,
		&o.Token0Address, &o.Token1Address, &o.BuyPrice, &o.SellPrice, &o.PriceDiffPct, &o.Notional,
		&o.GrossProfit, &o.GasCostEstimate, &o.FlashloanFeeEstimate, &o.NetProfit, &o.LiquidityEstimate, &o.IsActive,
		&o.CreatedAt, &o.LastUpdatedAt,
	)
	return o, err
}

// TradeColumns lists trade columns in argument order.
const TradeColumns = `attempt_id, actor_id, opportunity_id, pair_key, buy_exchange, sell_exchange,
	amount, estimated_profit, use_flashloan, strategy, state, success, tx_hash,
	actual_profit, gas_used, error_kind, error, started_at, finished_at`

// TradeColumnCount is the number of TradeColumns.
const TradeColumnCount = 19

// TradeArgs returns r's values in TradeColumns order.
func TradeArgs(r executionDomain.TradeRecord) []any {
	return []any{
		r.AttemptID, r.ActorID, r.OpportunityID, r.PairKey, r.BuyExchange, r.SellExchange,
		r.Amount, r.EstimatedProfit, r.UseFlashloan, string(r.Strategy), string(r.State), r.Result.Success, r.Result.TxHash,
		r.Result.ActualProfit, int64(r.Result.GasUsed), string(r.Result.ErrorKind), r.Result.Error, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	}
}

// ScanTrade reads one row selected with TradeColumns.
func ScanTrade(s Scanner) (executionDomain.TradeRecord, error) {
	var (
		r                     executionDomain.TradeRecord
		strategy, state, kind string
		gasUsed               int64
	)
	err := s.Scan(
		&r.AttemptID, &r.ActorID, &r.OpportunityID, &r.PairKey, &r.BuyExchange, &r.SellExchange,
		&r.Amount, &r.EstimatedProfit, &r.UseFlashloan, &strategy, &state, &r.Result.Success, &r.Result.TxHash,
		&r.Result.ActualProfit, &gasUsed, &kind, &r.Result.Error, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return r, err
	}
	r.Strategy = executionDomain.Strategy(strategy)
	r.State = executionDomain.State(state)
	r.Result.ErrorKind = executionDomain.ErrorKind(kind)
	r.Result.AttemptID = r.AttemptID
	if gasUsed > 0 {
		r.Result.GasUsed = uint64(gasUsed)
	}
	return r, nil
}
