// Package postgres is the Postgres Repository on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/business/persistence/app"
	"github.com/fd1az/flasharb/business/persistence/infra/record"
	"github.com/fd1az/flasharb/internal/apperror"
)

var _ app.Repository = (*Repository)(nil)

// Schema creates the tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS opportunities (
    id             TEXT PRIMARY KEY,
    pair_key       VARCHAR(64)  NOT NULL,
    buy_exchange   VARCHAR(64)  NOT NULL,
    sell_exchange  VARCHAR(64)  NOT NULL,
    token0         VARCHAR(32)  NOT NULL,
    token1         VARCHAR(32)  NOT NULL,
    token0_address VARCHAR(42)  NOT NULL DEFAULT '',
    token1_address VARCHAR(42)  NOT NULL DEFAULT '',
    buy_price      NUMERIC      NOT NULL,
    sell_price     NUMERIC      NOT NULL,
    price_diff_pct NUMERIC      NOT NULL,
    notional       NUMERIC      NOT NULL,
    gross_profit   NUMERIC      NOT NULL,
    gas_cost       NUMERIC      NOT NULL,
    flashloan_fee  NUMERIC      NOT NULL,
    net_profit     NUMERIC      NOT NULL,
    liquidity      NUMERIC      NOT NULL,
    is_active      BOOLEAN      NOT NULL DEFAULT TRUE,
    created_at     TIMESTAMPTZ  NOT NULL,
    updated_at     TIMESTAMPTZ  NOT NULL,
    UNIQUE (pair_key, buy_exchange, sell_exchange)
);

CREATE TABLE IF NOT EXISTS trades (
    attempt_id       TEXT PRIMARY KEY,
    actor_id         VARCHAR(128) NOT NULL,
    opportunity_id   TEXT         NOT NULL,
    pair_key         VARCHAR(64)  NOT NULL DEFAULT '',
    buy_exchange     VARCHAR(64)  NOT NULL DEFAULT '',
    sell_exchange    VARCHAR(64)  NOT NULL DEFAULT '',
    amount           NUMERIC      NOT NULL,
    estimated_profit NUMERIC      NOT NULL,
    use_flashloan    BOOLEAN      NOT NULL DEFAULT FALSE,
    strategy         VARCHAR(16)  NOT NULL DEFAULT '',
    state            VARCHAR(16)  NOT NULL,
    success          BOOLEAN      NOT NULL DEFAULT FALSE,
    tx_hash          VARCHAR(66)  NOT NULL DEFAULT '',
    actual_profit    NUMERIC      NOT NULL,
    gas_used         BIGINT       NOT NULL DEFAULT 0,
    error_kind       VARCHAR(32)  NOT NULL DEFAULT '',
    error            TEXT         NOT NULL DEFAULT '',
    started_at       TIMESTAMPTZ  NOT NULL,
    finished_at      TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_actor ON trades(actor_id, started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_tx ON trades(tx_hash) WHERE tx_hash <> '';
`

// Repository implements app.Repository on Postgres.
type Repository struct {
	Pool *pgxpool.Pool
}

// New connects to dsn and applies the schema.
func New(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: apply schema: %w", err)
	}
	return &Repository{Pool: pool}, nil
}

func storageError(op string, err error) error {
	return apperror.New(apperror.CodeStorageError, apperror.WithCause(err), apperror.WithContext("postgres."+op))
}

// UpsertOpportunities writes the batch in one transaction, replacing rows
// with the same composite key.
func (r *Repository) UpsertOpportunities(ctx context.Context, opps []arbitrageDomain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return storageError("UpsertOpportunities", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO opportunities (` + record.OpportunityColumns + `)
		VALUES (` + placeholders(record.OpportunityColumnCount) + `)
		ON CONFLICT (pair_key, buy_exchange, sell_exchange) DO UPDATE SET
			id             = EXCLUDED.id,
			token0_address = EXCLUDED.token0_address,
			token1_address = EXCLUDED.token1_address,
			buy_price      = EXCLUDED.buy_price,
			sell_price     = EXCLUDED.sell_price,
			price_diff_pct = EXCLUDED.price_diff_pct,
			notional       = EXCLUDED.notional,
			gross_profit   = EXCLUDED.gross_profit,
			gas_cost       = EXCLUDED.gas_cost,
			flashloan_fee  = EXCLUDED.flashloan_fee,
			net_profit     = EXCLUDED.net_profit,
			liquidity      = EXCLUDED.liquidity,
			is_active      = EXCLUDED.is_active,
			updated_at     = EXCLUDED.updated_at`

	for _, o := range opps {
		if _, err := tx.Exec(ctx, query, record.OpportunityArgs(o)...); err != nil {
			return storageError("UpsertOpportunities", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError("UpsertOpportunities", err)
	}
	return nil
}

// DeleteOpportunities removes rows by id.
func (r *Repository) DeleteOpportunities(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.Pool.Exec(ctx, `DELETE FROM opportunities WHERE id = ANY($1)`, ids); err != nil {
		return storageError("DeleteOpportunities", err)
	}
	return nil
}

// ListOpportunities returns stored rows by net profit, best first.
func (r *Repository) ListOpportunities(ctx context.Context, limit int) ([]arbitrageDomain.Opportunity, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+record.OpportunityColumns+`
		FROM opportunities
		ORDER BY net_profit DESC, updated_at DESC
		LIMIT $1`, limitOrAll(limit))
	if err != nil {
		return nil, storageError("ListOpportunities", err)
	}
	defer rows.Close()

	out := []arbitrageDomain.Opportunity{}
	for rows.Next() {
		o, err := record.ScanOpportunity(rows)
		if err != nil {
			return nil, storageError("ListOpportunities", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListOpportunities", err)
	}
	return out, nil
}

// SaveTrade appends a trade record. Saving the same attempt twice is a no-op.
func (r *Repository) SaveTrade(ctx context.Context, rec executionDomain.TradeRecord) error {
	if _, err := r.Pool.Exec(ctx, `
		INSERT INTO trades (`+record.TradeColumns+`)
		VALUES (`+placeholders(record.TradeColumnCount)+`)
		ON CONFLICT (attempt_id) DO NOTHING`, record.TradeArgs(rec)...,
	); err != nil {
		return storageError("SaveTrade", err)
	}
	return nil
}

// ListTrades returns the newest trades, for one actor or for all when
// actorID is empty.
func (r *Repository) ListTrades(ctx context.Context, actorID string, limit int) ([]executionDomain.TradeRecord, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+record.TradeColumns+`
		FROM trades
		WHERE ($1::text = '' OR actor_id = $1)
		ORDER BY started_at DESC
		LIMIT $2`, actorID, limitOrAll(limit))
	if err != nil {
		return nil, storageError("ListTrades", err)
	}
	defer rows.Close()

	out := []executionDomain.TradeRecord{}
	for rows.Next() {
		rec, err := record.ScanTrade(rows)
		if err != nil {
			return nil, storageError("ListTrades", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListTrades", err)
	}
	return out, nil
}

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

// Close closes the pool.
func (r *Repository) Close() error {
	r.Pool.Close()
	return nil
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ps, ", ")
}

// limitOrAll maps non-positive limits to NULL, which Postgres reads as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
