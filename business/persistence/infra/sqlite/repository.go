// Package sqlite is the SQLite Repository (pure Go driver, no CGo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/business/persistence/app"
	"github.com/fd1az/flasharb/business/persistence/infra/record"
	"github.com/fd1az/flasharb/internal/apperror"
)

var _ app.Repository = (*Repository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
    id             TEXT PRIMARY KEY,
    pair_key       TEXT    NOT NULL,
    buy_exchange   TEXT    NOT NULL,
    sell_exchange  TEXT    NOT NULL,
    token0         TEXT    NOT NULL,
    token1         TEXT    NOT NULL,
    token0_address TEXT    NOT NULL DEFAULT '',
    token1_address TEXT    NOT NULL DEFAULT '',
    buy_price      TEXT    NOT NULL,
    sell_price     TEXT    NOT NULL,
    price_diff_pct TEXT    NOT NULL,
    notional       TEXT    NOT NULL,
    gross_profit   TEXT    NOT NULL,
    gas_cost       TEXT    NOT NULL,
    flashloan_fee  TEXT    NOT NULL,
    net_profit     TEXT    NOT NULL,
    liquidity      TEXT    NOT NULL,
    is_active      INTEGER NOT NULL DEFAULT 1,
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL,
    UNIQUE (pair_key, buy_exchange, sell_exchange)
);

CREATE TABLE IF NOT EXISTS trades (
    attempt_id       TEXT PRIMARY KEY,
    actor_id         TEXT    NOT NULL,
    opportunity_id   TEXT    NOT NULL,
    pair_key         TEXT    NOT NULL DEFAULT '',
    buy_exchange     TEXT    NOT NULL DEFAULT '',
    sell_exchange    TEXT    NOT NULL DEFAULT '',
    amount           TEXT    NOT NULL,
    estimated_profit TEXT    NOT NULL,
    use_flashloan    INTEGER NOT NULL DEFAULT 0,
    strategy         TEXT    NOT NULL DEFAULT '',
    state            TEXT    NOT NULL,
    success          INTEGER NOT NULL DEFAULT 0,
    tx_hash          TEXT    NOT NULL DEFAULT '',
    actual_profit    TEXT    NOT NULL,
    gas_used         INTEGER NOT NULL DEFAULT 0,
    error_kind       TEXT    NOT NULL DEFAULT '',
    error            TEXT    NOT NULL DEFAULT '',
    started_at       DATETIME NOT NULL,
    finished_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_actor ON trades(actor_id, started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_tx ON trades(tx_hash) WHERE tx_hash <> '';
`

// Repository implements app.Repository on a single SQLite file.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func storageError(op string, err error) error {
	return apperror.New(apperror.CodeStorageError, apperror.WithCause(err), apperror.WithContext("sqlite."+op))
}

// UpsertOpportunities writes the batch in one transaction, replacing rows
// with the same composite key.
func (r *Repository) UpsertOpportunities(ctx context.Context, opps []arbitrageDomain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("UpsertOpportunities", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities (`+record.OpportunityColumns+`)
		VALUES (`+placeholders(record.OpportunityColumnCount)+`)
		ON CONFLICT (pair_key, buy_exchange, sell_exchange) DO UPDATE SET
			id             = excluded.id,
			token0_address = excluded.token0_address,
			token1_address = excluded.token1_address,
			buy_price      = excluded.buy_price,
			sell_price     = excluded.sell_price,
			price_diff_pct = excluded.price_diff_pct,
			notional       = excluded.notional,
			gross_profit   = excluded.gross_profit,
			gas_cost       = excluded.gas_cost,
			flashloan_fee  = excluded.flashloan_fee,
			net_profit     = excluded.net_profit,
			liquidity      = excluded.liquidity,
			is_active      = excluded.is_active,
			updated_at     = excluded.updated_at`)
	if err != nil {
		return storageError("UpsertOpportunities", err)
	}
	defer stmt.Close()

	for _, o := range opps {
		if _, err := stmt.ExecContext(ctx, record.OpportunityArgs(o)...); err != nil {
			return storageError("UpsertOpportunities", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageError("UpsertOpportunities", err)
	}
	return nil
}

// DeleteOpportunities removes rows by id.
func (r *Repository) DeleteOpportunities(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM opportunities WHERE id IN (`+placeholders(len(ids))+`)`, args...,
	); err != nil {
		return storageError("DeleteOpportunities", err)
	}
	return nil
}

// ListOpportunities returns stored rows by net profit, best first.
func (r *Repository) ListOpportunities(ctx context.Context, limit int) ([]arbitrageDomain.Opportunity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+record.OpportunityColumns+`
		FROM opportunities
		ORDER BY CAST(net_profit AS REAL) DESC, updated_at DESC
		LIMIT ?`, limitOrAll(limit))
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
	if _, err := r.db.ExecContext(ctx, `
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
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+record.TradeColumns+`
		FROM trades
		WHERE (? = '' OR actor_id = ?)
		ORDER BY started_at DESC
		LIMIT ?`, actorID, actorID, limitOrAll(limit))
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
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// limitOrAll maps non-positive limits to SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
