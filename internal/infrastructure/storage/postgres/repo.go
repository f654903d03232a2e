package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_trades (
  symbol TEXT NOT NULL,
  currency TEXT NOT NULL,
  source_id BIGINT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  ts TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (symbol, currency, source_id)
);
CREATE INDEX IF NOT EXISTS idx_latest_trades_ts ON latest_trades(ts);
`)
	return err
}

func (r *Repo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	_, err := r.db.ExecContext(ctx, upsertSQL, upsertArgs(t)...)
	return err
}

func upsertArgs(t domain.TradeRecord) []any {
	return []any{t.Symbol, t.Currency, t.SourceID, t.Price, t.Timestamp.UTC()}
}

const upsertSQL = `
INSERT INTO latest_trades(symbol, currency, source_id, price, ts)
VALUES($1, $2, $3, $4, $5)
ON CONFLICT(symbol, currency, source_id) DO UPDATE SET
price = EXCLUDED.price, ts = EXCLUDED.ts, updated_at = now()`

var _ port.Repository = (*Repo)(nil)
