package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  source_id INTEGER NOT NULL,
  price REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(symbol, currency, source_id)
);
CREATE INDEX IF NOT EXISTS idx_latest_trades_ts ON latest_trades(ts_ms);
`)
	return err
}

func (r *Repo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_trades(symbol, currency, source_id, price, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, currency, source_id) DO UPDATE SET
		price=excluded.price, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, t.Symbol, t.Currency, t.SourceID, t.Price, t.Timestamp.UnixMilli(), time.Now().UnixMilli())
	return err
}

// LatestTrades returns the mirrored trades of one instrument by ascending source id.
func (r *Repo) LatestTrades(ctx context.Context, symbol, currency string) ([]domain.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, currency, source_id, price, ts_ms FROM latest_trades
		WHERE symbol=? AND currency=? ORDER BY source_id`, symbol, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var lt storage.LatestTrade
		if err := rows.Scan(&lt.Symbol, &lt.Currency, &lt.SourceID, &lt.Price, &lt.TsMs); err != nil {
			return nil, err
		}
		out = append(out, lt.Record())
	}
	return out, rows.Err()
}

var _ port.Repository = (*Repo)(nil)
