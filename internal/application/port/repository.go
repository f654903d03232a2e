package port

import (
	"context"

	"polyticker/internal/domain"
)

// Repository mirrors the latest trade per (symbol, currency, source). It keeps
// no history: each write replaces the previous one for the same key.
type Repository interface {
	UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error
	Close() error
}
