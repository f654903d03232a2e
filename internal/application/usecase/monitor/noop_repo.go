package monitor

import (
	"context"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
)

type noopRepo struct{}

func NewNoopRepo() port.Repository { return &noopRepo{} }

func (n *noopRepo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	return nil
}

func (n *noopRepo) Close() error { return nil }
