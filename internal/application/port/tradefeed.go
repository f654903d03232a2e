package port

import (
	"context"

	"polyticker/internal/domain"
)

// TradeSource is the consumer end of a feed's bounded hand-off.
type TradeSource interface {
	// Receive blocks until a trade is available or the source has ended.
	Receive(ctx context.Context) (domain.Trade, error)
	// Out and Done allow receiving inside a select.
	Out() <-chan domain.Trade
	Done() <-chan struct{}
	// Len is the number of trades queued and not yet received.
	Len() int
	// Close drops the consumer end; the feed stops on its next forward.
	Close()
}

type TradeFeed interface {
	Name() string
	Open(ctx context.Context) TradeSource
	// Wait returns the reason the feed ended.
	Wait() error
}
