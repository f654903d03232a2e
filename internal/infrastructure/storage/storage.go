// Package storage holds what the latest-trade mirrors share.
package storage

import (
	"strconv"
	"time"

	"polyticker/internal/domain"
)

// LatestTrade is the serialized form of a mirrored trade.
type LatestTrade struct {
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	SourceID int64   `json:"source_id"`
	Price    float64 `json:"price"`
	TsMs     int64   `json:"ts_ms"`
}

func FromRecord(t domain.TradeRecord) LatestTrade {
	return LatestTrade{
		Symbol:   t.Symbol,
		Currency: t.Currency,
		SourceID: t.SourceID,
		Price:    t.Price,
		TsMs:     t.Timestamp.UnixMilli(),
	}
}

func (l LatestTrade) Record() domain.TradeRecord {
	return domain.TradeRecord{
		Symbol:    l.Symbol,
		Currency:  l.Currency,
		Price:     l.Price,
		Timestamp: time.UnixMilli(l.TsMs).UTC(),
		SourceID:  l.SourceID,
	}
}

// Key identifies the mirrored row: "BTC-USD:1".
func Key(t domain.TradeRecord) string {
	return t.Instrument() + ":" + strconv.FormatInt(t.SourceID, 10)
}
