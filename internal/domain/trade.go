package domain

import (
	"fmt"
	"strings"
	"time"
)

// TradeRecord is the normalized trade every feed event reduces to.
type TradeRecord struct {
	Symbol    string
	Currency  string
	Price     float64
	Timestamp time.Time // UTC
	SourceID  int64     // reporting venue, not the instrument
}

// Trade is implemented by every feed-specific event.
type Trade interface {
	Trade() (TradeRecord, error)
}

// Instrument returns the "SYMBOL-CURRENCY" key of the record.
func (r TradeRecord) Instrument() string {
	return InstrumentKey(r.Symbol, r.Currency)
}

func (r TradeRecord) String() string {
	return fmt.Sprintf("%s src=%d px=%g ts=%s", r.Instrument(), r.SourceID, r.Price, r.Timestamp.Format(time.RFC3339Nano))
}

func InstrumentKey(symbol, currency string) string {
	return symbol + "-" + currency
}

// SplitInstrument splits "BTC-USD" into symbol and currency. Exactly one
// separator is allowed.
func SplitInstrument(key string) (symbol, currency string, ok bool) {
	symbol, currency, ok = strings.Cut(key, "-")
	if !ok || symbol == "" || currency == "" || strings.Contains(currency, "-") {
		return "", "", false
	}
	return symbol, currency, true
}

// Direction is the price move of a source relative to its previous trade.
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

func directionOf(prev, next float64) Direction {
	switch {
	case next > prev:
		return DirectionUp
	case next < prev:
		return DirectionDown
	default:
		return DirectionSame
	}
}
