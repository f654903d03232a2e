package feed

import (
	"fmt"

	"polyticker/internal/domain"
)

// Event tags carried in the "ev" field of an envelope.
const (
	TagCryptoTrade    = "XT"
	TagStockTrade     = "T"
	TagStockAggregate = "AM"
	TagStatus         = "status"
)

// Event is a decoded feed envelope. The set of implementations is closed:
// CryptoTrade, StockTrade and StockAggregate.
type Event interface {
	domain.Trade
	Tag() string
	isEvent()
}

// CryptoTrade is one trade on the crypto feed.
type CryptoTrade struct {
	EventType  string  `json:"ev"`
	Pair       string  `json:"pair"` // "BTC-USD"
	Price      float64 `json:"p"`
	Timestamp  Millis  `json:"t"`
	Size       float64 `json:"s"`
	Conditions []int32 `json:"c"`
	TradeID    string  `json:"i"`
	ExchangeID int64   `json:"x"`
	Received   Millis  `json:"r"`
}

func (CryptoTrade) Tag() string { return TagCryptoTrade }
func (CryptoTrade) isEvent()    {}

func (e CryptoTrade) validate() error {
	if e.Pair == "" {
		return fmt.Errorf("%w: XT: missing pair", domain.ErrDecode)
	}
	if _, _, ok := domain.SplitInstrument(e.Pair); !ok {
		return fmt.Errorf("%w: XT: pair %q is not SYMBOL-CURRENCY", domain.ErrDecode, e.Pair)
	}
	if !e.Timestamp.Set {
		return fmt.Errorf("%w: XT: missing timestamp", domain.ErrDecode)
	}
	return nil
}

// Trade splits the pair into symbol and currency.
func (e CryptoTrade) Trade() (domain.TradeRecord, error) {
	sym, ccy, ok := domain.SplitInstrument(e.Pair)
	if !ok {
		return domain.TradeRecord{}, fmt.Errorf("%w: pair %q is not SYMBOL-CURRENCY", domain.ErrDecode, e.Pair)
	}
	return domain.TradeRecord{
		Symbol:    sym,
		Currency:  ccy,
		Price:     e.Price,
		Timestamp: e.Timestamp.Time,
		SourceID:  e.ExchangeID,
	}, nil
}

// StockTrade is one trade on the stocks feed. Stocks are quoted in USD.
type StockTrade struct {
	EventType    string  `json:"ev"`
	Symbol       string  `json:"sym"`
	ExchangeID   int64   `json:"x"`
	TradeID      string  `json:"i"`
	Tape         int     `json:"z"`
	Price        float64 `json:"p"`
	Size         float64 `json:"s"`
	Conditions   []int32 `json:"c,omitempty"`
	Timestamp    Millis  `json:"t"`
	Sequence     int64   `json:"q"`
	TRFID        *int64  `json:"trfi,omitempty"`
	TRFTimestamp *Millis `json:"trft,omitempty"`
}

func (StockTrade) Tag() string { return TagStockTrade }
func (StockTrade) isEvent()    {}

func (e StockTrade) validate() error {
	if e.Symbol == "" {
		return fmt.Errorf("%w: T: missing sym", domain.ErrDecode)
	}
	if !e.Timestamp.Set {
		return fmt.Errorf("%w: T: missing timestamp", domain.ErrDecode)
	}
	return nil
}

func (e StockTrade) Trade() (domain.TradeRecord, error) {
	return domain.TradeRecord{
		Symbol:    e.Symbol,
		Currency:  CurrencyUSD,
		Price:     e.Price,
		Timestamp: e.Timestamp.Time,
		SourceID:  e.ExchangeID,
	}, nil
}

// StockAggregate is a per-minute bar on the stocks feed. Bars come from the
// consolidated tape, so they are reported under ConsolidatedSource.
type StockAggregate struct {
	EventType    string   `json:"ev"`
	Symbol       string   `json:"sym"`
	Volume       float64  `json:"v"`
	AccVolume    float64  `json:"av"`
	OfficialOpen float64  `json:"op"`
	VWAP         *float64 `json:"vw,omitempty"`
	Open         float64  `json:"o"`
	Close        float64  `json:"c"`
	High         float64  `json:"h"`
	Low          float64  `json:"l"`
	DayVWAP      *float64 `json:"a,omitempty"`
	AvgSize      float64  `json:"z"`
	Transactions *int64   `json:"n,omitempty"`
	OTC          bool     `json:"otc"`
	Start        Millis   `json:"s"`
	End          Millis   `json:"e"`
}

const (
	CurrencyUSD              = "USD"
	ConsolidatedSource int64 = 0
)

func (StockAggregate) Tag() string { return TagStockAggregate }
func (StockAggregate) isEvent()    {}

func (e StockAggregate) validate() error {
	if e.Symbol == "" {
		return fmt.Errorf("%w: AM: missing sym", domain.ErrDecode)
	}
	if !e.End.Set {
		return fmt.Errorf("%w: AM: missing end timestamp", domain.ErrDecode)
	}
	return nil
}

func (e StockAggregate) Trade() (domain.TradeRecord, error) {
	return domain.TradeRecord{
		Symbol:    e.Symbol,
		Currency:  CurrencyUSD,
		Price:     e.Close,
		Timestamp: e.End.Time,
		SourceID:  ConsolidatedSource,
	}, nil
}
