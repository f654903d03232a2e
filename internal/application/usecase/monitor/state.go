package monitor

import (
	"strings"

	"polyticker/internal/domain"
)

// Board holds one bucket per tracked instrument, in configured order.
// Like the buckets it owns, it is meant for a single consumer goroutine.
type Board struct {
	order    []*domain.Bucket
	byKey    map[string]*domain.Bucket
	bySymbol map[string]*domain.Bucket

	last    domain.TradeRecord
	hasLast bool
}

// NewBoard builds buckets for "SYMBOL-CURRENCY" keys. Malformed or repeated
// keys are skipped.
func NewBoard(instruments []string) *Board {
	b := &Board{
		byKey:    make(map[string]*domain.Bucket, len(instruments)),
		bySymbol: make(map[string]*domain.Bucket, len(instruments)),
	}
	for _, inst := range instruments {
		sym, ccy, ok := domain.SplitInstrument(strings.ToUpper(strings.TrimSpace(inst)))
		if !ok {
			continue
		}
		key := domain.InstrumentKey(sym, ccy)
		if _, dup := b.byKey[key]; dup {
			continue
		}
		bucket := domain.NewBucket(sym, ccy)
		b.order = append(b.order, bucket)
		b.byKey[key] = bucket
		if _, ok := b.bySymbol[sym]; !ok {
			b.bySymbol[sym] = bucket
		}
	}
	return b
}

func (b *Board) Buckets() []*domain.Bucket { return b.order }

// Last returns the most recently applied trade.
func (b *Board) Last() (domain.TradeRecord, bool) { return b.last, b.hasLast }

// Apply routes t to the bucket of its instrument. Trades for a symbol the
// board does not track are ignored. A tracked symbol quoted in another
// currency goes to that symbol's bucket and comes back as ErrMismatch.
func (b *Board) Apply(t domain.Trade) (rec domain.TradeRecord, tracked bool, err error) {
	rec, err = t.Trade()
	if err != nil {
		return rec, false, err
	}

	bucket := b.byKey[rec.Instrument()]
	if bucket == nil {
		bucket = b.bySymbol[rec.Symbol]
	}
	if bucket == nil {
		return rec, false, nil
	}
	if err := bucket.Insert(t); err != nil {
		return rec, true, err
	}
	b.last, b.hasLast = rec, true
	return rec, true, nil
}
