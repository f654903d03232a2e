package domain

import (
	"fmt"
	"iter"
	"slices"
)

type bucketEntry struct {
	event  Trade
	record TradeRecord
	dir    Direction
}

// Bucket keeps the latest trade per source for one (symbol, currency).
//
// Bucket is not safe for concurrent use. The consumer that feeds it is
// expected to alternate between Insert and Snapshot on one goroutine.
type Bucket struct {
	symbol   string
	currency string
	entries  map[int64]bucketEntry
}

func NewBucket(symbol, currency string) *Bucket {
	return &Bucket{
		symbol:   symbol,
		currency: currency,
		entries:  make(map[int64]bucketEntry),
	}
}

func (b *Bucket) Symbol() string   { return b.symbol }
func (b *Bucket) Currency() string { return b.currency }
func (b *Bucket) Len() int         { return len(b.entries) }

// Insert stores t under its source id, replacing any earlier trade from the
// same source. A trade for another symbol or currency is rejected and leaves
// the bucket untouched.
func (b *Bucket) Insert(t Trade) error {
	rec, err := t.Trade()
	if err != nil {
		return err
	}
	if rec.Symbol != b.symbol || rec.Currency != b.currency {
		return fmt.Errorf("%w: bucket %s got %s", ErrMismatch, InstrumentKey(b.symbol, b.currency), rec.Instrument())
	}

	dir := DirectionSame
	if prev, ok := b.entries[rec.SourceID]; ok {
		dir = directionOf(prev.record.Price, rec.Price)
	}
	b.entries[rec.SourceID] = bucketEntry{event: t, record: rec, dir: dir}
	return nil
}

// Get returns the latest trade reported by source.
func (b *Bucket) Get(source int64) (TradeRecord, bool) {
	e, ok := b.entries[source]
	return e.record, ok
}

// Event returns the raw event the latest trade of source was derived from.
func (b *Bucket) Event(source int64) (Trade, bool) {
	e, ok := b.entries[source]
	return e.event, ok
}

// Direction reports how the latest trade of source moved against the one it replaced.
func (b *Bucket) Direction(source int64) Direction {
	return b.entries[source].dir
}

// Snapshot yields (source id, trade) pairs in ascending source id order.
// The sequence can be ranged over any number of times; each pass reflects
// the source ids present when the pass starts.
func (b *Bucket) Snapshot() iter.Seq2[int64, TradeRecord] {
	return func(yield func(int64, TradeRecord) bool) {
		ids := make([]int64, 0, len(b.entries))
		for id := range b.entries {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			e, ok := b.entries[id]
			if !ok {
				continue
			}
			if !yield(id, e.record) {
				return
			}
		}
	}
}
