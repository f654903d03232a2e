package feed

import (
	"encoding/json"
	"fmt"

	"polyticker/internal/domain"
)

type decodeFunc func(raw json.RawMessage) (Event, error)

type validatingEvent interface {
	Event
	validate() error
}

func decodeAs[E validatingEvent](raw json.RawMessage) (Event, error) {
	var e E
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, e.Tag(), err)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

var decoders = map[string]decodeFunc{
	TagCryptoTrade:    decodeAs[CryptoTrade],
	TagStockTrade:     decodeAs[StockTrade],
	TagStockAggregate: decodeAs[StockAggregate],
}

type envelope struct {
	Ev string `json:"ev"`
}

// Decoder turns envelopes into events for a fixed set of tags. Envelopes
// with any other tag are not applicable to the session and are ignored.
type Decoder struct {
	accept map[string]decodeFunc
}

// NewDecoder accepts the given tags. Unknown tags are ignored.
func NewDecoder(tags ...string) *Decoder {
	d := &Decoder{accept: make(map[string]decodeFunc, len(tags))}
	for _, tag := range tags {
		if fn, ok := decoders[tag]; ok {
			d.accept[tag] = fn
		}
	}
	return d
}

// Decode returns ok=false with a nil error when the envelope's tag is not
// accepted. A structurally invalid envelope yields an error wrapping
// domain.ErrDecode.
func (d *Decoder) Decode(raw json.RawMessage) (ev Event, ok bool, err error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("%w: envelope: %v", domain.ErrDecode, err)
	}
	fn, found := d.accept[env.Ev]
	if !found {
		return nil, false, nil
	}
	ev, err = fn(raw)
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

// Accepts reports whether tag is decoded by d.
func (d *Decoder) Accepts(tag string) bool {
	_, ok := d.accept[tag]
	return ok
}
