package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"polyticker/internal/domain"
)

// Representable range: 0001-01-01T00:00:00Z .. 9999-12-31T23:59:59.999Z.
const (
	minEpochMs int64 = -62135596800000
	maxEpochMs int64 = 253402300799999
)

// Millis is an epoch-milliseconds JSON integer decoded into a UTC instant.
// Set is false when the field was absent or null.
type Millis struct {
	time.Time
	Set bool
}

func (m *Millis) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("%w: timestamp %s: %v", domain.ErrDecode, b, err)
	}
	t, err := FromEpochMillis(ms)
	if err != nil {
		return err
	}
	m.Time, m.Set = t, true
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.UnixMilli())
}

// FromEpochMillis converts ms to a UTC time, rejecting values outside the
// representable calendar range.
func FromEpochMillis(ms int64) (time.Time, error) {
	if ms < minEpochMs || ms > maxEpochMs {
		return time.Time{}, fmt.Errorf("%w: timestamp %d ms out of range", domain.ErrDecode, ms)
	}
	return time.UnixMilli(ms).UTC(), nil
}
