package domain

import "testing"

func TestSplitInstrument(t *testing.T) {
	cases := []struct {
		in       string
		sym, ccy string
		ok       bool
	}{
		{"BTC-USD", "BTC", "USD", true},
		{"ETH-EUR", "ETH", "EUR", true},
		{"BTC", "", "", false},
		{"-USD", "", "", false},
		{"BTC-", "", "", false},
		{"BTC-USD-X", "", "", false},
	}
	for _, c := range cases {
		sym, ccy, ok := SplitInstrument(c.in)
		if sym != c.sym || ccy != c.ccy || ok != c.ok {
			t.Errorf("SplitInstrument(%q) = %q, %q, %v; want %q, %q, %v", c.in, sym, ccy, ok, c.sym, c.ccy, c.ok)
		}
	}
}

func TestDirectionOf(t *testing.T) {
	if got := directionOf(1, 2); got != DirectionUp {
		t.Errorf("up: got %d", got)
	}
	if got := directionOf(2, 1); got != DirectionDown {
		t.Errorf("down: got %d", got)
	}
	if got := directionOf(2, 2); got != DirectionSame {
		t.Errorf("same: got %d", got)
	}
}

func TestTradeRecordInstrument(t *testing.T) {
	r := TradeRecord{Symbol: "BTC", Currency: "USD"}
	if r.Instrument() != "BTC-USD" {
		t.Errorf("got %q", r.Instrument())
	}
}
