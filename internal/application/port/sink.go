package port

import "time"

// Sink is where the monitor renders the board.
type Sink interface {
	// WriteLive redraws the single status line in place; line carries its
	// own carriage return and no newline.
	WriteLive(line string) error
	// WriteSnapshot prints the bucket table taken at ts below the status line.
	WriteSnapshot(ts time.Time, block string) error
	// NewLine ends the status line so later output starts clean.
	NewLine() error
}
