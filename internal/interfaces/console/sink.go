package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"polyticker/internal/application/port"
)

type Sink struct {
	w io.Writer
}

func NewSink() port.Sink { return &Sink{w: os.Stdout} }

// NewSinkTo writes to w instead of stdout.
func NewSinkTo(w io.Writer) port.Sink { return &Sink{w: w} }

func (s *Sink) WriteLive(line string) error {
	_, err := fmt.Fprint(s.w, line) // no newline
	return err
}

// WriteSnapshot leaves the live line where it is, prints the timestamped
// block below it and an empty line for the next live update.
func (s *Sink) WriteSnapshot(ts time.Time, block string) error {
	_, err := fmt.Fprintf(s.w, "\n%s\n%s\n\n", ts.Format("2006-01-02 15:04:05"), block)
	return err
}

func (s *Sink) NewLine() error {
	_, err := fmt.Fprint(s.w, "\n")
	return err
}
