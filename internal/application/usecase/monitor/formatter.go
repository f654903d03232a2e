package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"polyticker/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

func directionColor(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return ansiGreen
	case domain.DirectionDown:
		return ansiRed
	default:
		return ansiYellow
	}
}

func formatPrice(p float64) string { return strconv.FormatFloat(p, 'f', -1, 64) }

type Formatter struct {
	Tag string
}

func NewFormatter(tag string) *Formatter {
	if tag == "" {
		tag = "POLY"
	}
	return &Formatter{Tag: tag}
}

// RenderLive renders one line per call, meant to overwrite the previous one:
// the most recent price of every instrument, colored by its last move.
func (f *Formatter) RenderLive(b *Board) string {
	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(colorize("["+f.Tag+"] ", ansiDim))

	for i, bucket := range b.Buckets() {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		sb.WriteString(domain.InstrumentKey(bucket.Symbol(), bucket.Currency()))
		sb.WriteString(" ")

		src, rec, ok := newest(bucket)
		if !ok {
			sb.WriteString(colorize("--", ansiYellow))
			continue
		}
		sb.WriteString(colorize(formatPrice(rec.Price), directionColor(bucket.Direction(src))))
		sb.WriteString(colorize(fmt.Sprintf(" (%d src)", bucket.Len()), ansiDim))
	}

	sb.WriteString(ansiClearEOL)
	return sb.String()
}

// RenderSnapshot renders every bucket as a table, one row per source in
// ascending source order.
func (f *Formatter) RenderSnapshot(b *Board) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tSOURCE\tPRICE\tTIME")
	for _, bucket := range b.Buckets() {
		key := domain.InstrumentKey(bucket.Symbol(), bucket.Currency())
		if bucket.Len() == 0 {
			fmt.Fprintf(tw, "%s\t--\t%s\t--\n", key, colorize("--", ansiYellow))
			continue
		}
		for src, rec := range bucket.Snapshot() {
			price := colorize(formatPrice(rec.Price), directionColor(bucket.Direction(src)))
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", key, src, price, rec.Timestamp.Format(time.RFC3339Nano))
		}
	}
	_ = tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

func newest(b *domain.Bucket) (int64, domain.TradeRecord, bool) {
	var (
		src   int64
		best  domain.TradeRecord
		found bool
	)
	for id, rec := range b.Snapshot() {
		if !found || rec.Timestamp.After(best.Timestamp) {
			src, best, found = id, rec, true
		}
	}
	return src, best, found
}
