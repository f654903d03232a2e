package monitor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
)

type stubTrade domain.TradeRecord

func (s stubTrade) Trade() (domain.TradeRecord, error) { return domain.TradeRecord(s), nil }

type brokenTrade struct{}

func (brokenTrade) Trade() (domain.TradeRecord, error) {
	return domain.TradeRecord{}, domain.ErrDecode
}

func tr(symbol, currency string, src int64, price float64, ms int64) stubTrade {
	return stubTrade{
		Symbol:    symbol,
		Currency:  currency,
		Price:     price,
		Timestamp: time.UnixMilli(ms).UTC(),
		SourceID:  src,
	}
}

// fakeSource hands trades over an unbuffered channel, so done is only closed
// after the consumer has taken the last one.
type fakeSource struct {
	out       chan domain.Trade
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (f *fakeSource) Receive(ctx context.Context) (domain.Trade, error) {
	select {
	case t := <-f.out:
		return t, nil
	case <-f.done:
		return nil, errors.New("closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (f *fakeSource) Out() <-chan domain.Trade { return f.out }
func (f *fakeSource) Done() <-chan struct{}    { return f.done }
func (f *fakeSource) Len() int                 { return 0 }
func (f *fakeSource) Close()                   { f.closeOnce.Do(func() { close(f.closed) }) }

type fakeFeed struct {
	trades []domain.Trade
	hold   bool // keep streaming until ctx is done
	err    error

	waitErr error
	ended   chan struct{}
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Open(ctx context.Context) port.TradeSource {
	src := &fakeSource{
		out:    make(chan domain.Trade),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	f.ended = make(chan struct{})
	go func() {
		defer close(src.done)
		defer close(f.ended)
		for _, t := range f.trades {
			select {
			case src.out <- t:
			case <-src.closed:
				return
			case <-ctx.Done():
				f.waitErr = ctx.Err()
				return
			}
		}
		if f.hold {
			<-ctx.Done()
			f.waitErr = ctx.Err()
			return
		}
		f.waitErr = f.err
	}()
	return src
}

func (f *fakeFeed) Wait() error {
	<-f.ended
	return f.waitErr
}

type recordingSink struct {
	mu        sync.Mutex
	live      []string
	snapshots []string
}

func (s *recordingSink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = append(s.live, line)
	return nil
}

func (s *recordingSink) WriteSnapshot(_ time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, line)
	return nil
}

func (s *recordingSink) NewLine() error { return nil }

func (s *recordingSink) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

type recordingRepo struct {
	upserts []domain.TradeRecord
}

func (r *recordingRepo) UpsertLatestTrade(_ context.Context, t domain.TradeRecord) error {
	r.upserts = append(r.upserts, t)
	return nil
}

func (r *recordingRepo) Close() error { return nil }

func TestServiceAppliesTradesUntilFeedEnds(t *testing.T) {
	feed := &fakeFeed{trades: []domain.Trade{
		tr("BTC", "USD", 2, 101, 1000),
		tr("BTC", "USD", 1, 100, 1001),
		tr("ETH", "USD", 1, 2000, 1002), // not tracked
		tr("BTC", "EUR", 3, 90, 1003),   // tracked symbol, wrong currency
		brokenTrade{},
		tr("BTC", "USD", 2, 102, 1004),
	}}
	repo := &recordingRepo{}
	sink := &recordingSink{}
	results := map[string]int{}

	svc := NewService(ServiceDeps{
		Feed:        feed,
		Instruments: []string{"BTC-USD"},
		Refresh:     time.Hour,
		Sink:        sink,
		Repo:        repo,
		OnInsert:    func(_, result string) { results[result]++ },
	})

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, map[string]int{ResultOK: 3, ResultMismatch: 1, ResultError: 1}, results)
	require.Len(t, repo.upserts, 3)
	assert.Equal(t, 102.0, repo.upserts[2].Price)

	bucket := svc.board.Buckets()[0]
	assert.Equal(t, 2, bucket.Len())
	var ids []int64
	for id := range bucket.Snapshot() {
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, domain.DirectionUp, bucket.Direction(2))

	last, ok := svc.board.Last()
	require.True(t, ok)
	assert.Equal(t, 102.0, last.Price)
	// initial line plus one per accepted trade
	assert.Len(t, sink.live, 4)
}

func TestServiceReturnsFeedError(t *testing.T) {
	feed := &fakeFeed{err: domain.ErrProtocol}
	svc := NewService(ServiceDeps{
		Feed:        feed,
		Instruments: []string{"BTC-USD"},
		Sink:        &recordingSink{},
	})
	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestServiceSnapshotsOnTickerUntilCancelled(t *testing.T) {
	feed := &fakeFeed{hold: true, trades: []domain.Trade{tr("BTC", "USD", 1, 100, 1000)}}
	sink := &recordingSink{}
	svc := NewService(ServiceDeps{
		Feed:        feed,
		Instruments: []string{"BTC-USD"},
		Refresh:     5 * time.Millisecond,
		Sink:        sink,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.snapshotCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServiceRequiresFeedAndInstruments(t *testing.T) {
	err := NewService(ServiceDeps{Instruments: []string{"BTC-USD"}, Sink: &recordingSink{}}).Run(context.Background())
	assert.Error(t, err)

	err = NewService(ServiceDeps{Feed: &fakeFeed{}, Sink: &recordingSink{}}).Run(context.Background())
	assert.Error(t, err)
}

func TestServiceCountsCurrencyMismatchWithoutWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	defer func() { log.Logger = prev }()

	feed := &fakeFeed{trades: []domain.Trade{
		tr("BTC", "EUR", 1, 90, 1000),
		tr("BTC", "USDT", 2, 100, 1001),
	}}
	var mismatches []string
	svc := NewService(ServiceDeps{
		Feed:        feed,
		Instruments: []string{"BTC-USD"},
		Refresh:     time.Hour,
		Sink:        &recordingSink{},
		OnInsert: func(instrument, result string) {
			if result == ResultMismatch {
				mismatches = append(mismatches, instrument)
			}
		},
	})
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, []string{"BTC-EUR", "BTC-USDT"}, mismatches)
	assert.NotContains(t, buf.String(), "trade rejected")
	assert.NotContains(t, buf.String(), `"level":"warn"`)
}
