package monitor

import (
	"context"
	"errors"
	"time"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"

	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Feed        TradeFeed
	Instruments []string
	Refresh     time.Duration
	Sink        port.Sink
	Repo        port.Repository

	// OnInsert, when set, is called once per trade for a tracked symbol
	// with the instrument key and one of the Result* values.
	OnInsert func(instrument, result string)
}

type Service struct {
	deps  ServiceDeps
	board *Board
	fmt   *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.Refresh <= 0 {
		deps.Refresh = time.Second
	}
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	return &Service{
		deps:  deps,
		board: NewBoard(deps.Instruments),
		fmt:   NewFormatter(""),
	}
}

// Run consumes the feed until ctx is done or the feed ends. A feed that ends
// on its own returns its terminal error (nil for a clean close).
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Feed == nil {
		return errors.New("no feed")
	}
	if len(s.board.Buckets()) == 0 {
		return errors.New("no instruments")
	}

	src := s.deps.Feed.Open(ctx)
	defer src.Close()
	log.Info().
		Str("feed", s.deps.Feed.Name()).
		Int("instruments", len(s.board.Buckets())).
		Msg("feed started")

	ticker := time.NewTicker(s.deps.Refresh)
	defer ticker.Stop()

	_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.board))

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-ticker.C:
			_ = s.deps.Sink.WriteSnapshot(now, s.fmt.RenderSnapshot(s.board))

		case t := <-src.Out():
			s.apply(ctx, t)

		case <-src.Done():
			_ = s.deps.Sink.NewLine()
			err := s.deps.Feed.Wait()
			log.Info().Str("feed", s.deps.Feed.Name()).Err(err).Msg("feed drained")
			return err
		}
	}
}

func (s *Service) apply(ctx context.Context, t domain.Trade) {
	rec, tracked, err := s.board.Apply(t)
	switch {
	case errors.Is(err, domain.ErrMismatch):
		// other quote currencies of a tracked symbol are routine on wildcard
		// subscriptions; the mismatch counter tracks them
		log.Debug().Err(err).Msg("trade rejected")
		s.observe(rec.Instrument(), ResultMismatch)
		return
	case err != nil:
		log.Warn().Err(err).Msg("trade not derivable")
		s.observe("unknown", ResultError)
		return
	case !tracked:
		return
	}

	s.observe(rec.Instrument(), ResultOK)
	_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.board))
	if err := s.deps.Repo.UpsertLatestTrade(ctx, rec); err != nil {
		log.Warn().Err(err).Str("instrument", rec.Instrument()).Msg("upsert latest trade failed")
	}
}

func (s *Service) observe(instrument, result string) {
	if s.deps.OnInsert != nil {
		s.deps.OnInsert(instrument, result)
	}
}
