package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/metrics"
	"polyticker/internal/infrastructure/queue"
)

const (
	statusConnected   = "connected"
	statusAuthSuccess = "auth_success"
)

// Config for one feed session.
type Config struct {
	URL       string
	APIKey    string
	Subscribe []string
	Tags      []string // event tags forwarded to the consumer
	Capacity  int      // channel capacity handed to the consumer

	// Zero disables both. The session then blocks on a stalled peer forever.
	PingInterval time.Duration
	ReadTimeout  time.Duration

	Dialer        *websocket.Dialer
	OnStateChange func(from, to State)
}

// ConfigFor fills URL, Tags and Subscribe from the registered family.
func ConfigFor(family Family, apiKey string, capacity int) Config {
	return Config{
		URL:       family.URL,
		APIKey:    apiKey,
		Subscribe: family.Subscribe,
		Tags:      family.Tags,
		Capacity:  capacity,
	}
}

type action struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

type statusMsg struct {
	Ev      string `json:"ev"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Session runs the connect, auth, subscribe, stream protocol against one
// feed endpoint. There is no reconnection: once the session ends it stays
// ended.
type Session struct {
	name  string
	cfg   Config
	dec   *Decoder
	state atomic.Int32

	done    chan struct{}
	errOnce sync.Once
	err     error
}

func NewSession(name string, cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Session{
		name: name,
		cfg:  cfg,
		dec:  NewDecoder(cfg.Tags...),
		done: make(chan struct{}),
	}
}

func (s *Session) Name() string { return s.name }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	metrics.SessionState.WithLabelValues(s.name).Set(float64(to))
	log.Debug().Str("feed", s.name).Stringer("from", from).Stringer("to", to).Msg("session state")
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

// Open starts the session in its own goroutine and returns the receiving end
// of its output channel. Every value received is one of the Event variants.
// The channel's sending side is closed when the session ends; Wait reports
// why.
func (s *Session) Open(ctx context.Context) port.TradeSource {
	out := queue.New[domain.Trade](s.cfg.Capacity, queue.WithGauge(metrics.ChannelOccupancy.WithLabelValues(s.name)))
	go func() {
		defer out.CloseSend()
		err := s.Run(ctx, out)
		s.finish(err)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Str("feed", s.name).Stringer("state", s.State()).Err(err).Msg("feed session ended")
		} else {
			log.Info().Str("feed", s.name).Msg("feed session closed")
		}
	}()
	return out
}

var _ port.TradeFeed = (*Session)(nil)

// Wait blocks until a session started with Open has ended.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

func (s *Session) finish(err error) {
	s.errOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Run performs the handshake and then forwards decoded events into out until
// the connection ends, the consumer closes out, or ctx is cancelled.
func (s *Session) Run(ctx context.Context, out *queue.Channel[domain.Trade]) error {
	s.setState(StateConnecting)
	log.Info().Str("feed", s.name).Str("url", s.cfg.URL).Msg("ws connecting")
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("%w: dial %s: %v", domain.ErrConnection, s.cfg.URL, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := s.handshake(conn); err != nil {
		s.setState(StateFailed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	s.setState(StateStreaming)
	log.Info().Str("feed", s.name).Strs("subscribe", s.cfg.Subscribe).Msg("ws streaming")

	err = s.stream(ctx, conn, out)
	s.setState(StateClosed)
	return err
}

func (s *Session) handshake(conn *websocket.Conn) error {
	s.setState(StateAwaitingWelcome)
	if err := s.expectStatus(conn, statusConnected); err != nil {
		return err
	}

	s.setState(StateAuthenticating)
	if err := conn.WriteJSON(action{Action: "auth", Params: s.cfg.APIKey}); err != nil {
		return fmt.Errorf("%w: send auth: %v", domain.ErrConnection, err)
	}
	if err := s.expectStatus(conn, statusAuthSuccess); err != nil {
		return err
	}
	log.Info().Str("feed", s.name).Msg("ws authenticated")

	s.setState(StateSubscribing)
	params := strings.Join(s.cfg.Subscribe, ",")
	if err := conn.WriteJSON(action{Action: "subscribe", Params: params}); err != nil {
		return fmt.Errorf("%w: send subscribe: %v", domain.ErrConnection, err)
	}
	return nil
}

// expectStatus reads one message and requires its first element to carry
// the wanted status.
func (s *Session) expectStatus(conn *websocket.Conn, want string) error {
	s.armReadDeadline(conn)
	_, b, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: awaiting %q: %v", domain.ErrConnection, want, err)
	}
	var msgs []statusMsg
	if err := json.Unmarshal(b, &msgs); err != nil {
		return fmt.Errorf("%w: awaiting %q: payload is not a status array: %v", domain.ErrProtocol, want, err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("%w: awaiting %q: empty status array", domain.ErrProtocol, want)
	}
	if msgs[0].Status != want {
		return fmt.Errorf("%w: awaiting %q, got %q (%s)", domain.ErrProtocol, want, msgs[0].Status, msgs[0].Message)
	}
	return nil
}

func (s *Session) stream(ctx context.Context, conn *websocket.Conn, out *queue.Channel[domain.Trade]) error {
	if s.cfg.PingInterval > 0 {
		conn.SetPongHandler(func(string) error {
			s.armReadDeadline(conn)
			return nil
		})
		pingCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.pingLoop(pingCtx, conn)
	}

	for {
		s.armReadDeadline(conn)
		mt, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Str("feed", s.name).Msg("ws closed by peer")
				return nil
			}
			return fmt.Errorf("%w: read: %v", domain.ErrConnection, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := s.dispatch(ctx, b, out); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				log.Warn().Str("feed", s.name).Msg("consumer gone, closing session")
				return nil
			}
			return err
		}
	}
}

// dispatch decodes every envelope of one message independently. Only a
// failed forward is returned; bad envelopes are logged and skipped.
func (s *Session) dispatch(ctx context.Context, b []byte, out *queue.Channel[domain.Trade]) error {
	var envs []json.RawMessage
	if err := json.Unmarshal(b, &envs); err != nil {
		metrics.EnvelopesTotal.WithLabelValues(s.name, "decode_error").Inc()
		log.Warn().Str("feed", s.name).Err(err).Msg("message is not an envelope array")
		return nil
	}

	for _, raw := range envs {
		ev, ok, err := s.dec.Decode(raw)
		if err != nil {
			metrics.EnvelopesTotal.WithLabelValues(s.name, "decode_error").Inc()
			log.Warn().Str("feed", s.name).Err(err).RawJSON("envelope", raw).Msg("envelope skipped")
			continue
		}
		if !ok {
			metrics.EnvelopesTotal.WithLabelValues(s.name, "skipped").Inc()
			continue
		}
		if err := out.Send(ctx, ev); err != nil {
			return err
		}
		metrics.EnvelopesTotal.WithLabelValues(s.name, "forwarded").Inc()
	}
	return nil
}

func (s *Session) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Str("feed", s.name).Err(err).Msg("ws ping failed")
				return
			}
		}
	}
}

func (s *Session) armReadDeadline(conn *websocket.Conn) {
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
}
