package kafka

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/storage"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// Repo publishes every latest trade keyed by instrument and source, so a
// compacted topic ends up holding one message per key.
type Repo struct {
	w messageWriter
}

// batchTimeout bounds how long a queued message waits for batch peers.
const batchTimeout = 20 * time.Millisecond

func New(brokers []string, topic string) *Repo {
	return &Repo{w: newWriter(brokers, topic)}
}

// newWriter builds an async writer: WriteMessages only enqueues, so a slow
// or unreachable broker never holds up the consumer. Failed batches are
// logged from Completion.
func newWriter(brokers []string, topic string) *kafkaGo.Writer {
	return &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkaGo.Hash{},
		RequiredAcks:           kafkaGo.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           batchTimeout,
		Completion:             logFailedBatch,
	}
}

func logFailedBatch(msgs []kafkaGo.Message, err error) {
	if err == nil {
		return
	}
	ev := log.Warn().Err(err).Int("messages", len(msgs))
	if len(msgs) > 0 {
		ev = ev.Str("topic", msgs[0].Topic).Bytes("first_key", msgs[0].Key)
	}
	ev.Msg("kafka mirror write failed")
}

func (r *Repo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	value, err := json.Marshal(storage.FromRecord(t))
	if err != nil {
		return err
	}
	return r.w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(storage.Key(t)),
		Value: value,
		Time:  t.Timestamp,
	})
}

func (r *Repo) Close() error { return r.w.Close() }

// EnsureTopic creates topic as a compacted topic through the cluster controller.
func EnsureTopic(broker, topic string) error {
	conn, err := kafkaGo.Dial("tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafkaGo.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		ConfigEntries: []kafkaGo.ConfigEntry{
			{ConfigName: "cleanup.policy", ConfigValue: "compact"},
		},
	})
}

var _ port.Repository = (*Repo)(nil)
