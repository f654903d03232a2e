package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/storage"
)

type captureWriter struct {
	msgs   []kafkaGo.Message
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestUpsertLatestTradeKeysByInstrumentAndSource(t *testing.T) {
	w := &captureWriter{}
	repo := &Repo{w: w}

	rec := domain.TradeRecord{
		Symbol:    "ETH",
		Currency:  "USD",
		Price:     2000.25,
		Timestamp: time.UnixMilli(1690000000000).UTC(),
		SourceID:  4,
	}
	require.NoError(t, repo.UpsertLatestTrade(context.Background(), rec))
	require.Len(t, w.msgs, 1)

	m := w.msgs[0]
	assert.Equal(t, "ETH-USD:4", string(m.Key))
	assert.True(t, m.Time.Equal(rec.Timestamp))

	var lt storage.LatestTrade
	require.NoError(t, json.Unmarshal(m.Value, &lt))
	assert.Equal(t, rec, lt.Record())

	require.NoError(t, repo.Close())
	assert.True(t, w.closed)
}

func TestWriterDoesNotBlockPerTrade(t *testing.T) {
	w := newWriter([]string{"127.0.0.1:9092"}, "latest-trades")
	defer w.Close()

	assert.True(t, w.Async)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, 100*time.Millisecond)
	assert.NotNil(t, w.Completion)
	assert.Equal(t, "latest-trades", w.Topic)
	assert.IsType(t, &kafkaGo.Hash{}, w.Balancer)

	// a failed batch is reported, not raised
	assert.NotPanics(t, func() { logFailedBatch(nil, errors.New("broker down")) })
	assert.NotPanics(t, func() { logFailedBatch([]kafkaGo.Message{{Key: []byte("BTC-USD:1")}}, nil) })
}
