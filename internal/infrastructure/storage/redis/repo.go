package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/storage"

	"github.com/redis/go-redis/v9"
)

// Repo keeps the latest trades in one hash and announces each update on a
// pub/sub channel.
type Repo struct {
	rdb       *redis.Client
	ttl       time.Duration
	keyLatest string // prefix + ":latest"
	channel   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, channel string) *Repo {
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":trades"
	}
	return &Repo{
		rdb:       rdb,
		ttl:       ttl,
		keyLatest: prefix + ":latest",
		channel:   channel,
	}
}

func (r *Repo) LatestKey() string { return r.keyLatest }
func (r *Repo) Channel() string   { return r.channel }

func (r *Repo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	b, err := json.Marshal(storage.FromRecord(t))
	if err != nil {
		return err
	}

	// Hash: field = "BTC-USD:1" -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, storage.Key(t), b)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.Publish(ctx, r.channel, b)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest reads back one mirrored trade.
func (r *Repo) Latest(ctx context.Context, instrument string, source int64) (domain.TradeRecord, error) {
	sym, ccy, _ := domain.SplitInstrument(instrument)
	field := storage.Key(domain.TradeRecord{Symbol: sym, Currency: ccy, SourceID: source})
	raw, err := r.rdb.HGet(ctx, r.keyLatest, field).Bytes()
	if err != nil {
		return domain.TradeRecord{}, err
	}
	var lt storage.LatestTrade
	if err := json.Unmarshal(raw, &lt); err != nil {
		return domain.TradeRecord{}, err
	}
	return lt.Record(), nil
}

// Close is a no-op; the client is owned and closed by whoever created it.
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
