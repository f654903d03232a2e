package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyticker/internal/domain"
	"polyticker/internal/infrastructure/storage"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func rec(src int64, price float64, ms int64) domain.TradeRecord {
	return domain.TradeRecord{
		Symbol:    "BTC",
		Currency:  "USD",
		Price:     price,
		Timestamp: time.UnixMilli(ms).UTC(),
		SourceID:  src,
	}
}

func TestRepoKeys(t *testing.T) {
	_, rdb := newClient(t)

	r := New(rdb, "polyticker", time.Minute, "")
	assert.Equal(t, "polyticker:latest", r.LatestKey())
	assert.Equal(t, "polyticker:trades", r.Channel())

	r = New(rdb, "p", 0, "custom")
	assert.Equal(t, "custom", r.Channel())
}

func TestUpsertLatestTradeRoundTrip(t *testing.T) {
	mr, rdb := newClient(t)
	r := New(rdb, "polyticker", 0, "")
	ctx := context.Background()

	require.NoError(t, r.UpsertLatestTrade(ctx, rec(1, 100, 1000)))
	require.NoError(t, r.UpsertLatestTrade(ctx, rec(2, 200, 1001)))
	require.NoError(t, r.UpsertLatestTrade(ctx, rec(1, 101, 1002)))

	got, err := r.Latest(ctx, "BTC-USD", 1)
	require.NoError(t, err)
	assert.Equal(t, rec(1, 101, 1002), got)

	got, err = r.Latest(ctx, "BTC-USD", 2)
	require.NoError(t, err)
	assert.Equal(t, rec(2, 200, 1001), got)

	fields, err := mr.HKeys(r.LatestKey())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{storage.Key(rec(1, 0, 0)), storage.Key(rec(2, 0, 0))}, fields)

	_, err = r.Latest(ctx, "BTC-USD", 9)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUpsertLatestTradeTTL(t *testing.T) {
	mr, rdb := newClient(t)
	ctx := context.Background()

	noTTL := New(rdb, "plain", 0, "")
	require.NoError(t, noTTL.UpsertLatestTrade(ctx, rec(1, 100, 1000)))
	assert.Equal(t, time.Duration(0), mr.TTL(noTTL.LatestKey()))

	withTTL := New(rdb, "expiring", 30*time.Second, "")
	require.NoError(t, withTTL.UpsertLatestTrade(ctx, rec(1, 100, 1000)))
	assert.Equal(t, 30*time.Second, mr.TTL(withTTL.LatestKey()))

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(withTTL.LatestKey()))
	assert.True(t, mr.Exists(noTTL.LatestKey()))
}

func TestUpsertLatestTradePublishes(t *testing.T) {
	_, rdb := newClient(t)
	r := New(rdb, "polyticker", 0, "")
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, r.Channel())
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmed
	require.NoError(t, err)

	want := rec(4, 2000.25, 1690000000123)
	require.NoError(t, r.UpsertLatestTrade(ctx, want))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, r.Channel(), msg.Channel)
		var lt storage.LatestTrade
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &lt))
		assert.Equal(t, want, lt.Record())
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}
