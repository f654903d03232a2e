package svc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyticker/internal/infrastructure/config"
	"polyticker/internal/infrastructure/feed"
	"polyticker/internal/infrastructure/storage/composite"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.RefreshSec = 2
	cfg.Feed.Family = feed.FamilyStocks
	cfg.Feed.APIKey = "k"
	cfg.Feed.ChannelCapacity = 10
	cfg.Instruments.List = []string{"AAPL-USD"}
	return cfg
}

func TestNewWiresFeedFromFamily(t *testing.T) {
	cfg := baseConfig()
	cfg.Feed.WsURL = "ws://127.0.0.1:1/stocks"
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "mirror.db")

	sc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer sc.Close()

	assert.Equal(t, feed.FamilyStocks, sc.Feed().Name())
	assert.Equal(t, feed.StateDisconnected, sc.Feed().State())
	assert.IsType(t, &composite.Repo{}, sc.Repo)

	deps := sc.BuildMonitorServiceDeps()
	assert.Equal(t, []string{"AAPL-USD"}, deps.Instruments)
	assert.Equal(t, "2s", deps.Refresh.String())
	assert.NotNil(t, deps.OnInsert)
}

func TestNewWithoutMirrorsUsesNoop(t *testing.T) {
	sc, err := New(context.Background(), baseConfig())
	require.NoError(t, err)
	defer sc.Close()

	assert.NotNil(t, sc.Repo)
	_, isComposite := sc.Repo.(*composite.Repo)
	assert.False(t, isComposite)
}

func TestNewRejectsUnknownFamily(t *testing.T) {
	cfg := baseConfig()
	cfg.Feed.Family = "forex"
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownFeedFamily)
}
