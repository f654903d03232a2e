package svc

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"polyticker/internal/application/port"
	"polyticker/internal/application/usecase/monitor"
	"polyticker/internal/infrastructure/config"
	"polyticker/internal/infrastructure/feed"
	"polyticker/internal/infrastructure/metrics"
	"polyticker/internal/infrastructure/storage/composite"
	kafkarepo "polyticker/internal/infrastructure/storage/kafka"
	postgresrepo "polyticker/internal/infrastructure/storage/postgres"
	redisrepo "polyticker/internal/infrastructure/storage/redis"
	sqliterepo "polyticker/internal/infrastructure/storage/sqlite"
	"polyticker/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	redisClient *redisclient.Client
	repos       []port.Repository

	Sink    port.Sink
	Repo    port.Repository
	session *feed.Session

	// closed in reverse order
	closerChain []func() error
}

// New wires storage and the feed session from cfg. Nothing connects to the
// feed until the monitor service opens it.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	if err := sc.initializeFeed(); err != nil {
		return err
	}
	log.Info().
		Str("feed", sc.session.Name()).
		Int("mirrors", len(sc.repos)).
		Msg("components initialized")
	return nil
}

func (sc *ServiceContext) initializeFeed() error {
	fc := sc.Config.Feed
	family, ok := feed.Lookup(fc.Family)
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownFeedFamily, fc.Family, strings.Join(feed.Families(), ", "))
	}

	cfg := feed.ConfigFor(family, fc.APIKey, fc.ChannelCapacity)
	if strings.TrimSpace(fc.WsURL) != "" {
		cfg.URL = fc.WsURL
	}
	if len(fc.Subscribe) > 0 {
		cfg.Subscribe = fc.Subscribe
	}
	cfg.PingInterval = time.Duration(fc.PingIntervalSec) * time.Second
	cfg.ReadTimeout = time.Duration(fc.ReadTimeoutSec) * time.Second

	sc.session = feed.NewSession(family.Name, cfg)
	return nil
}

func (sc *ServiceContext) initializeStorage() error {
	st := sc.Config.Storage

	if st.SQLite.Enabled {
		repo, err := sqliterepo.New(st.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		sc.repos = append(sc.repos, repo)
		log.Info().Str("path", st.SQLite.Path).Msg("sqlite mirror ready")
	}

	if st.Postgres.Enabled {
		repo, err := postgresrepo.New(st.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		sc.repos = append(sc.repos, repo)
		log.Info().Msg("postgres mirror ready")
	}

	if st.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if st.Kafka.Enabled {
		if st.Kafka.EnsureTopic {
			if err := kafkarepo.EnsureTopic(st.Kafka.Brokers[0], st.Kafka.Topic); err != nil {
				return fmt.Errorf("kafka topic: %w", err)
			}
		}
		sc.repos = append(sc.repos, kafkarepo.New(st.Kafka.Brokers, st.Kafka.Topic))
		log.Info().Strs("brokers", st.Kafka.Brokers).Str("topic", st.Kafka.Topic).Msg("kafka mirror ready")
	}

	if len(sc.repos) == 0 {
		sc.Repo = monitor.NewNoopRepo()
		return nil
	}
	repo := composite.New(sc.repos...)
	sc.Repo = repo
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing mirrors")
		return repo.Close()
	})
	return nil
}

func (sc *ServiceContext) initRedis() error {
	rc := sc.Config.Storage.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("ping: %w", err)
	}

	sc.redisClient = rdb
	ttl := time.Duration(rc.TTLSeconds) * time.Second
	sc.repos = append(sc.repos, redisrepo.New(rdb, rc.Prefix, ttl, rc.Channel))

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().Str("addr", rc.Addr).Int("db", rc.DB).Msg("redis mirror ready")
	return nil
}

// Feed returns the configured session.
func (sc *ServiceContext) Feed() *feed.Session { return sc.session }

// BuildMonitorServiceDeps assembles everything the monitor service needs.
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Feed:        sc.session,
		Instruments: sc.Config.Instruments.List,
		Refresh:     time.Duration(sc.Config.App.RefreshSec) * time.Second,
		Sink:        sc.Sink,
		Repo:        sc.Repo,
		OnInsert: func(instrument, result string) {
			metrics.BucketInsertsTotal.WithLabelValues(instrument, result).Inc()
		},
	}
}

// Close releases storage in reverse order of creation.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
