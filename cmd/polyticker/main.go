package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"polyticker/internal/application/usecase/monitor"
	"polyticker/internal/infrastructure/config"
	"polyticker/internal/infrastructure/logger"
	"polyticker/internal/infrastructure/metrics"
	"polyticker/internal/infrastructure/svc"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml or config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	log.Info().
		Str("config", *configPath).
		Str("family", cfg.Feed.Family).
		Int("instruments", len(cfg.Instruments.List)).
		Int("refresh_sec", cfg.App.RefreshSec).
		Msg("polyticker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the process ends with the feed
		defer stop()
		return monitor.NewService(sc.BuildMonitorServiceDeps()).Run(gctx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Stringer("state", sc.Feed().State()).Msg("polyticker exited")
		sc.Close()
		os.Exit(1)
	}
	log.Info().Msg("polyticker stopped")
}
