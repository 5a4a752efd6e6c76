package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/geocached/internal/api"
	"github.com/mohammed-shakir/geocached/internal/cache"
	"github.com/mohammed-shakir/geocached/internal/core/config"
	"github.com/mohammed-shakir/geocached/internal/core/health"
	"github.com/mohammed-shakir/geocached/internal/core/observability"
	"github.com/mohammed-shakir/geocached/internal/feed/kafkaconsumer"
	"github.com/mohammed-shakir/geocached/internal/hotness/expdecay"
	"github.com/mohammed-shakir/geocached/internal/hotness/metricswrap"
	"github.com/mohammed-shakir/geocached/internal/logger"
	"github.com/mohammed-shakir/geocached/internal/metrics"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "geocached",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting geocached",
		"addr", cfg.Addr,
		"version", Version,
		"precision", cfg.Precision,
		"feed", cfg.Feed.Enabled)

	var reg *metrics.Registry
	if cfg.MetricsEnabled {
		reg = metrics.NewRegistry(metrics.BuildInfo{Version: Version, Revision: Revision, BuildDate: BuildDate})
		observability.Init(reg, true)
	} else {
		observability.Init(nil, false)
	}

	tracker := expdecay.New(cfg.HotHalfLife)
	hot := metricswrap.New(tracker, metricswrap.Options{
		Threshold: cfg.HotThreshold,
		Sample:    cfg.HotLogSample,
		Logger:    zl.With().Str("component", "hotness").Logger(),
	})

	store, err := cache.New[json.RawMessage](
		cache.WithPrecision(cfg.Precision),
		cache.WithLogger(zl.With().Str("component", "store").Logger()),
		cache.WithResultCache(cfg.ResultCacheSize),
		cache.WithHotness(hot),
	)
	if err != nil {
		appLog.Error("store setup failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready health.ReadinessReporter = health.Always{}
	var consumer *kafkaconsumer.Consumer
	if cfg.Feed.Enabled {
		consumer = kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Feed), appLog, zl, store)
		ready = consumer
	}

	opts := api.Options{
		Logger:  appLog,
		Store:   store,
		IDs:     objectid.UUID{},
		Hot:     hot,
		HotTopN: cfg.HotTopN,
		Ready:   ready,
	}
	if reg != nil {
		opts.Metrics = reg.Handler()
		opts.MetricsPath = cfg.MetricsPath
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx, cfg.Addr, api.NewRouter(opts), appLog)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("geocached exited with error", "err", err)
		return 1
	}
	appLog.Info("geocached stopped")
	return 0
}
