package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pdo/internal/acquire"
	"pdo/internal/alerts"
	"pdo/internal/analytics"
	"pdo/internal/config"
	"pdo/internal/dashboard"
	"pdo/internal/feeds"
	"pdo/internal/logger"
	"pdo/internal/manifest"
	"pdo/internal/metrics"
	"pdo/internal/restore"
	"pdo/internal/risk"
	"pdo/internal/server"
	"pdo/internal/snapshot"
	"pdo/internal/state"
)

var configPath = flag.String("config", "", "path to a YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	zl, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("dashboard failed", zap.Error(err))
	}
	zl.Info("dashboard exited")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting dashboard",
		zap.String("env", cfg.App.Env),
		zap.String("source", cfg.Data.Source),
		zap.String("backend", cfg.Analytics.Backend))

	weights, err := risk.ParseWeights(cfg.Risk.Weights)
	if err != nil {
		return fmt.Errorf("risk weights: %w", err)
	}

	src, closeSrc, err := newSource(cfg, zl)
	if err != nil {
		return err
	}
	defer closeSrc()

	st, closeStore, err := state.Open(cfg.Analytics.Backend, cfg.Analytics.Dir)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := metrics.NewRegistry()
	if err := warmStart(ctx, cfg, zl, src, st, weights, reg); err != nil {
		return fmt.Errorf("warm start: %w", err)
	}

	srv := server.New(server.Options{
		Source:  src,
		Weights: weights,
		Limit:   cfg.Risk.HighRiskLimit,
		Feed:    feeds.Stub{Salt: time.Now().UTC().Format(time.DateOnly)},
		Master:  st,
		Metrics: reg,
		Log:     zl,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(cfg.HTTP.AllowOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zl.Info("shutting down http")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSource builds the configured acquisition source. The close func is
// never nil.
func newSource(cfg *config.Config, zl *zap.Logger) (acquire.Source, func(), error) {
	start, err := cfg.Data.StartDate()
	if err != nil {
		return nil, nil, fmt.Errorf("data.start: %w", err)
	}
	gen := acquire.Generator{
		Seed:       cfg.Data.Seed,
		Orders:     cfg.Data.Orders,
		Deliveries: cfg.Data.Deliveries,
		Routes:     cfg.Data.Routes,
		Start:      start,
	}

	var cache acquire.Cache = acquire.NewMemoryCache()
	closeFn := func() {}
	if cfg.Data.Source == "generator" && cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		zl.Info("dataset cache: redis", zap.String("addr", cfg.Cache.RedisAddr))
		cache = acquire.NewRedisCache(rdb, cfg.Cache.TTL)
		closeFn = func() {
			if err := rdb.Close(); err != nil {
				zl.Warn("redis close failed", zap.Error(err))
			}
		}
	}
	src, err := acquire.NewSource(cfg.Data.Source, cfg.Data.Path, gen, cache, zl)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return src, closeFn, nil
}

// warmStart fills the master store from the unfiltered dataset, restoring the
// latest snapshot first when enabled, then publishes a fresh snapshot and
// emits alerts for high-risk orders.
func warmStart(ctx context.Context, cfg *config.Config, zl *zap.Logger, src acquire.Source,
	st state.Store, weights risk.Weights, reg *metrics.Registry) error {
	t0 := time.Now()
	ds, err := acquire.Load(ctx, src, zl)
	if err != nil {
		reg.Fallback()
	}
	recs, err := dashboard.Score(ds, dashboard.Request{Weights: weights})
	if err != nil {
		return err
	}

	sink := manifest.Sink{
		Dir:       cfg.Analytics.SnapshotDir,
		Bootstrap: cfg.Kafka.Bootstrap,
		Topic:     cfg.Analytics.ManifestTopic,
		Key:       cfg.Analytics.ManifestKey,
	}
	if cfg.Analytics.RestoreOnStart {
		reader, err := manifest.NewReader(cfg.Analytics.ManifestSource, sink)
		if err != nil {
			return err
		}
		res, err := restore.NewRestorer(st, reader, cfg.Analytics.SnapshotDir, zl).RestoreAndReplay(ctx, recs)
		if err != nil {
			return err
		}
		var age time.Duration
		if res.Manifest.SnapshotID != "" {
			age = res.Manifest.Age()
		}
		reg.ObserveRestore(res.Applied, res.Skipped, time.Since(t0), age)
	} else {
		res, err := analytics.Ingest(st, recs)
		if err != nil {
			return err
		}
		zl.Info("analytics ingested", zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped))
	}

	pub, err := manifest.NewPublisher(cfg.Analytics.ManifestSink, sink)
	if err != nil {
		return err
	}
	if pub != nil {
		id := snapshot.NewID()
		keys, err := snapshot.NewFilesystemSnapshotter(cfg.Analytics.SnapshotDir).WriteSnapshot(id, st)
		if err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if err := pub.PublishLatest(ctx, manifest.New(id, int64(len(recs)), keys)); err != nil {
			return fmt.Errorf("publish manifest: %w", err)
		}
		zl.Info("snapshot and manifest published", zap.String("snapshot", id), zap.Int("keys", keys))
	}

	w, err := alerts.NewWriter(cfg.Alerts.Sink, cfg.Alerts.Path, cfg.Kafka.Bootstrap, cfg.Alerts.Topic)
	if err != nil {
		return err
	}
	if w != nil {
		defer func() {
			if err := w.Close(); err != nil {
				zl.Warn("alert writer close failed", zap.Error(err))
			}
		}()
		n, err := alerts.Emit(ctx, w, alerts.FromRecords(recs, cfg.Risk.AlertThreshold, time.Now()))
		reg.Alerts(n)
		if err != nil {
			// alert delivery is best effort; the dashboard still starts
			zl.Warn("alert emission failed", zap.Int("emitted", n), zap.Error(err))
		} else {
			zl.Info("alerts emitted", zap.Int("count", n))
		}
	}
	return nil
}
