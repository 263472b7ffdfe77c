package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pdo/internal/analytics"
	"pdo/internal/config"
	"pdo/internal/logger"
	"pdo/internal/manifest"
	"pdo/internal/metrics"
	"pdo/internal/restore"
	"pdo/internal/state"
)

func main() {
	var (
		configPath string
		httpAddr   string
		pollSec    int
		once       bool
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&httpAddr, "http", ":9090", "http listen for /metrics")
	flag.IntVar(&pollSec, "poll", 10, "poll interval seconds for manifest")
	flag.BoolVar(&once, "once", false, "run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
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

	mReader, err := manifest.NewReader(cfg.Analytics.ManifestSource, manifest.Sink{
		Dir:       cfg.Analytics.SnapshotDir,
		Bootstrap: cfg.Kafka.Bootstrap,
		Topic:     cfg.Analytics.ManifestTopic,
		Key:       cfg.Analytics.ManifestKey,
	})
	if err != nil {
		zl.Fatal("manifest reader", zap.Error(err))
	}

	mreg := metrics.NewRegistry()
	if !once {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(httpAddr, mux); err != nil {
				zl.Warn("metrics server stopped", zap.String("addr", httpAddr), zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(pollSec) * time.Second)
	defer ticker.Stop()
	for {
		cycle(ctx, zl, mReader, cfg.Analytics.SnapshotDir, mreg)
		if once {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle restores the latest snapshot into a fresh in-memory store and logs
// the headline KPIs it holds.
func cycle(ctx context.Context, zl *zap.Logger, mReader manifest.Reader, snapshotDir string, mreg *metrics.Registry) {
	t1 := time.Now()
	st := state.NewInMemoryStore()
	m, keys, err := restore.NewRestorer(st, mReader, snapshotDir, zl).RestoreLatest(ctx)
	if err != nil {
		zl.Warn("restore failed", zap.Error(err))
		return
	}
	if m.SnapshotID == "" {
		return
	}
	ttr := time.Since(t1)
	mreg.ObserveRestore(keys, 0, ttr, m.Age())

	k := analytics.Summarize(st)
	fields := []zap.Field{
		zap.String("snapshot", m.SnapshotID),
		zap.Int("keys", keys),
		zap.Int64("orders", k.TotalOrders),
		zap.Float64("total_cost", k.TotalCost),
		zap.Duration("ttr", ttr),
		zap.Duration("manifest_age", m.Age()),
	}
	if k.DelayRate != nil {
		fields = append(fields, zap.Float64("delay_rate", *k.DelayRate))
	}
	if k.AvgRating != nil {
		fields = append(fields, zap.Float64("avg_rating", *k.AvgRating))
	}
	zl.Info("recovery cycle", fields...)
}
