package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"pdo/internal/acquire"
	"pdo/internal/alerts"
	"pdo/internal/config"
	"pdo/internal/logger"
	"pdo/internal/metrics"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
	"pdo/internal/stream"
)

func main() {
	var (
		configPath  string
		metricsAddr string
		crashMode   string // before|mid|after|none
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9091", "http listen for /metrics")
	flag.StringVar(&crashMode, "crash-mode", "none", "before|mid|after|none")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl, metricsAddr, crashMode); err != nil {
		zl.Fatal("scorer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger, metricsAddr, crashMode string) error {
	weights, err := risk.ParseWeights(cfg.Risk.Weights)
	if err != nil {
		return fmt.Errorf("risk weights: %w", err)
	}
	// offsets, not order ids, sequence this store, so it never shares the
	// dashboard's directory
	st, closeStore, err := state.Open(cfg.Analytics.Backend, filepath.Join(cfg.Analytics.Dir, "scorer"))
	if err != nil {
		return err
	}
	defer closeStore()

	// carrier history comes from the configured batch dataset
	src, err := batchSource(cfg, zl)
	if err != nil {
		return err
	}
	ds, _ := acquire.Load(ctx, src, zl)
	hist := risk.CarrierHistoryFrom(pipeline.Join(ds))
	proc := stream.NewProcessor(risk.NewScorer(weights), st, cfg.Risk.AlertThreshold, hist)

	aw, err := alerts.NewWriter(cfg.Alerts.Sink, cfg.Alerts.Path, cfg.Kafka.Bootstrap, cfg.Alerts.Topic)
	if err != nil {
		return err
	}
	if aw != nil {
		defer func() {
			if err := aw.Close(); err != nil {
				zl.Warn("alert writer close failed", zap.Error(err))
			}
		}()
	}

	mreg := metrics.NewRegistry()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			zl.Warn("metrics server stopped", zap.String("addr", metricsAddr), zap.Error(err))
		}
	}()

	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
		"transactional.id":   cfg.Kafka.TxID,
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer p.Close()

	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Bootstrap,
		"group.id":           cfg.Kafka.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()

	if err := c.SubscribeTopics([]string{cfg.Kafka.InputTopic}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := p.InitTransactions(ctx); err != nil {
		return fmt.Errorf("init tx: %w", err)
	}
	zl.Info("scorer started",
		zap.String("bootstrap", cfg.Kafka.Bootstrap),
		zap.String("in", cfg.Kafka.InputTopic),
		zap.String("out", cfg.Kafka.OutputTopic))

	w := &worker{
		proc:      proc,
		producer:  p,
		consumer:  c,
		topicOut:  cfg.Kafka.OutputTopic,
		alerts:    aw,
		threshold: cfg.Risk.AlertThreshold,
		crashMode: crashMode,
		metrics:   mreg,
		log:       zl,
	}
	for ctx.Err() == nil {
		// Read first to avoid opening a transaction when there is no input.
		msg, err := c.ReadMessage(5 * time.Second)
		if err != nil {
			if kerr, ok := err.(ck.Error); !ok || !kerr.IsTimeout() {
				zl.Warn("read failed", zap.Error(err))
			}
			continue
		}
		if err := w.handle(ctx, msg); err != nil {
			return err
		}
	}
	zl.Info("scorer stopped")
	return nil
}

func batchSource(cfg *config.Config, zl *zap.Logger) (acquire.Source, error) {
	gen := acquire.DefaultGenerator()
	gen.Seed = cfg.Data.Seed
	gen.Orders, gen.Deliveries, gen.Routes = cfg.Data.Orders, cfg.Data.Deliveries, cfg.Data.Routes
	if start, err := cfg.Data.StartDate(); err == nil {
		gen.Start = start
	}
	return acquire.NewSource(cfg.Data.Source, cfg.Data.Path, gen, nil, zl)
}
