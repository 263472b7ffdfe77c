package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"pdo/internal/alerts"
	"pdo/internal/metrics"
	"pdo/internal/risk"
	"pdo/internal/stream"
)

// txProducer is the part of *ck.Producer the worker drives.
type txProducer interface {
	BeginTransaction() error
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
	SendOffsetsToTransaction(ctx context.Context, offsets []ck.TopicPartition, consumerMetadata *ck.ConsumerGroupMetadata) error
	Flush(timeoutMs int) int
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
}

// groupConsumer is the part of *ck.Consumer the worker needs besides reading.
type groupConsumer interface {
	GetConsumerGroupMetadata() (*ck.ConsumerGroupMetadata, error)
	Seek(partition ck.TopicPartition, ignoredTimeoutMs int) error
}

type worker struct {
	proc      *stream.Processor
	producer  txProducer
	consumer  groupConsumer
	topicOut  string
	alerts    alerts.Writer
	threshold float64
	crashMode string // before|mid|after|none
	metrics   *metrics.Registry
	log       *zap.Logger
}

// handle publishes the assessment for msg and the next input offset in one
// transaction. When the transaction fails it is aborted and the consumer is
// rewound to msg, so the message is read again and its assessment produced
// again; the analytics state skips it by seq.
func (w *worker) handle(ctx context.Context, msg *ck.Message) error {
	rec, err := stream.Decode(msg.Value)
	if err != nil {
		w.log.Warn("skipping bad record", zap.Int64("offset", int64(msg.TopicPartition.Offset)), zap.Error(err))
		return nil
	}
	applied, out, sr, err := w.proc.Process(rec, int64(msg.TopicPartition.Offset)+1)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	if !applied {
		w.log.Info("re-producing redelivered record", zap.Int("order", out.OrderID))
	}
	val, err := json.Marshal(out)
	if err != nil {
		w.log.Warn("skipping unencodable assessment", zap.Int("order", out.OrderID), zap.Error(err))
		return nil
	}

	t0 := time.Now()
	if err := w.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	w.crash("before")
	topic := w.topicOut
	if err := w.producer.Produce(&ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
		Key:            []byte(out.Key),
		Value:          val,
	}, nil); err != nil {
		return w.abort(ctx, msg, err)
	}

	// the committed position is the offset after msg
	next := msg.TopicPartition
	next.Offset++
	meta, err := w.consumer.GetConsumerGroupMetadata()
	if err != nil {
		return w.abort(ctx, msg, err)
	}
	if err := w.producer.SendOffsetsToTransaction(ctx, []ck.TopicPartition{next}, meta); err != nil {
		return w.abort(ctx, msg, err)
	}
	w.crash("mid")
	w.producer.Flush(5000)
	if err := w.producer.CommitTransaction(ctx); err != nil {
		return w.abort(ctx, msg, err)
	}
	w.crash("after")
	w.metrics.TxCommitted(time.Since(t0))

	if out.Alert && w.alerts != nil {
		as := alerts.FromRecords([]risk.ScoredRecord{sr}, w.threshold, time.Unix(out.UpdatedAt, 0))
		n, err := alerts.Emit(ctx, w.alerts, as)
		w.metrics.Alerts(n)
		if err != nil {
			w.log.Warn("alert emission failed", zap.Int("order", out.OrderID), zap.Error(err))
		}
	}
	return nil
}

// abort rolls the transaction back and rewinds to msg. Only a failed abort or
// rewind is returned; the cause is logged.
func (w *worker) abort(ctx context.Context, msg *ck.Message, cause error) error {
	w.log.Warn("aborting transaction", zap.Int64("offset", int64(msg.TopicPartition.Offset)), zap.Error(cause))
	w.metrics.TxAbort()
	if err := w.producer.AbortTransaction(ctx); err != nil {
		return fmt.Errorf("abort tx: %w", err)
	}
	if err := w.consumer.Seek(msg.TopicPartition, 0); err != nil {
		return fmt.Errorf("rewind to offset %d: %w", msg.TopicPartition.Offset, err)
	}
	return nil
}

func (w *worker) crash(point string) {
	if w.crashMode == point {
		w.log.Fatal("crash " + point + " commit")
	}
}
