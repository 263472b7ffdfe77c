package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"pdo/internal/manifest"
	"pdo/internal/model"
	"pdo/internal/risk"
)

// Alert is one high-risk order. ID is derived from the order id and score, so
// re-running the pipeline over the same data yields the same ids.
type Alert struct {
	ID          string        `json:"id"`
	OrderID     int           `json:"orderId"`
	Score       float64       `json:"riskScore"`
	Level       risk.Level    `json:"riskLevel"`
	Triggered   []risk.Factor `json:"triggered,omitempty"`
	Carrier     model.Carrier `json:"carrier,omitempty"`
	Origin      model.City    `json:"originWarehouse,omitempty"`
	Destination model.City    `json:"destinationCity,omitempty"`
	Action      string        `json:"action"`
	TS          int64         `json:"ts"`
}

var namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("pdo.alerts"))

// AlertID is stable for an (order, score) pair.
func AlertID(orderID int, score float64) string {
	name := strconv.Itoa(orderID) + "/" + strconv.FormatFloat(score, 'f', 9, 64)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// FromRecords returns an alert for every scored record above threshold, in
// input order. ts stamps every alert.
func FromRecords(recs []risk.ScoredRecord, threshold float64, ts time.Time) []Alert {
	var out []Alert
	for _, r := range recs {
		if !r.Scored() || *r.Score <= threshold {
			continue
		}
		a := Alert{
			ID:          AlertID(r.OrderID, *r.Score),
			OrderID:     r.OrderID,
			Score:       *r.Score,
			Level:       r.Level,
			Triggered:   r.Triggered,
			Origin:      r.Origin,
			Destination: r.Destination,
			Action:      risk.RecommendedAction,
			TS:          ts.Unix(),
		}
		if r.Delivery != nil {
			a.Carrier = r.Delivery.Carrier
		}
		out = append(out, a)
	}
	return out
}

type Writer interface {
	Append(ctx context.Context, a Alert) error
	Close() error
}

// Emit appends every alert to w and returns how many were written before the
// first error.
func Emit(ctx context.Context, w Writer, as []Alert) (int, error) {
	for i, a := range as {
		if err := w.Append(ctx, a); err != nil {
			return i, fmt.Errorf("alert %d: %w", a.OrderID, err)
		}
	}
	return len(as), nil
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, a Alert) error {
	for _, w := range m.writers {
		if err := w.Append(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// FileWriter appends alerts as JSON lines.
type FileWriter struct {
	path string
}

func NewFileWriter(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: path}, nil
}

func (w *FileWriter) Append(_ context.Context, a Alert) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&a); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Close is a no-op; the file is opened per append.
func (w *FileWriter) Close() error { return nil }

// KafkaWriter publishes alerts keyed by order id.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a Kafka writer. bootstrap is a comma-separated list
// of host:port.
func NewKafkaWriter(bootstrap, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(manifest.Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Append(ctx context.Context, a Alert) error {
	b, err := json.Marshal(&a)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(strconv.Itoa(a.OrderID)), Value: b})
}

// Close flushes pending messages and closes the connection.
func (k *KafkaWriter) Close() error { return k.writer.Close() }

// NewWriter selects alert sinks by name: none, file, kafka or both. none
// returns a nil Writer.
func NewWriter(kind, path, bootstrap, topic string) (Writer, error) {
	var file Writer
	if kind == "file" || kind == "both" {
		fw, err := NewFileWriter(path)
		if err != nil {
			return nil, fmt.Errorf("init alert file: %w", err)
		}
		file = fw
	}
	switch kind {
	case "none", "":
		return nil, nil
	case "file":
		return file, nil
	case "kafka":
		return NewKafkaWriter(bootstrap, topic), nil
	case "both":
		return NewMultiWriter(file, NewKafkaWriter(bootstrap, topic)), nil
	}
	return nil, fmt.Errorf("unknown alert sink %q", kind)
}
