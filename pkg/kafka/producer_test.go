package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestPublishEncodesValues(t *testing.T) {
	w := &captureWriter{}
	reg := prometheus.NewRegistry()
	p := newProducer(w, "gzip", reg)

	err := p.PublishBatch(context.Background(), "signals", []Message{
		{Key: []byte("AAPL"), Value: map[string]int{"a": 1}},
		{Value: "raw"},
		{Value: []byte("bytes")},
	})
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(w.msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Value) != `{"a":1}` || string(w.msgs[0].Key) != "AAPL" {
		t.Fatalf("bad json message: %s", w.msgs[0].Value)
	}
	if string(w.msgs[1].Value) != "raw" || string(w.msgs[2].Value) != "bytes" {
		t.Fatalf("bad raw messages")
	}
	if got := testutil.ToFloat64(p.metrics.msgsTotal.WithLabelValues("signals", "gzip", "ok")); got != 3 {
		t.Fatalf("messages metric = %v", got)
	}
}

func TestPublishMessageWrapsError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&captureWriter{err: boom}, "gzip", nil)
	if err := p.PublishMessage(context.Background(), "logs", []string{"x"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := p.PublishBatch(context.Background(), "logs", nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}

func TestNewProducerRejectsBadConfig(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli")); err == nil {
		t.Fatalf("expected error for unknown compression")
	}

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true))
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer type %T", p.writer)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("balancer %T, want *kafka.Hash", w.Balancer)
	}
	if w.Compression != kafka.Snappy {
		t.Fatalf("compression %v, want snappy", w.Compression)
	}
	_ = p.Close()
}
