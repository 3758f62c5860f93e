package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// producer is the part of pkg/kafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// SignalEvent is the payload written to the signals topic.
type SignalEvent struct {
	Symbol       string                 `json:"symbol"`
	LookbackDays int                    `json:"lookback_days"`
	Signal       models.Signal          `json:"signal"`
	Sentiment    *models.SentimentLabel `json:"sentiment,omitempty"`
	Degraded     bool                   `json:"degraded"`
	Notes        []string               `json:"notes,omitempty"`
	PublishedAt  time.Time              `json:"published_at"`
}

// KafkaSignalPublisher implements SignalPublisher, keyed by symbol so one
// symbol's events stay ordered within a partition.
type KafkaSignalPublisher struct {
	producer producer
	topic    string
	now      func() time.Time
}

// NewKafkaSignalPublisher creates a publisher writing to topic.
func NewKafkaSignalPublisher(p producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic, now: time.Now}
}

func (p *KafkaSignalPublisher) PublishAnalysis(ctx context.Context, a *models.Analysis) error {
	ev := SignalEvent{
		Symbol:       a.Symbol,
		LookbackDays: a.LookbackDays,
		Signal:       a.Signal,
		Degraded:     a.Degraded,
		Notes:        a.Notes,
		PublishedAt:  p.now().UTC(),
	}
	if a.Sentiment != nil {
		label := a.Sentiment.Label
		ev.Sentiment = &label
	}
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), ev)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopSignalPublisher drops analyses; used when Kafka is disabled.
type NopSignalPublisher struct{}

func (NopSignalPublisher) PublishAnalysis(context.Context, *models.Analysis) error { return nil }
func (NopSignalPublisher) Close() error { return nil }

var (
	_ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)
	_ domrepo.SignalPublisher = NopSignalPublisher{}
)
