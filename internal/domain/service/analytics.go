package service

import (
	"context"

	"FinSignal/internal/domain/models"
)

// SentimentScore is one model's opinion of one text.
type SentimentScore struct {
	Label     models.SentimentLabel
	Magnitude float64 // [0,1]
}

// Signed maps the score onto [-1,1]: positive for bullish, negative for bearish.
func (s SentimentScore) Signed() float64 {
	switch s.Label {
	case models.Bullish:
		return s.Magnitude
	case models.Bearish:
		return -s.Magnitude
	default:
		return 0
	}
}

// SentimentModel scores a single text. Implementations share no mutable state.
type SentimentModel interface {
	Name() string
	Score(ctx context.Context, text string) (SentimentScore, error)
}

// BatchSentimentModel scores many texts in one round trip.
type BatchSentimentModel interface {
	SentimentModel
	ScoreBatch(ctx context.Context, texts []string) ([]SentimentScore, error)
}

// IndicatorEngine computes technical indicators from a bar series.
type IndicatorEngine interface {
	Compute(bars []models.PriceBar) (models.IndicatorSet, error)
}
