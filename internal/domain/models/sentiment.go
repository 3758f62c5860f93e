package models

import "time"

// SentimentLabel is the direction of a sentiment score.
type SentimentLabel string

const (
	Bullish SentimentLabel = "bullish"
	Bearish SentimentLabel = "bearish"
	Neutral SentimentLabel = "neutral"
)

// ModelScore is one model's contribution to an ensemble result.
type ModelScore struct {
	Label  SentimentLabel `json:"label"`
	Score  float64        `json:"score"`
	Weight float64        `json:"weight"`
}

// SentimentResult is an ensemble sentiment for one symbol. Never mutated once built.
type SentimentResult struct {
	Symbol         string                `json:"symbol"`
	Label          SentimentLabel        `json:"label"`
	Score          float64               `json:"score"`
	Confidence     float64               `json:"confidence"`
	ModelBreakdown map[string]ModelScore `json:"model_breakdown"`
	FailedModels   []string              `json:"failed_models,omitempty"`
	ArticleCount   int                   `json:"article_count"`
	ComputedAt     time.Time             `json:"computed_at"`
}
