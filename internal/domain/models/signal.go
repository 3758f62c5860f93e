package models

import "time"

// Action is a discrete trading recommendation.
type Action string

const (
	ActionStrongBuy  Action = "strong_buy"
	ActionBuy        Action = "buy"
	ActionHold       Action = "hold"
	ActionSell       Action = "sell"
	ActionStrongSell Action = "strong_sell"
)

// ParseAction returns the action named s and whether it is known.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionStrongBuy, ActionBuy, ActionHold, ActionSell, ActionStrongSell:
		return a, true
	default:
		return "", false
	}
}

// RiskRating buckets historical volatility.
type RiskRating string

const (
	RiskLow      RiskRating = "low"
	RiskModerate RiskRating = "moderate"
	RiskHigh     RiskRating = "high"
)

// Signal is derived deterministically from a sentiment result and an indicator set.
type Signal struct {
	Symbol      string     `json:"symbol"`
	Action      Action     `json:"action"`
	Confidence  float64    `json:"confidence"`
	EntryPrice  float64    `json:"entry_price"`
	TargetPrice float64    `json:"target_price"`
	StopPrice   float64    `json:"stop_price"`
	Rule        string     `json:"rule"`
	Rationale   string     `json:"rationale"`
	RiskRating  RiskRating `json:"risk_rating"`
	Volatility  float64    `json:"volatility"`
	ComputedAt  time.Time  `json:"computed_at"`
}

// Analysis is the cached outcome of one pipeline run for a symbol.
type Analysis struct {
	Symbol       string           `json:"symbol"`
	LookbackDays int              `json:"lookback_days"`
	Sentiment    *SentimentResult `json:"sentiment,omitempty"`
	Indicators   *IndicatorSet    `json:"indicators,omitempty"`
	Signal       Signal           `json:"signal"`
	Articles     []NewsArticle    `json:"articles,omitempty"`
	Degraded     bool             `json:"degraded"`
	Notes        []string         `json:"notes,omitempty"`
	ComputedAt   time.Time        `json:"computed_at"`
}
