package models

// SentimentResponse is returned by GetSentiment. Degraded and Stale flag answers
// built from fallback or cached-past-TTL inputs; Notes says which.
type SentimentResponse struct {
	Symbol       string           `json:"symbol"`
	LookbackDays int              `json:"lookback_days"`
	Sentiment    *SentimentResult `json:"sentiment"`
	Articles     []NewsArticle    `json:"articles,omitempty"`
	Degraded     bool             `json:"degraded"`
	Stale        bool             `json:"stale"`
	Notes        []string         `json:"notes,omitempty"`
}

// SignalsResponse is returned by GetSignals after filtering.
type SignalsResponse struct {
	Symbol       string   `json:"symbol"`
	LookbackDays int      `json:"lookback_days"`
	Signals      []Signal `json:"signals"`
	Degraded     bool     `json:"degraded"`
	Stale        bool     `json:"stale"`
	Notes        []string `json:"notes,omitempty"`
}
