package models

import "time"

// PriceBar is one OHLCV bar. Bars are ordered ascending by Timestamp.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// NewsArticle is a news item mentioning one or more symbols.
type NewsArticle struct {
	ID          string    `json:"id"`
	Symbols     []string  `json:"symbols"`
	PublishedAt time.Time `json:"published_at"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body_text"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
}

// Text returns the text handed to sentiment models.
func (a NewsArticle) Text() string {
	switch {
	case a.Headline == "":
		return a.Body
	case a.Body == "":
		return a.Headline
	default:
		return a.Headline + ". " + a.Body
	}
}

// DedupeArticles drops repeated ids, keeping the first occurrence.
func DedupeArticles(in []NewsArticle) []NewsArticle {
	seen := make(map[string]struct{}, len(in))
	out := make([]NewsArticle, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Trade is a single real-time trade print from the streaming feed.
type Trade struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
