package models

// Requests for the pipeline HTTP endpoints. Defined in domain for consistency and reuse.
// Pointer fields keep an explicit zero distinguishable from an absent parameter, so an
// out-of-range value is rejected instead of being replaced by the default.

type SentimentRequest struct {
	Symbol       string `query:"symbol" json:"symbol" validate:"required,symbol"`
	LookbackDays *int   `query:"lookback_days" json:"lookback_days" default:"7" validate:"required,gte=1,lte=30"`
	IncludeNews  bool   `query:"include_news" json:"include_news"`
}

type SignalsRequest struct {
	Symbol              string   `query:"symbol" json:"symbol" validate:"required,symbol"`
	LookbackDays        *int     `query:"lookback_days" json:"lookback_days" default:"7" validate:"required,gte=1,lte=30"`
	Action              string   `query:"action" json:"action" validate:"omitempty,oneof=buy sell hold strong_buy strong_sell"`
	ConfidenceThreshold *float64 `query:"confidence_threshold" json:"confidence_threshold" default:"0.7" validate:"required,gte=0,lte=1"`
}
