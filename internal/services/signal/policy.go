package signal

import "fmt"

// Policy holds every threshold the generator uses. Bearish levels mirror the bullish ones.
type Policy struct {
	StrongConfidence float64 `yaml:"strong_confidence" default:"0.75"`
	BuyConfidence    float64 `yaml:"buy_confidence" default:"0.55"`
	StrongScore      float64 `yaml:"strong_score" default:"0.5"`

	BullStrongRSILow  float64 `yaml:"bull_strong_rsi_low" default:"40"`
	BullStrongRSIHigh float64 `yaml:"bull_strong_rsi_high" default:"70"`
	Overbought        float64 `yaml:"overbought" default:"70"`
	ExtremeOverbought float64 `yaml:"extreme_overbought" default:"80"`
	BearStrongRSILow  float64 `yaml:"bear_strong_rsi_low" default:"30"`
	BearStrongRSIHigh float64 `yaml:"bear_strong_rsi_high" default:"60"`
	Oversold          float64 `yaml:"oversold" default:"30"`
	ExtremeOversold   float64 `yaml:"extreme_oversold" default:"20"`

	TargetPct       float64 `yaml:"target_pct" default:"0.05"`
	StrongTargetPct float64 `yaml:"strong_target_pct" default:"0.08"`
	StopPct         float64 `yaml:"stop_pct" default:"0.02"`
	PriceDecimals   int32   `yaml:"price_decimals" default:"2"`

	RiskLowMax      float64 `yaml:"risk_low_max" default:"0.015"`
	RiskModerateMax float64 `yaml:"risk_moderate_max" default:"0.03"`

	ConflictPenalty            float64 `yaml:"conflict_penalty" default:"0.5"`
	SupportBase                float64 `yaml:"support_base" default:"0.6"`
	SupportStep                float64 `yaml:"support_step" default:"0.2"`
	InsufficientHistoryPenalty float64 `yaml:"insufficient_history_penalty" default:"0.7"`
	TechnicalBaseConfidence    float64 `yaml:"technical_base_confidence" default:"0.5"`
	NoSentimentPenalty         float64 `yaml:"no_sentiment_penalty" default:"0.6"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		StrongConfidence: 0.75,
		BuyConfidence:    0.55,
		StrongScore:      0.5,

		BullStrongRSILow:  40,
		BullStrongRSIHigh: 70,
		Overbought:        70,
		ExtremeOverbought: 80,
		BearStrongRSILow:  30,
		BearStrongRSIHigh: 60,
		Oversold:          30,
		ExtremeOversold:   20,

		TargetPct:       0.05,
		StrongTargetPct: 0.08,
		StopPct:         0.02,
		PriceDecimals:   2,

		RiskLowMax:      0.015,
		RiskModerateMax: 0.03,

		ConflictPenalty:            0.5,
		SupportBase:                0.6,
		SupportStep:                0.2,
		InsufficientHistoryPenalty: 0.7,
		TechnicalBaseConfidence:    0.5,
		NoSentimentPenalty:         0.6,
	}
}

// Validate checks the policy for internally inconsistent thresholds.
func (p Policy) Validate() error {
	switch {
	case p.BuyConfidence < 0 || p.BuyConfidence > p.StrongConfidence || p.StrongConfidence > 1:
		return fmt.Errorf("signal policy: need 0 <= buy_confidence <= strong_confidence <= 1")
	case p.BullStrongRSILow >= p.BullStrongRSIHigh || p.BearStrongRSILow >= p.BearStrongRSIHigh:
		return fmt.Errorf("signal policy: strong RSI bands are empty")
	case p.Oversold >= p.Overbought || p.ExtremeOversold > p.Oversold || p.ExtremeOverbought < p.Overbought:
		return fmt.Errorf("signal policy: RSI levels out of order")
	case p.TargetPct <= 0 || p.StrongTargetPct < p.TargetPct || p.StopPct <= 0 || p.StopPct >= 1:
		return fmt.Errorf("signal policy: price offsets out of range")
	case p.PriceDecimals < 0:
		return fmt.Errorf("signal policy: price_decimals must be >= 0")
	case p.RiskLowMax <= 0 || p.RiskModerateMax <= p.RiskLowMax:
		return fmt.Errorf("signal policy: risk thresholds out of order")
	}
	for name, v := range map[string]float64{
		"conflict_penalty":             p.ConflictPenalty,
		"insufficient_history_penalty": p.InsufficientHistoryPenalty,
		"technical_base_confidence":    p.TechnicalBaseConfidence,
		"no_sentiment_penalty":         p.NoSentimentPenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("signal policy: %s must be within [0,1]", name)
		}
	}
	return nil
}
