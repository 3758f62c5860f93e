// Package signal turns a sentiment result and an indicator set into a trading signal.
// The rule ladder is deterministic: equal inputs and clock give equal signals.
package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/features"

	"github.com/shopspring/decimal"
)

// Rule names reported on Signal.Rule.
const (
	RuleStrongBuy          = "strong_buy"
	RuleBuy                = "buy"
	RuleStrongSell         = "strong_sell"
	RuleSell               = "sell"
	RuleOverboughtConflict = "bullish_overbought_conflict"
	RuleOversoldConflict   = "bearish_oversold_conflict"
	RuleNeutral            = "neutral_sentiment"
	RuleLowConfidence      = "low_confidence"
	RuleNoSupport          = "no_supporting_indicator"
	RuleSentimentOnly      = "sentiment_only"
	RuleTechnicalOnly      = "technical_only"
)

// Inputs is what one pipeline run hands the generator. Either Sentiment or Indicators
// may be nil, not both.
type Inputs struct {
	Symbol     string
	Sentiment  *models.SentimentResult
	Indicators *models.IndicatorSet
	Bars       []models.PriceBar
}

// Generator applies a Policy.
type Generator struct {
	policy Policy
	now    func() time.Time
}

// NewGenerator validates the policy. A nil clock uses time.Now.
func NewGenerator(p Policy, now func() time.Time) (*Generator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{policy: p, now: now}, nil
}

type decision struct {
	action     models.Action
	confidence float64
	rule       string
	reasons    []string
}

// Generate derives a signal. With sentiment missing it runs the technical-only ladder,
// with indicators missing the sentiment-only ladder.
func (g *Generator) Generate(in Inputs) (models.Signal, error) {
	var d decision
	switch {
	case in.Sentiment == nil && in.Indicators == nil:
		return models.Signal{}, fmt.Errorf("%s: no inputs: %w", in.Symbol,
			errors.Join(errs.ErrNoSentimentAvailable, errs.ErrInsufficientHistory))
	case in.Indicators == nil:
		d = g.sentimentOnly(in.Sentiment)
	case in.Sentiment == nil:
		d = g.technicalOnly(in.Indicators)
	default:
		d = g.full(in.Sentiment, in.Indicators)
	}

	entry := 0.0
	switch {
	case in.Indicators != nil:
		entry = in.Indicators.LastClose
	case len(in.Bars) > 0:
		entry = in.Bars[len(in.Bars)-1].Close
	}
	target, stop := g.prices(d.action, entry)

	risk, vol := g.risk(in.Bars)
	return models.Signal{
		Symbol:      in.Symbol,
		Action:      d.action,
		Confidence:  clamp01(d.confidence),
		EntryPrice:  g.round(entry),
		TargetPrice: target,
		StopPrice:   stop,
		Rule:        d.rule,
		Rationale:   strings.Join(d.reasons, "; "),
		RiskRating:  risk,
		Volatility:  vol,
		ComputedAt:  g.now().UTC(),
	}, nil
}

func (g *Generator) full(s *models.SentimentResult, ind *models.IndicatorSet) decision {
	p := g.policy
	rsi, hist, cross := ind.RSI, ind.MACD.Histogram, ind.MACD.Cross
	reasons := []string{sentimentReason(s), rsiReason(rsi, p), macdReason(hist, cross)}

	switch s.Label {
	case models.Bullish:
		switch {
		case rsi > p.ExtremeOverbought:
			return decision{models.ActionHold, s.Confidence * p.ConflictPenalty, RuleOverboughtConflict,
				append(reasons, fmt.Sprintf("bullish sentiment conflicts with RSI above %.0f", p.ExtremeOverbought))}
		case s.Confidence < p.BuyConfidence:
			return decision{models.ActionHold, s.Confidence, RuleLowConfidence,
				append(reasons, fmt.Sprintf("confidence below %.2f", p.BuyConfidence))}
		case s.Confidence >= p.StrongConfidence && s.Score >= p.StrongScore &&
			rsi >= p.BullStrongRSILow && rsi <= p.BullStrongRSIHigh && hist > 0:
			return decision{models.ActionStrongBuy, s.Confidence, RuleStrongBuy,
				append(reasons, "strong bullish sentiment with RSI in trend band and rising momentum")}
		}
		support := 0
		if rsi < p.Overbought {
			support++
		}
		if cross == models.CrossBullish || hist > 0 {
			support++
		}
		if rsi >= p.Overbought && cross != models.CrossBullish {
			return decision{models.ActionHold, s.Confidence * p.ConflictPenalty, RuleNoSupport,
				append(reasons, "no indicator confirms bullish sentiment")}
		}
		return decision{models.ActionBuy, s.Confidence * g.supportFactor(support), RuleBuy,
			append(reasons, fmt.Sprintf("bullish sentiment confirmed by %d indicator(s)", support))}

	case models.Bearish:
		switch {
		case rsi < p.ExtremeOversold:
			return decision{models.ActionHold, s.Confidence * p.ConflictPenalty, RuleOversoldConflict,
				append(reasons, fmt.Sprintf("bearish sentiment conflicts with RSI below %.0f", p.ExtremeOversold))}
		case s.Confidence < p.BuyConfidence:
			return decision{models.ActionHold, s.Confidence, RuleLowConfidence,
				append(reasons, fmt.Sprintf("confidence below %.2f", p.BuyConfidence))}
		case s.Confidence >= p.StrongConfidence && s.Score <= -p.StrongScore &&
			rsi >= p.BearStrongRSILow && rsi <= p.BearStrongRSIHigh && hist < 0:
			return decision{models.ActionStrongSell, s.Confidence, RuleStrongSell,
				append(reasons, "strong bearish sentiment with RSI in trend band and falling momentum")}
		}
		support := 0
		if rsi > p.Oversold {
			support++
		}
		if cross == models.CrossBearish || hist < 0 {
			support++
		}
		if rsi <= p.Oversold && cross != models.CrossBearish {
			return decision{models.ActionHold, s.Confidence * p.ConflictPenalty, RuleNoSupport,
				append(reasons, "no indicator confirms bearish sentiment")}
		}
		return decision{models.ActionSell, s.Confidence * g.supportFactor(support), RuleSell,
			append(reasons, fmt.Sprintf("bearish sentiment confirmed by %d indicator(s)", support))}
	}

	return decision{models.ActionHold, s.Confidence, RuleNeutral, append(reasons, "sentiment is neutral")}
}

func (g *Generator) sentimentOnly(s *models.SentimentResult) decision {
	p := g.policy
	reasons := []string{sentimentReason(s), "RSI unavailable (insufficient history)"}
	conf := s.Confidence * p.InsufficientHistoryPenalty
	switch {
	case s.Label == models.Bullish && s.Confidence >= p.BuyConfidence:
		return decision{models.ActionBuy, conf, RuleSentimentOnly, append(reasons, "capped at buy without indicators")}
	case s.Label == models.Bearish && s.Confidence >= p.BuyConfidence:
		return decision{models.ActionSell, conf, RuleSentimentOnly, append(reasons, "capped at sell without indicators")}
	}
	return decision{models.ActionHold, conf, RuleSentimentOnly, append(reasons, "sentiment too weak to act on alone")}
}

func (g *Generator) technicalOnly(ind *models.IndicatorSet) decision {
	p := g.policy
	hist := ind.MACD.Histogram
	reasons := []string{"sentiment unavailable", rsiReason(ind.RSI, p), macdReason(hist, ind.MACD.Cross)}
	conf := p.TechnicalBaseConfidence * p.NoSentimentPenalty
	switch {
	case ind.RSI < p.Oversold && hist > 0:
		return decision{models.ActionBuy, conf, RuleTechnicalOnly, append(reasons, "oversold with turning momentum")}
	case ind.RSI > p.Overbought && hist < 0:
		return decision{models.ActionSell, conf, RuleTechnicalOnly, append(reasons, "overbought with fading momentum")}
	}
	return decision{models.ActionHold, conf, RuleTechnicalOnly, append(reasons, "no technical extreme")}
}

func (g *Generator) supportFactor(n int) float64 {
	return math.Min(1, g.policy.SupportBase+g.policy.SupportStep*float64(n))
}

func (g *Generator) prices(a models.Action, entry float64) (target, stop float64) {
	p := g.policy
	switch a {
	case models.ActionStrongBuy:
		return g.round(entry * (1 + p.StrongTargetPct)), g.round(entry * (1 - p.StopPct))
	case models.ActionBuy:
		return g.round(entry * (1 + p.TargetPct)), g.round(entry * (1 - p.StopPct))
	case models.ActionStrongSell:
		return g.round(entry * (1 - p.StrongTargetPct)), g.round(entry * (1 + p.StopPct))
	case models.ActionSell:
		return g.round(entry * (1 - p.TargetPct)), g.round(entry * (1 + p.StopPct))
	default:
		return g.round(entry), g.round(entry)
	}
}

func (g *Generator) round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(g.policy.PriceDecimals).InexactFloat64()
}

// risk buckets the standard deviation of simple returns; vol is annualized realized volatility.
func (g *Generator) risk(bars []models.PriceBar) (models.RiskRating, float64) {
	rets := features.ComputeReturns(bars)
	logRets := features.ComputeLogReturns(bars)
	vol := features.RealizedVolatility(logRets, len(logRets))
	if len(rets) < 2 {
		return models.RiskHigh, vol
	}
	sd := features.StdDev(rets)
	switch {
	case sd < g.policy.RiskLowMax:
		return models.RiskLow, vol
	case sd < g.policy.RiskModerateMax:
		return models.RiskModerate, vol
	default:
		return models.RiskHigh, vol
	}
}

func sentimentReason(s *models.SentimentResult) string {
	return fmt.Sprintf("sentiment %s (score %.2f, confidence %.2f, %d articles)", s.Label, s.Score, s.Confidence, s.ArticleCount)
}

func rsiReason(rsi float64, p Policy) string {
	band := "neutral"
	switch {
	case rsi > p.ExtremeOverbought:
		band = "extremely overbought"
	case rsi >= p.Overbought:
		band = "overbought"
	case rsi < p.ExtremeOversold:
		band = "extremely oversold"
	case rsi <= p.Oversold:
		band = "oversold"
	}
	return fmt.Sprintf("RSI %.1f %s", rsi, band)
}

func macdReason(hist float64, cross models.MACDCross) string {
	dir := "flat"
	switch {
	case hist > 0:
		dir = "positive"
	case hist < 0:
		dir = "negative"
	}
	if cross != models.CrossNone && cross != "" {
		return fmt.Sprintf("MACD histogram %s (%.3f), %s cross", dir, hist, cross)
	}
	return fmt.Sprintf("MACD histogram %s (%.3f)", dir, hist)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
