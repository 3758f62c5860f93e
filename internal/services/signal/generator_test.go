package signal

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newGen(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultPolicy(), func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func calmBars(n int, last float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := last * (1 + 0.001*float64(i%2))
		bars[i] = models.PriceBar{Timestamp: testNow.AddDate(0, 0, i-n), Close: c}
	}
	bars[n-1].Close = last
	return bars
}

func sentiment(label models.SentimentLabel, score, conf float64) *models.SentimentResult {
	return &models.SentimentResult{Symbol: "ACME", Label: label, Score: score, Confidence: conf, ArticleCount: 3}
}

func indicators(rsi, hist float64, cross models.MACDCross, last float64) *models.IndicatorSet {
	return &models.IndicatorSet{
		RSI:       rsi,
		MACD:      models.MACD{Histogram: hist, Cross: cross},
		Bollinger: models.Bollinger{Position: models.BandMiddle},
		LastClose: last,
		Bars:      20,
	}
}

func TestBullishBuyScenario(t *testing.T) {
	g := newGen(t)
	sig, err := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bullish, 0.42, 0.80),
		Indicators: indicators(62, 0.3, models.CrossNone, 100),
		Bars:       calmBars(20, 100),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Action != models.ActionBuy {
		t.Fatalf("expected buy, got %s (%s)", sig.Action, sig.Rationale)
	}
	if sig.TargetPrice != 105 || sig.StopPrice != 98 || sig.EntryPrice != 100 {
		t.Fatalf("unexpected prices entry=%v target=%v stop=%v", sig.EntryPrice, sig.TargetPrice, sig.StopPrice)
	}
	if !strings.Contains(sig.Rationale, "RSI 62.0") || !strings.Contains(sig.Rationale, "sentiment bullish") {
		t.Fatalf("rationale must mention RSI and sentiment: %q", sig.Rationale)
	}
	if math.Abs(sig.Confidence-0.8) > 1e-9 {
		t.Fatalf("expected confidence 0.8 with full support, got %v", sig.Confidence)
	}
	if sig.RiskRating != models.RiskLow {
		t.Fatalf("expected low risk for calm bars, got %s", sig.RiskRating)
	}
	if !sig.ComputedAt.Equal(testNow) {
		t.Fatalf("computed_at must come from the injected clock")
	}
}

func TestStrongBuy(t *testing.T) {
	g := newGen(t)
	sig, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bullish, 0.7, 0.9),
		Indicators: indicators(55, 0.5, models.CrossNone, 50),
		Bars:       calmBars(20, 50),
	})
	if sig.Action != models.ActionStrongBuy || sig.TargetPrice != 54 {
		t.Fatalf("expected strong_buy with +8%% target, got %s target=%v", sig.Action, sig.TargetPrice)
	}
}

func TestBullishOverboughtConflictHolds(t *testing.T) {
	g := newGen(t)
	sig, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bullish, 0.7, 0.9),
		Indicators: indicators(85, 0.5, models.CrossBullish, 50),
	})
	if sig.Action != models.ActionHold || sig.Rule != RuleOverboughtConflict {
		t.Fatalf("expected conflict hold, got %s/%s", sig.Action, sig.Rule)
	}
	if math.Abs(sig.Confidence-0.45) > 1e-9 {
		t.Fatalf("expected halved confidence, got %v", sig.Confidence)
	}
}

func TestStrongSellMirror(t *testing.T) {
	g := newGen(t)
	sig, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bearish, -0.7, 0.9),
		Indicators: indicators(45, -0.5, models.CrossNone, 100),
	})
	if sig.Action != models.ActionStrongSell {
		t.Fatalf("expected strong_sell, got %s", sig.Action)
	}
	if sig.TargetPrice != 92 || sig.StopPrice != 102 {
		t.Fatalf("unexpected sell prices target=%v stop=%v", sig.TargetPrice, sig.StopPrice)
	}
}

func TestBearishOversoldConflictHolds(t *testing.T) {
	g := newGen(t)
	sig, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bearish, -0.6, 0.9),
		Indicators: indicators(15, -0.5, models.CrossBearish, 100),
	})
	if sig.Action != models.ActionHold || sig.Rule != RuleOversoldConflict {
		t.Fatalf("expected oversold conflict hold, got %s/%s", sig.Action, sig.Rule)
	}
}

func TestLowConfidenceAndNeutralHold(t *testing.T) {
	g := newGen(t)
	low, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bullish, 0.6, 0.4),
		Indicators: indicators(50, 0.5, models.CrossBullish, 100),
	})
	if low.Action != models.ActionHold || low.Rule != RuleLowConfidence {
		t.Fatalf("expected low confidence hold, got %s/%s", low.Action, low.Rule)
	}
	neutral, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Neutral, 0.05, 0.9),
		Indicators: indicators(50, 0.5, models.CrossBullish, 100),
	})
	if neutral.Action != models.ActionHold || neutral.Rule != RuleNeutral {
		t.Fatalf("expected neutral hold, got %s/%s", neutral.Action, neutral.Rule)
	}
}

func TestNoSupportingIndicatorHolds(t *testing.T) {
	g := newGen(t)
	sig, _ := g.Generate(Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bullish, 0.4, 0.7),
		Indicators: indicators(75, 0.2, models.CrossNone, 100),
	})
	if sig.Action != models.ActionHold || sig.Rule != RuleNoSupport {
		t.Fatalf("expected hold without support, got %s/%s", sig.Action, sig.Rule)
	}
}

func TestSentimentOnlyCapsAtBuy(t *testing.T) {
	g := newGen(t)
	sig, err := g.Generate(Inputs{
		Symbol:    "ACME",
		Sentiment: sentiment(models.Bullish, 0.9, 0.9),
		Bars:      calmBars(5, 10),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Action != models.ActionBuy || sig.Rule != RuleSentimentOnly {
		t.Fatalf("expected capped buy, got %s/%s", sig.Action, sig.Rule)
	}
	if math.Abs(sig.Confidence-0.63) > 1e-9 {
		t.Fatalf("expected penalized confidence 0.63, got %v", sig.Confidence)
	}
	if sig.EntryPrice != 10 {
		t.Fatalf("expected entry from last bar, got %v", sig.EntryPrice)
	}
}

func TestTechnicalOnly(t *testing.T) {
	g := newGen(t)
	buy, _ := g.Generate(Inputs{Symbol: "ACME", Indicators: indicators(25, 0.1, models.CrossBullish, 10)})
	if buy.Action != models.ActionBuy || buy.Rule != RuleTechnicalOnly {
		t.Fatalf("expected technical buy, got %s/%s", buy.Action, buy.Rule)
	}
	if math.Abs(buy.Confidence-0.3) > 1e-9 {
		t.Fatalf("expected confidence 0.3, got %v", buy.Confidence)
	}
	hold, _ := g.Generate(Inputs{Symbol: "ACME", Indicators: indicators(50, 0.1, models.CrossNone, 10)})
	if hold.Action != models.ActionHold {
		t.Fatalf("expected hold, got %s", hold.Action)
	}
	if !strings.Contains(hold.Rationale, "sentiment unavailable") {
		t.Fatalf("rationale should mention missing sentiment: %q", hold.Rationale)
	}
}

func TestBothInputsMissing(t *testing.T) {
	g := newGen(t)
	_, err := g.Generate(Inputs{Symbol: "ACME"})
	if !errors.Is(err, errs.ErrNoSentimentAvailable) || !errors.Is(err, errs.ErrInsufficientHistory) {
		t.Fatalf("expected both causes, got %v", err)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := newGen(t)
	in := Inputs{
		Symbol:     "ACME",
		Sentiment:  sentiment(models.Bearish, -0.3, 0.66),
		Indicators: indicators(48, -0.2, models.CrossBearish, 73.456),
		Bars:       calmBars(30, 73.456),
	}
	a, _ := g.Generate(in)
	for i := 0; i < 10; i++ {
		b, _ := g.Generate(in)
		if a != b {
			t.Fatalf("expected identical signals, got %+v and %+v", a, b)
		}
	}
	if a.Action != models.ActionSell || a.EntryPrice != 73.46 {
		t.Fatalf("unexpected signal %+v", a)
	}
}

func TestRiskRating(t *testing.T) {
	g := newGen(t)
	wild := []models.PriceBar{{Close: 100}, {Close: 110}, {Close: 95}, {Close: 108}}
	r, vol := g.risk(wild)
	if r != models.RiskHigh || vol <= 0 {
		t.Fatalf("expected high risk and positive vol, got %s %v", r, vol)
	}
	r, _ = g.risk([]models.PriceBar{{Close: 100}, {Close: 101}})
	if r != models.RiskHigh {
		t.Fatalf("fewer than 2 returns must rate high, got %s", r)
	}
}

func TestPolicyValidate(t *testing.T) {
	p := DefaultPolicy()
	p.BuyConfidence = 0.9
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error when buy confidence exceeds strong confidence")
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy must validate: %v", err)
	}
}
