package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
)

const (
	negationScalar = -0.74
	boostScalar    = 1.3
	dampenScalar   = 0.7
	normalizeAlpha = 15.0
	negationWindow = 3
	lexiconNeutral = 0.05
	lexiconName    = "lexicon"
)

var financeLexicon = map[string]float64{
	"beat": 2.0, "beats": 2.0, "surge": 2.5, "surges": 2.5, "soar": 2.6, "soars": 2.6,
	"rally": 2.2, "rallies": 2.2, "gain": 1.5, "gains": 1.5, "growth": 1.6, "profit": 1.7,
	"profits": 1.7, "record": 1.4, "upgrade": 2.1, "upgraded": 2.1, "outperform": 2.0,
	"bullish": 2.5, "strong": 1.5, "jump": 1.8, "jumps": 1.8, "rise": 1.3, "rises": 1.3,
	"exceed": 1.8, "exceeds": 1.8, "expansion": 1.2, "buyback": 1.4, "dividend": 1.0,
	"optimistic": 1.8, "robust": 1.6, "breakthrough": 2.0, "approval": 1.5,

	"miss": -2.0, "misses": -2.0, "plunge": -2.7, "plunges": -2.7, "crash": -3.0,
	"slump": -2.3, "fall": -1.4, "falls": -1.4, "drop": -1.6, "drops": -1.6, "loss": -1.8,
	"losses": -1.8, "downgrade": -2.2, "downgraded": -2.2, "underperform": -2.0,
	"bearish": -2.5, "weak": -1.6, "lawsuit": -1.9, "fraud": -3.0, "recall": -1.7,
	"layoffs": -1.8, "bankruptcy": -3.2, "decline": -1.5, "declines": -1.5, "warning": -1.6,
	"investigation": -1.7, "default": -2.4, "volatile": -0.8, "pessimistic": -1.8,
}

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "neither": {}, "nor": {}, "hardly": {},
}

var boosters = map[string]float64{
	"very": boostScalar, "highly": boostScalar, "sharply": boostScalar, "significantly": boostScalar,
	"strongly": boostScalar, "extremely": boostScalar, "massive": boostScalar,
	"slightly": dampenScalar, "somewhat": dampenScalar, "marginally": dampenScalar, "modestly": dampenScalar,
}

// LexiconScorer scores text against a finance word list with negation and intensifier handling.
type LexiconScorer struct {
	lexicon map[string]float64
}

// NewLexiconScorer builds a scorer over the built-in finance lexicon.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{lexicon: financeLexicon}
}

func (s *LexiconScorer) Name() string { return lexiconName }

// Score returns the normalized compound valence of text.
func (s *LexiconScorer) Score(ctx context.Context, text string) (domsvc.SentimentScore, error) {
	if err := ctx.Err(); err != nil {
		return domsvc.SentimentScore{}, err
	}
	tokens := tokenize(text)
	raw := 0.0
	for i, tok := range tokens {
		v, ok := s.lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if b, ok := boosters[tokens[i-1]]; ok {
				v *= b
			}
		}
		for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
			if isNegation(tokens[j]) {
				v *= negationScalar
				break
			}
		}
		raw += v
	}
	compound := raw / math.Sqrt(raw*raw+normalizeAlpha)
	return toScore(compound, lexiconNeutral), nil
}

func isNegation(tok string) bool {
	if _, ok := negations[tok]; ok {
		return true
	}
	return strings.HasSuffix(tok, "n't")
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// toScore turns a signed value in [-1,1] into a label and magnitude.
func toScore(signed, neutralBand float64) domsvc.SentimentScore {
	signed = clamp(signed, -1, 1)
	switch {
	case signed > neutralBand:
		return domsvc.SentimentScore{Label: models.Bullish, Magnitude: signed}
	case signed < -neutralBand:
		return domsvc.SentimentScore{Label: models.Bearish, Magnitude: -signed}
	default:
		return domsvc.SentimentScore{Label: models.Neutral, Magnitude: math.Abs(signed)}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var _ domsvc.SentimentModel = (*LexiconScorer)(nil)
