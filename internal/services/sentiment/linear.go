package sentiment

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	domsvc "FinSignal/internal/domain/service"

	"gopkg.in/yaml.v3"
)

//go:embed models/default_linear.yaml
var defaultLinearModel []byte

// LinearModel is a logistic bag-of-words model: p = σ(bias + Σ w·count).
type LinearModel struct {
	Name        string             `yaml:"name"`
	Bias        float64            `yaml:"bias"`
	NeutralBand float64            `yaml:"neutral_band"`
	Weights     map[string]float64 `yaml:"weights"`
}

// LoadLinearModel reads a model file. An empty path loads the embedded default model.
func LoadLinearModel(path string) (*LinearModel, error) {
	data := defaultLinearModel
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read linear model %s: %w", path, err)
		}
		data = b
	}
	return ParseLinearModel(data)
}

// ParseLinearModel decodes and checks a YAML model.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode linear model: %w", err)
	}
	if m.Name == "" {
		m.Name = "linear"
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("linear model %q has no weights", m.Name)
	}
	if m.NeutralBand < 0 || m.NeutralBand >= 1 {
		return nil, fmt.Errorf("linear model %q: neutral_band %v out of [0,1)", m.Name, m.NeutralBand)
	}
	weights := make(map[string]float64, len(m.Weights))
	for k, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("linear model %q: weight for %q is not finite", m.Name, k)
		}
		weights[strings.ToLower(strings.TrimSpace(k))] = w
	}
	m.Weights = weights
	return &m, nil
}

// LinearScorer applies a LinearModel to text.
type LinearScorer struct {
	model *LinearModel
}

// NewLinearScorer wraps a loaded model.
func NewLinearScorer(m *LinearModel) *LinearScorer {
	return &LinearScorer{model: m}
}

func (s *LinearScorer) Name() string { return s.model.Name }

// Score maps the model probability p onto [-1,1] as 2p-1.
func (s *LinearScorer) Score(ctx context.Context, text string) (domsvc.SentimentScore, error) {
	if err := ctx.Err(); err != nil {
		return domsvc.SentimentScore{}, err
	}
	tokens := tokenize(text)
	z := s.model.Bias
	for i, tok := range tokens {
		z += s.model.Weights[tok]
		if i > 0 {
			z += s.model.Weights[tokens[i-1]+" "+tok]
		}
	}
	p := 1 / (1 + math.Exp(-z))
	return toScore(2*p-1, s.model.NeutralBand), nil
}

var _ domsvc.SentimentModel = (*LinearScorer)(nil)
