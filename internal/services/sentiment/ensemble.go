// Package sentiment holds the sentiment model adapters and the weighted ensemble over them.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	applogger "FinSignal/pkg/logger"
)

const weightTolerance = 1e-6

var (
	ErrEmptyEnsemble   = errors.New("ensemble has no members")
	ErrDuplicateMember = errors.New("duplicate ensemble member")
	ErrBadWeight       = errors.New("ensemble weight must be positive")
	ErrWeightSum       = errors.New("ensemble weights must sum to 1")
)

// Member is one model and its static weight.
type Member struct {
	Model  domsvc.SentimentModel
	Weight float64
}

// EnsembleConfig tunes label thresholds and confidence penalties.
type EnsembleConfig struct {
	AdapterTimeout      time.Duration `yaml:"adapter_timeout" default:"2s"`
	BullishThreshold    float64       `yaml:"bullish_threshold" default:"0.15"`
	BearishThreshold    float64       `yaml:"bearish_threshold" default:"-0.15"`
	FailurePenalty      float64       `yaml:"failure_penalty" default:"0.5"`
	DisagreementPenalty float64       `yaml:"disagreement_penalty" default:"0.5"`
}

// DefaultEnsembleConfig returns the production defaults.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		AdapterTimeout:      2 * time.Second,
		BullishThreshold:    0.15,
		BearishThreshold:    -0.15,
		FailurePenalty:      0.5,
		DisagreementPenalty: 0.5,
	}
}

// Option configures an Ensemble.
type Option func(*Ensemble)

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(e *Ensemble) { e.log = l }
}

// WithMetrics sets the metrics sink for per-adapter observations.
func WithMetrics(m domrepo.Metrics) Option {
	return func(e *Ensemble) { e.metrics = m }
}

// WithClock overrides the clock used for computed_at.
func WithClock(now func() time.Time) Option {
	return func(e *Ensemble) { e.now = now }
}

// Ensemble combines independent models into one SentimentResult. The member set is fixed
// at construction and safe for concurrent use.
type Ensemble struct {
	members []Member
	cfg     EnsembleConfig
	log     *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

// NewEnsemble validates members: non-empty, unique names, positive weights summing to 1.
func NewEnsemble(members []Member, cfg EnsembleConfig, opts ...Option) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, ErrEmptyEnsemble
	}
	seen := make(map[string]struct{}, len(members))
	sum := 0.0
	for _, m := range members {
		if m.Model == nil {
			return nil, fmt.Errorf("%w: nil model", ErrEmptyEnsemble)
		}
		name := m.Model.Name()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
		seen[name] = struct{}{}
		if !(m.Weight > 0) || math.IsInf(m.Weight, 0) {
			return nil, fmt.Errorf("%w: %s has %v", ErrBadWeight, name, m.Weight)
		}
		sum += m.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("%w: got %v", ErrWeightSum, sum)
	}

	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultEnsembleConfig().AdapterTimeout
	}
	if cfg.BullishThreshold <= cfg.BearishThreshold {
		return nil, fmt.Errorf("bullish threshold %v must exceed bearish threshold %v", cfg.BullishThreshold, cfg.BearishThreshold)
	}

	e := &Ensemble{
		members: append([]Member(nil), members...),
		cfg:     cfg,
		log:     applogger.NewNop(),
		metrics: domrepo.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Names returns member names in registration order.
func (e *Ensemble) Names() []string {
	out := make([]string, len(e.members))
	for i, m := range e.members {
		out[i] = m.Model.Name()
	}
	return out
}

type memberResult struct {
	idx   int
	score float64
	err   error
}

// Score runs every member concurrently over the articles and combines the survivors.
// A member that errors or exceeds the adapter timeout is left out of this call only.
func (e *Ensemble) Score(ctx context.Context, symbol string, articles []models.NewsArticle) (*models.SentimentResult, error) {
	if len(articles) == 0 {
		return nil, fmt.Errorf("%s: no articles: %w", symbol, errs.ErrNoSentimentAvailable)
	}
	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Text()
	}

	ch := make(chan memberResult, len(e.members))
	var wg sync.WaitGroup
	for i, m := range e.members {
		wg.Add(1)
		go func(i int, m Member) {
			defer wg.Done()
			start := time.Now()
			s, err := e.runMember(ctx, m.Model, texts)
			e.metrics.ObserveCall("sentiment."+m.Model.Name(), time.Since(start), err)
			ch <- memberResult{idx: i, score: s, err: err}
		}(i, m)
	}
	go func() { wg.Wait(); close(ch) }()

	results := make([]*memberResult, len(e.members))
	for r := range ch {
		results[r.idx] = &r
	}

	var (
		failed     []string
		survivors  []int
		weightSum  float64
		weightedSc float64
	)
	for i, r := range results {
		name := e.members[i].Model.Name()
		if r.err != nil {
			failed = append(failed, name)
			e.log.Warn("sentiment model excluded",
				applogger.String("model", name),
				applogger.String("symbol", symbol),
				applogger.Error(r.err),
			)
			continue
		}
		survivors = append(survivors, i)
		weightSum += e.members[i].Weight
		weightedSc += e.members[i].Weight * r.score
	}
	if len(survivors) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: all %d models failed: %w", symbol, len(e.members), errs.ErrNoSentimentAvailable)
	}

	mean := weightedSc / weightSum
	variance := 0.0
	breakdown := make(map[string]models.ModelScore, len(survivors))
	for _, i := range survivors {
		w := e.members[i].Weight / weightSum
		s := results[i].score
		variance += w * (s - mean) * (s - mean)
		breakdown[e.members[i].Model.Name()] = models.ModelScore{
			Label:  e.label(s),
			Score:  s,
			Weight: w,
		}
	}
	failedFraction := float64(len(failed)) / float64(len(e.members))
	confidence := 1 - e.cfg.FailurePenalty*failedFraction - e.cfg.DisagreementPenalty*math.Min(1, math.Sqrt(variance))
	sort.Strings(failed)

	return &models.SentimentResult{
		Symbol:         symbol,
		Label:          e.label(mean),
		Score:          clamp(mean, -1, 1),
		Confidence:     clamp(confidence, 0, 1),
		ModelBreakdown: breakdown,
		FailedModels:   failed,
		ArticleCount:   len(articles),
		ComputedAt:     e.now().UTC(),
	}, nil
}

func (e *Ensemble) label(score float64) models.SentimentLabel {
	switch {
	case score > e.cfg.BullishThreshold:
		return models.Bullish
	case score < e.cfg.BearishThreshold:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// runMember bounds one model by the adapter timeout, even if the model ignores its context.
func (e *Ensemble) runMember(ctx context.Context, m domsvc.SentimentModel, texts []string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	type out struct {
		score float64
		err   error
	}
	done := make(chan out, 1)
	go func() {
		s, err := averageScore(ctx, m, texts)
		done <- out{s, err}
	}()
	select {
	case o := <-done:
		return o.score, o.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", m.Name(), ctx.Err())
	}
}

// averageScore returns the mean signed score of texts for one model.
func averageScore(ctx context.Context, m domsvc.SentimentModel, texts []string) (float64, error) {
	var scores []domsvc.SentimentScore
	if bm, ok := m.(domsvc.BatchSentimentModel); ok {
		out, err := bm.ScoreBatch(ctx, texts)
		if err != nil {
			return 0, err
		}
		scores = out
	} else {
		scores = make([]domsvc.SentimentScore, 0, len(texts))
		for _, t := range texts {
			s, err := m.Score(ctx, t)
			if err != nil {
				return 0, err
			}
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("%s: no scores", m.Name())
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.Signed()
	}
	return sum / float64(len(scores)), nil
}
