// Package indicators computes technical indicators from a price-bar series.
// Everything here is pure; the engine holds only its configuration.
package indicators

import (
	"fmt"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/services/features"
)

// Config holds indicator periods and band zones.
type Config struct {
	RSIPeriod       int     `yaml:"rsi_period" default:"14"`
	MACDFast        int     `yaml:"macd_fast" default:"12"`
	MACDSlow        int     `yaml:"macd_slow" default:"26"`
	MACDSignal      int     `yaml:"macd_signal" default:"9"`
	BollingerPeriod int     `yaml:"bollinger_period" default:"20"`
	BollingerK      float64 `yaml:"bollinger_k" default:"2"`
	UpperZone       float64 `yaml:"upper_zone" default:"0.8"`
	LowerZone       float64 `yaml:"lower_zone" default:"0.2"`
}

// DefaultConfig returns the conventional 14 / 12-26-9 / 20±2σ setup.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerK:      2,
		UpperZone:       0.8,
		LowerZone:       0.2,
	}
}

// Engine computes an IndicatorSet from bars.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine; zero fields fall back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.MACDFast <= 0 {
		cfg.MACDFast = def.MACDFast
	}
	if cfg.MACDSlow <= 0 {
		cfg.MACDSlow = def.MACDSlow
	}
	if cfg.MACDSignal <= 0 {
		cfg.MACDSignal = def.MACDSignal
	}
	if cfg.BollingerPeriod <= 0 {
		cfg.BollingerPeriod = def.BollingerPeriod
	}
	if cfg.BollingerK <= 0 {
		cfg.BollingerK = def.BollingerK
	}
	if cfg.UpperZone <= 0 || cfg.UpperZone > 1 {
		cfg.UpperZone = def.UpperZone
	}
	if cfg.LowerZone <= 0 || cfg.LowerZone >= cfg.UpperZone {
		cfg.LowerZone = def.LowerZone
	}
	return &Engine{cfg: cfg}
}

// MinBars is the shortest series Compute accepts.
func (e *Engine) MinBars() int { return e.cfg.RSIPeriod }

// Compute returns RSI, MACD and Bollinger position for the last bar.
func (e *Engine) Compute(bars []models.PriceBar) (models.IndicatorSet, error) {
	if len(bars) < e.MinBars() {
		return models.IndicatorSet{}, fmt.Errorf("%w: have %d bars, need %d", errs.ErrInsufficientHistory, len(bars), e.MinBars())
	}
	closes := features.Closes(bars)
	return models.IndicatorSet{
		RSI:       RSI(closes, e.cfg.RSIPeriod),
		MACD:      MACD(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal),
		Bollinger: Bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerK, e.cfg.UpperZone, e.cfg.LowerZone),
		LastClose: closes[len(closes)-1],
		Bars:      len(closes),
	}, nil
}

var _ domsvc.IndicatorEngine = (*Engine)(nil)
