package indicators

import (
	"math"

	"FinSignal/internal/domain/models"
)

// SMA calculates the simple moving average for the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average series seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD computes line, signal and histogram for the last bar, and whether the histogram
// changed sign on that bar.
func MACD(closes []float64, fast, slow, signal int) models.MACD {
	if len(closes) == 0 {
		return models.MACD{Cross: models.CrossNone}
	}
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)

	last := len(closes) - 1
	hist := line[last] - sig[last]
	out := models.MACD{
		Line:      line[last],
		Signal:    sig[last],
		Histogram: hist,
		Cross:     models.CrossNone,
	}
	if last > 0 {
		prev := line[last-1] - sig[last-1]
		switch {
		case prev <= 0 && hist > 0:
			out.Cross = models.CrossBullish
		case prev >= 0 && hist < 0:
			out.Cross = models.CrossBearish
		}
	}
	return out
}

// Bollinger computes SMA ± k·σ over the trailing window and classifies the last close by
// its %B: at or above upperZone is upper, at or below lowerZone is lower.
// A zero-variance window is always middle.
func Bollinger(closes []float64, period int, k, upperZone, lowerZone float64) models.Bollinger {
	if len(closes) == 0 {
		return models.Bollinger{Position: models.BandMiddle}
	}
	if period > len(closes) || period <= 0 {
		period = len(closes)
	}
	window := closes[len(closes)-period:]
	mean := SMA(window, period)
	ss := 0.0
	for _, c := range window {
		d := c - mean
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(period))

	out := models.Bollinger{
		Upper:    mean + k*sigma,
		Middle:   mean,
		Lower:    mean - k*sigma,
		Position: models.BandMiddle,
	}
	if sigma < 1e-12 {
		return out
	}
	last := closes[len(closes)-1]
	pctB := (last - out.Lower) / (out.Upper - out.Lower)
	switch {
	case pctB >= upperZone:
		out.Position = models.BandUpper
	case pctB <= lowerZone:
		out.Position = models.BandLower
	}
	return out
}
