package indicators

// RSI computes the Relative Strength Index with Wilder smoothing. The averages are seeded
// with the simple mean of the first min(period, n-1) changes. A flat series returns 50.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < 2 {
		return 50
	}
	seed := period
	if n := len(closes) - 1; n < seed {
		seed = n
	}

	gain, loss := 0.0, 0.0
	for i := 1; i <= seed; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(seed)
	avgLoss := loss / float64(seed)

	p := float64(period)
	for i := seed + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
	}
	return rsiFromAverages(avgGain, avgLoss)
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
