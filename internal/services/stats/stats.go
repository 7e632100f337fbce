package stats

import (
	"math"

	"AlphaFuse/internal/domain/models"
)

// WinRate returns the fraction of trades with positive PnL, or 0 for an
// empty set.
func WinRate(trades []models.ClosedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// TotalPnL sums realized PnL across trades.
func TotalPnL(trades []models.ClosedTrade) float64 {
	sum := 0.0
	for _, t := range trades {
		sum += t.PnL
	}
	return sum
}

// AvgPnL returns mean realized PnL, or 0 for an empty set.
func AvgPnL(trades []models.ClosedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	return TotalPnL(trades) / float64(len(trades))
}

// ConsecutiveLosses counts the losing streak at the tail of a
// chronologically ascending trade series.
func ConsecutiveLosses(trades []models.ClosedTrade) int {
	n := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Win() {
			break
		}
		n++
	}
	return n
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance, or 0 for fewer than two values.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return sum / float64(len(xs))
}

// ComputeLogReturns computes r_t = ln(P_t / P_{t-1}) over a price series.
// It returns a slice of length len(prices)-1, or nil if insufficient data.
func ComputeLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the standard deviation of log returns over the most
// recent window observations. Returns 0 when the series is shorter than the
// window or the window is degenerate.
func RealizedVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	tail := logReturns[len(logReturns)-window:]
	return math.Sqrt(Variance(tail))
}
