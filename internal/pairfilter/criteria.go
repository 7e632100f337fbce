package pairfilter

import (
	"math"

	"AlphaFuse/internal/domain/models"
)

// AdaptiveCriteria derives per-cycle filter thresholds from the fused
// decision confidence and the symbol's realized volatility. Confident
// decisions demand a better track record; volatile symbols get more slack on
// win rate but a tighter loss-streak leash.
func AdaptiveCriteria(confidence, volatility float64) models.FilterCriteria {
	minWinRate := 0.35 + 0.25*confidence - 0.20*volatility
	if minWinRate < 0.20 {
		minWinRate = 0.20
	}
	if minWinRate > 0.60 {
		minWinRate = 0.60
	}

	maxStreak := int(math.Round(6*(1-confidence) + 2*volatility))
	if maxStreak < 2 {
		maxStreak = 2
	}

	return models.FilterCriteria{
		MinWinRate:           minWinRate,
		MinTotalPnL:          -2.5 * (1 + volatility),
		MinTrades:            5 + int(math.Round(5*confidence)),
		MaxConsecutiveLosses: maxStreak,
	}
}
