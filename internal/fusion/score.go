package fusion

import (
	"AlphaFuse/internal/domain/models"
)

// ExitScore measures how strongly the current signal set argues against an
// open position, in [0, 1]. Opposing signals contribute their full weighted
// confidence, flat signals half, aligned signals nothing.
func ExitScore(reg *Registry, signals []models.Signal, side models.Side) float64 {
	valid := make([]models.Signal, 0, len(signals))
	for _, s := range signals {
		if validateSignal(s) == nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return 0
	}

	ids := make([]string, len(valid))
	for i, s := range valid {
		ids[i] = s.SystemID
	}
	weights := reg.normalizedWeights(ids)

	held := models.DirectionLong
	if side == models.SideShort {
		held = models.DirectionShort
	}

	score := 0.0
	for i, s := range valid {
		switch {
		case s.Direction == models.DirectionFlat:
			score += weights[i] * s.Confidence * 0.5
		case s.Direction != held:
			score += weights[i] * s.Confidence
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
