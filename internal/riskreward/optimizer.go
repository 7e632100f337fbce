package riskreward

import (
	"fmt"

	"AlphaFuse/internal/domain/models"
	applogger "AlphaFuse/pkg/logger"
)

// Config holds the stop/target baselines. Fractions are of entry price.
type Config struct {
	BaseStopFraction   float64
	TargetRatio        float64 // minimum take-profit distance per unit of stop distance
	MaxStopFraction    float64
	VolatilityStopGain float64 // extra stop width per unit of realized volatility
}

func DefaultConfig() Config {
	return Config{
		BaseStopFraction:   0.015,
		TargetRatio:        2.5,
		MaxStopFraction:    0.05,
		VolatilityStopGain: 0.5,
	}
}

// Optimizer sizes stop-loss and take-profit around an entry price, adapting
// to the symbol's track record, the fused confidence, and realized
// volatility. The take-profit is never allowed closer than TargetRatio times
// the stop distance.
type Optimizer struct {
	cfg Config
	l   *applogger.Logger
}

func NewOptimizer(cfg Config, l *applogger.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, l: l}
}

// Plan computes the risk plan for one prospective trade.
func (o *Optimizer) Plan(symbol string, side models.Side, entry, confidence, volatility float64, perf models.SymbolPerformanceMetrics) (models.RiskPlan, error) {
	if entry <= 0 {
		return models.RiskPlan{}, fmt.Errorf("risk plan %s: entry price %v", symbol, entry)
	}
	if side != models.SideLong && side != models.SideShort {
		return models.RiskPlan{}, fmt.Errorf("risk plan %s: side %q", symbol, side)
	}

	stopFrac := o.cfg.BaseStopFraction * (1 + o.cfg.VolatilityStopGain*volatility)
	targetFrac := stopFrac * o.cfg.TargetRatio

	// Proven symbols run tighter stops and stretch the target; weak ones get
	// wider stops and a humbler target before the ratio floor re-widens it.
	switch {
	case perf.TotalTrades > 0 && perf.WinRate >= 0.75:
		stopFrac *= 0.8
		targetFrac *= 1.2
	case perf.TotalTrades > 0 && perf.WinRate < 0.45:
		stopFrac *= 1.25
		targetFrac *= 0.9
	}

	targetFrac *= 1 + 0.5*(confidence-0.5)

	if stopFrac > o.cfg.MaxStopFraction {
		stopFrac = o.cfg.MaxStopFraction
	}
	if targetFrac < stopFrac*o.cfg.TargetRatio {
		targetFrac = stopFrac * o.cfg.TargetRatio
	}

	var stop, take float64
	if side == models.SideLong {
		stop = entry * (1 - stopFrac)
		take = entry * (1 + targetFrac)
	} else {
		stop = entry * (1 + stopFrac)
		take = entry * (1 - targetFrac)
	}

	plan := models.RiskPlan{
		Symbol:       symbol,
		Side:         side,
		EntryPrice:   entry,
		StopLoss:     stop,
		TakeProfit:   take,
		ExpectedWin:  entry * targetFrac,
		ExpectedLoss: entry * stopFrac,
		WinLossRatio: targetFrac / stopFrac,
		RiskLevel:    riskLevel(confidence, perf),
	}

	if o.l != nil {
		o.l.Debug("risk plan",
			applogger.String("symbol", symbol),
			applogger.String("side", string(side)),
			applogger.Any("stop", stop),
			applogger.Any("take_profit", take),
			applogger.Any("ratio", plan.WinLossRatio),
		)
	}
	return plan, nil
}

func riskLevel(confidence float64, perf models.SymbolPerformanceMetrics) models.RiskLevel {
	switch {
	case confidence >= 0.85 && perf.WinRate >= 0.70 && perf.TotalTrades > 0:
		return models.RiskAggressive
	case confidence < 0.60 || (perf.TotalTrades > 0 && perf.WinRate < 0.45):
		return models.RiskConservative
	default:
		return models.RiskModerate
	}
}
