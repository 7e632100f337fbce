package performance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	"AlphaFuse/internal/domain/repository"
	"AlphaFuse/internal/services/stats"
	"AlphaFuse/pkg/cache"
	applogger "AlphaFuse/pkg/logger"
)

// Config controls history depth, caching, and the conviction gate.
type Config struct {
	HistoryLimit int
	CacheTTL     time.Duration
	MinTrades    int // below this the symbol is treated as cold start
	WeightFloor  float64
	StiffBar     float64 // conviction needed to trade a floored symbol at all
}

// DefaultConfig returns production weighting parameters.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 200,
		CacheTTL:     5 * time.Minute,
		MinTrades:    5,
		WeightFloor:  0.3,
		StiffBar:     0.85,
	}
}

// Weighter scores each symbol's realized performance and converts it into a
// multiplier applied to fused conviction. Metrics are cached; call Invalidate
// when a fill lands so the next read recomputes.
type Weighter struct {
	history repository.TradeHistory
	cache   cache.Service
	cfg     Config
	l       *applogger.Logger
}

func NewWeighter(history repository.TradeHistory, c cache.Service, cfg Config, l *applogger.Logger) *Weighter {
	return &Weighter{history: history, cache: c, cfg: cfg, l: l}
}

func perfKey(symbol string) string { return "perf:" + symbol }

// Metrics returns the current performance snapshot for a symbol. A history
// backend failure degrades to the neutral cold-start snapshot so the decision
// cycle keeps running.
func (w *Weighter) Metrics(ctx context.Context, symbol string) (models.SymbolPerformanceMetrics, error) {
	if w.cache != nil {
		var raw string
		if err := w.cache.Get(ctx, perfKey(symbol), &raw); err == nil && raw != "" {
			var cached models.SymbolPerformanceMetrics
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Symbol == symbol {
				return cached, nil
			}
		}
	}

	trades, err := w.history.ClosedTrades(ctx, symbol, w.cfg.HistoryLimit)
	if err != nil {
		if w.l != nil {
			w.l.Warn("trade history unavailable, using neutral weighting",
				applogger.String("symbol", symbol), applogger.Error(err))
		}
		return NeutralMetrics(symbol), nil
	}

	m := w.compute(symbol, trades)
	if w.cache != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := w.cache.Set(ctx, perfKey(symbol), string(raw), w.cfg.CacheTTL); err != nil && w.l != nil {
				w.l.Warn("performance cache write failed",
					applogger.String("symbol", symbol), applogger.Error(err))
			}
		}
	}
	return m, nil
}

// Invalidate drops the cached snapshot for a symbol.
func (w *Weighter) Invalidate(ctx context.Context, symbol string) error {
	if w.cache == nil {
		return nil
	}
	if err := w.cache.Delete(ctx, perfKey(symbol)); err != nil {
		return fmt.Errorf("invalidate %s: %w", symbol, err)
	}
	return nil
}

// NeutralMetrics is the cold-start snapshot: no penalty, no boost.
func NeutralMetrics(symbol string) models.SymbolPerformanceMetrics {
	return models.SymbolPerformanceMetrics{
		Symbol:            symbol,
		RiskScore:         0.5,
		PerformanceWeight: 1.0,
		Category:          models.CategoryNeutral,
		LastUpdated:       time.Now(),
	}
}

func (w *Weighter) compute(symbol string, trades []models.ClosedTrade) models.SymbolPerformanceMetrics {
	if len(trades) < w.cfg.MinTrades {
		m := NeutralMetrics(symbol)
		m.TotalTrades = len(trades)
		m.WinRate = stats.WinRate(trades)
		m.TotalPnL = stats.TotalPnL(trades)
		m.AvgPnL = stats.AvgPnL(trades)
		return m
	}

	winRate := stats.WinRate(trades)
	totalPnL := stats.TotalPnL(trades)
	risk := riskScore(winRate, totalPnL)
	weight, category := weightFor(risk)

	return models.SymbolPerformanceMetrics{
		Symbol:            symbol,
		TotalTrades:       len(trades),
		WinRate:           winRate,
		AvgPnL:            stats.AvgPnL(trades),
		TotalPnL:          totalPnL,
		RiskScore:         risk,
		PerformanceWeight: weight,
		Category:          category,
		LastUpdated:       time.Now(),
	}
}

// riskScore maps win rate into a danger bucket and nudges it by realized
// P&L sign, clamped to [0, 1]. Lower is safer.
func riskScore(winRate, totalPnL float64) float64 {
	var risk float64
	switch {
	case winRate < 0.40:
		risk = 0.9
	case winRate < 0.60:
		risk = 0.7
	case winRate < 0.75:
		risk = 0.5
	case winRate < 0.90:
		risk = 0.3
	default:
		risk = 0.15
	}
	if totalPnL < 0 {
		risk += 0.1
	} else if totalPnL > 0 {
		risk -= 0.1
	}
	if risk < 0 {
		risk = 0
	}
	if risk > 1 {
		risk = 1
	}
	return risk
}

func weightFor(risk float64) (float64, models.Category) {
	switch {
	case risk >= 0.9:
		return 0.05, models.CategoryHighRisk
	case risk >= 0.8:
		return 0.1, models.CategoryHighRisk
	case risk >= 0.6:
		return 0.5, models.CategoryCaution
	case risk >= 0.4:
		return 1.0, models.CategoryNeutral
	case risk >= 0.25:
		return 1.5, models.CategoryProven
	default:
		return 2.0, models.CategoryChampion
	}
}

// ApplyToConviction scales fused conviction by the symbol's performance
// weight. A floored symbol needs exceptionally strong base conviction or the
// trade is zeroed outright. The result stays in [0, 1].
func (w *Weighter) ApplyToConviction(base float64, m models.SymbolPerformanceMetrics) float64 {
	if m.PerformanceWeight < w.cfg.WeightFloor && base < w.cfg.StiffBar {
		return 0
	}
	adjusted := base * m.PerformanceWeight
	if adjusted > 1 {
		adjusted = 1
	}
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}
