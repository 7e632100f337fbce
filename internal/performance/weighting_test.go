package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
	"AlphaFuse/pkg/cache"
)

type fakeHistory struct {
	trades map[string][]models.ClosedTrade
	err    error
	calls  int
}

func (f *fakeHistory) ClosedTrades(_ context.Context, symbol string, limit int) ([]models.ClosedTrade, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ts := f.trades[symbol]
	if limit > 0 && len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	return ts, nil
}

func (f *fakeHistory) RecordClosedTrade(_ context.Context, t models.ClosedTrade) error {
	f.trades[t.Symbol] = append(f.trades[t.Symbol], t)
	return nil
}

func (f *fakeHistory) Health(context.Context) error { return nil }
func (f *fakeHistory) Close() error                 { return nil }

func tradeSeries(symbol string, pnls ...float64) []models.ClosedTrade {
	base := time.Now().Add(-time.Duration(len(pnls)) * time.Hour)
	out := make([]models.ClosedTrade, len(pnls))
	for i, p := range pnls {
		out[i] = models.ClosedTrade{Symbol: symbol, PnL: p, Timestamp: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func newTestWeighter(h *fakeHistory) *Weighter {
	return NewWeighter(h, cache.NewMemoryCache(), DefaultConfig(), nil)
}

func TestMetricsColdStartIsNeutral(t *testing.T) {
	h := &fakeHistory{trades: map[string][]models.ClosedTrade{
		"NEWUSDT": tradeSeries("NEWUSDT", 1.0, -0.5),
	}}
	w := newTestWeighter(h)

	m, err := w.Metrics(context.Background(), "NEWUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Category != models.CategoryNeutral || m.PerformanceWeight != 1.0 {
		t.Fatalf("cold start got category=%s weight=%v, want NEUTRAL 1.0", m.Category, m.PerformanceWeight)
	}
	if m.TotalTrades != 2 {
		t.Fatalf("TotalTrades = %d, want 2", m.TotalTrades)
	}
}

func TestMetricsChampionSymbol(t *testing.T) {
	h := &fakeHistory{trades: map[string][]models.ClosedTrade{
		"BTCUSDT": tradeSeries("BTCUSDT", 2, 1.5, 3, 0.5, 2, 1, 4, 2, 1.5, -0.5),
	}}
	w := newTestWeighter(h)

	m, err := w.Metrics(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Category != models.CategoryChampion {
		t.Fatalf("category = %s, want CHAMPION (winRate=%v risk=%v)", m.Category, m.WinRate, m.RiskScore)
	}
	if m.PerformanceWeight != 2.0 {
		t.Fatalf("weight = %v, want 2.0", m.PerformanceWeight)
	}
}

func TestMetricsLosingSymbolFloored(t *testing.T) {
	h := &fakeHistory{trades: map[string][]models.ClosedTrade{
		"DOGEUSDT": tradeSeries("DOGEUSDT", -1, -2, -0.5, -1.5, -3),
	}}
	w := newTestWeighter(h)

	m, err := w.Metrics(context.Background(), "DOGEUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Category != models.CategoryHighRisk {
		t.Fatalf("category = %s, want HIGH_RISK", m.Category)
	}
	if got := w.ApplyToConviction(0.70, m); got != 0 {
		t.Fatalf("ApplyToConviction(0.70) = %v, want 0 for floored symbol", got)
	}
	if got := w.ApplyToConviction(0.90, m); got <= 0 {
		t.Fatalf("ApplyToConviction(0.90) = %v, want > 0 above the stiff bar", got)
	}
}

func TestApplyToConvictionClamped(t *testing.T) {
	h := &fakeHistory{trades: map[string][]models.ClosedTrade{}}
	w := newTestWeighter(h)
	m := models.SymbolPerformanceMetrics{Symbol: "X", PerformanceWeight: 2.0, Category: models.CategoryChampion}
	if got := w.ApplyToConviction(0.9, m); got != 1.0 {
		t.Fatalf("ApplyToConviction(0.9, weight 2.0) = %v, want clamp to 1.0", got)
	}
}

// A better win rate can never produce a smaller performance weight.
func TestWeightMonotoneInWinRate(t *testing.T) {
	rates := []float64{0.0, 0.2, 0.35, 0.45, 0.55, 0.65, 0.7, 0.8, 0.85, 0.92, 1.0}
	prev := -1.0
	for _, r := range rates {
		risk := riskScore(r, 10.0)
		weight, _ := weightFor(risk)
		if weight < prev {
			t.Fatalf("weight dropped from %v to %v at winRate %v", prev, weight, r)
		}
		prev = weight
	}
}

func TestRiskScoreBounds(t *testing.T) {
	for _, r := range []float64{0, 0.3, 0.5, 0.7, 0.95, 1.0} {
		for _, pnl := range []float64{-50, 0, 50} {
			s := riskScore(r, pnl)
			if s < 0 || s > 1 {
				t.Fatalf("riskScore(%v, %v) = %v out of [0,1]", r, pnl, s)
			}
		}
	}
}

func TestMetricsCachedUntilInvalidated(t *testing.T) {
	h := &fakeHistory{trades: map[string][]models.ClosedTrade{
		"BTCUSDT": tradeSeries("BTCUSDT", 1, 2, 3, -1, 2, 1),
	}}
	w := newTestWeighter(h)
	ctx := context.Background()

	if _, err := w.Metrics(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if _, err := w.Metrics(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if h.calls != 1 {
		t.Fatalf("history calls = %d, want 1 (second read cached)", h.calls)
	}

	if err := w.Invalidate(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := w.Metrics(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if h.calls != 2 {
		t.Fatalf("history calls = %d, want 2 after invalidation", h.calls)
	}
}

func TestMetricsHistoryFailureDegradesToNeutral(t *testing.T) {
	h := &fakeHistory{err: errors.New("clickhouse down")}
	w := newTestWeighter(h)

	m, err := w.Metrics(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Category != models.CategoryNeutral || m.PerformanceWeight != 1.0 {
		t.Fatalf("degraded snapshot = %+v, want neutral", m)
	}
}
