package riskreward

import (
	"math/rand"
	"testing"

	"AlphaFuse/internal/domain/models"
)

func perf(winRate float64, trades int) models.SymbolPerformanceMetrics {
	return models.SymbolPerformanceMetrics{Symbol: "BTCUSDT", WinRate: winRate, TotalTrades: trades}
}

func TestPlanLongDirections(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	p, err := o.Plan("BTCUSDT", models.SideLong, 50_000, 0.8, 0.2, perf(0.65, 40))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !(p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit) {
		t.Fatalf("long ordering violated: stop=%v entry=%v tp=%v", p.StopLoss, p.EntryPrice, p.TakeProfit)
	}
}

func TestPlanShortDirections(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	p, err := o.Plan("BTCUSDT", models.SideShort, 50_000, 0.8, 0.2, perf(0.65, 40))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !(p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss) {
		t.Fatalf("short ordering violated: tp=%v entry=%v stop=%v", p.TakeProfit, p.EntryPrice, p.StopLoss)
	}
}

// The reward:risk ratio never drops below the configured floor, whatever the
// performance and confidence adjustments do to stop and target.
func TestPlanRatioFloorHolds(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		side := models.SideLong
		if rng.Intn(2) == 1 {
			side = models.SideShort
		}
		p, err := o.Plan("BTCUSDT", side,
			100+rng.Float64()*99_900,
			rng.Float64(),
			rng.Float64()*1.5,
			perf(rng.Float64(), rng.Intn(200)),
		)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if p.WinLossRatio < DefaultConfig().TargetRatio-1e-9 {
			t.Fatalf("iteration %d: ratio %v below floor %v", i, p.WinLossRatio, DefaultConfig().TargetRatio)
		}
		if p.ExpectedWin <= 0 || p.ExpectedLoss <= 0 {
			t.Fatalf("iteration %d: expected win/loss must be positive: %+v", i, p)
		}
	}
}

func TestPlanProvenSymbolGetsTighterStop(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	strong, err := o.Plan("BTCUSDT", models.SideLong, 50_000, 0.7, 0.2, perf(0.80, 60))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	weak, err := o.Plan("BTCUSDT", models.SideLong, 50_000, 0.7, 0.2, perf(0.30, 60))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if strong.ExpectedLoss >= weak.ExpectedLoss {
		t.Fatalf("proven stop %v should be tighter than weak stop %v", strong.ExpectedLoss, weak.ExpectedLoss)
	}
}

func TestPlanVolatilityWidensStop(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	calm, err := o.Plan("BTCUSDT", models.SideLong, 50_000, 0.7, 0.0, perf(0.6, 40))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wild, err := o.Plan("BTCUSDT", models.SideLong, 50_000, 0.7, 1.0, perf(0.6, 40))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if wild.ExpectedLoss <= calm.ExpectedLoss {
		t.Fatalf("volatile stop %v should be wider than calm stop %v", wild.ExpectedLoss, calm.ExpectedLoss)
	}
}

func TestPlanRiskLevels(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	cases := []struct {
		confidence float64
		winRate    float64
		trades     int
		want       models.RiskLevel
	}{
		{0.90, 0.80, 50, models.RiskAggressive},
		{0.50, 0.60, 50, models.RiskConservative},
		{0.80, 0.40, 50, models.RiskConservative},
		{0.75, 0.60, 50, models.RiskModerate},
		{0.90, 0.00, 0, models.RiskModerate}, // cold start never goes aggressive
	}
	for _, c := range cases {
		p, err := o.Plan("BTCUSDT", models.SideLong, 50_000, c.confidence, 0.2, perf(c.winRate, c.trades))
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if p.RiskLevel != c.want {
			t.Fatalf("conf=%v winRate=%v trades=%d: level=%s, want %s",
				c.confidence, c.winRate, c.trades, p.RiskLevel, c.want)
		}
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), nil)
	if _, err := o.Plan("BTCUSDT", models.SideLong, 0, 0.8, 0.2, perf(0.6, 10)); err == nil {
		t.Fatal("expected error for zero entry price")
	}
	if _, err := o.Plan("BTCUSDT", models.Side("SIDEWAYS"), 100, 0.8, 0.2, perf(0.6, 10)); err == nil {
		t.Fatal("expected error for unknown side")
	}
}
