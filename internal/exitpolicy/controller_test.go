package exitpolicy

import (
	"math"
	"strings"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
)

func openPosition(side models.Side, entry, stop float64, age time.Duration, now time.Time) models.Position {
	return models.Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		Side:       side,
		Quantity:   0.5,
		EntryPrice: entry,
		EntryTime:  now.Add(-age),
		StopLoss:   stop,
		Status:     models.PositionOpen,
	}
}

func TestThresholdStartsAtBaseAndDecays(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	if got := c.Threshold(0); math.Abs(got-0.8) > 1e-12 {
		t.Fatalf("Threshold(0) = %v, want 0.8", got)
	}
	prev := c.Threshold(0)
	for _, held := range []time.Duration{time.Minute, 30 * time.Minute, time.Hour, 4 * time.Hour, 24 * time.Hour, 7 * 24 * time.Hour} {
		cur := c.Threshold(held)
		if cur >= prev {
			t.Fatalf("threshold not strictly decreasing at %s: %v >= %v", held, cur, prev)
		}
		if cur <= 0 {
			t.Fatalf("threshold must stay positive, got %v at %s", cur, held)
		}
		prev = cur
	}
}

func TestTimeConfidenceBounds(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	if got := c.TimeConfidence(0); got != 0 {
		t.Fatalf("TimeConfidence(0) = %v, want 0", got)
	}
	for _, held := range []time.Duration{time.Hour, 24 * time.Hour, 365 * 24 * time.Hour} {
		got := c.TimeConfidence(held)
		if got <= 0 || got >= 1 {
			t.Fatalf("TimeConfidence(%s) = %v, want in (0, 1)", held, got)
		}
	}
}

// A 90-minute-old position with a 0.75 live score exits: the decayed
// threshold (~0.508) drops below the time-discounted score (~0.526).
func TestEvaluateNinetyMinuteExit(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()
	pos := openPosition(models.SideLong, 50_000, 48_000, 90*time.Minute, now)
	price := models.PricePoint{Symbol: "BTCUSDT", Price: 50_200, AsOf: now}

	d := c.Evaluate(pos, 0.75, price, now)
	if !d.Exit {
		t.Fatalf("expected exit, got %+v", d)
	}
	if math.Abs(d.Threshold-0.5077) > 0.001 {
		t.Fatalf("threshold = %v, want ~0.5077", d.Threshold)
	}
	if math.Abs(d.Score-0.5261) > 0.001 {
		t.Fatalf("adjusted score = %v, want ~0.5261", d.Score)
	}
}

func TestEvaluateFreshPositionHolds(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()
	pos := openPosition(models.SideLong, 50_000, 48_000, 0, now)
	price := models.PricePoint{Symbol: "BTCUSDT", Price: 50_200, AsOf: now}

	d := c.Evaluate(pos, 0.75, price, now)
	if d.Exit {
		t.Fatalf("fresh position with 0.75 score should hold, got %+v", d)
	}
}

func TestEvaluateStopBreachOverrides(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()

	long := openPosition(models.SideLong, 50_000, 48_000, time.Minute, now)
	d := c.Evaluate(long, 0.1, models.PricePoint{Symbol: "BTCUSDT", Price: 47_900, AsOf: now}, now)
	if !d.Exit || !strings.Contains(d.Reason, "stop loss breached") {
		t.Fatalf("long stop breach not honored: %+v", d)
	}

	short := openPosition(models.SideShort, 50_000, 52_000, time.Minute, now)
	d = c.Evaluate(short, 0.1, models.PricePoint{Symbol: "BTCUSDT", Price: 52_100, AsOf: now}, now)
	if !d.Exit || !strings.Contains(d.Reason, "stop loss breached") {
		t.Fatalf("short stop breach not honored: %+v", d)
	}
}

func TestEvaluateStalePriceSkipsStopCheck(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()
	pos := openPosition(models.SideLong, 50_000, 48_000, time.Minute, now)
	stale := models.PricePoint{Symbol: "BTCUSDT", Price: 47_000, Stale: true, AsOf: now.Add(-time.Hour)}

	d := c.Evaluate(pos, 0.1, stale, now)
	if d.Exit {
		t.Fatalf("stale quote must not trigger a stop exit: %+v", d)
	}
}

func TestEvaluateHardScoreOverridesAge(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()
	pos := openPosition(models.SideLong, 50_000, 48_000, 0, now)
	price := models.PricePoint{Symbol: "BTCUSDT", Price: 50_100, AsOf: now}

	d := c.Evaluate(pos, 0.95, price, now)
	if !d.Exit || !strings.Contains(d.Reason, "hard exit") {
		t.Fatalf("score 0.95 on a fresh position must exit: %+v", d)
	}
}

// A stronger live signal never flips an exit back to hold at the same age.
func TestEvaluateMonotoneInScore(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	now := time.Now()
	pos := openPosition(models.SideLong, 50_000, 48_000, 3*time.Hour, now)
	price := models.PricePoint{Symbol: "BTCUSDT", Price: 50_200, AsOf: now}

	exited := false
	for score := 0.0; score <= 1.0; score += 0.01 {
		d := c.Evaluate(pos, score, price, now)
		if exited && !d.Exit {
			t.Fatalf("exit flipped back to hold at score %v", score)
		}
		if d.Exit {
			exited = true
		}
	}
	if !exited {
		t.Fatal("no score exited a 3-hour-old position")
	}
}
