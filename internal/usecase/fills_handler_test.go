package usecase

import (
	"context"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	"AlphaFuse/pkg/cache"
)

func newFillsHandler(history *fakeHistory) (*FillsHandler, *performance.Weighter, *pairfilter.Filter) {
	weighter := performance.NewWeighter(history, cache.NewMemoryCache(), performance.DefaultConfig(), nil)
	filter := pairfilter.NewFilter(history, pairfilter.DefaultConfig(), nil)
	h := NewFillsHandler("trade.fills", history, weighter, filter, newFakeMetrics(), nil)
	return h, weighter, filter
}

func TestFillsHandlerRecordsTrade(t *testing.T) {
	history := newFakeHistory()
	h, _, _ := newFillsHandler(history)

	msg := []byte(`{"symbol":"BTCUSDT","pnl":12.5,"closed_at":1756100000}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	trades, err := history.ClosedTrades(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("ClosedTrades: %v", err)
	}
	if len(trades) != 1 || trades[0].PnL != 12.5 {
		t.Fatalf("stored trades = %+v", trades)
	}
}

func TestFillsHandlerMillisecondTimestamps(t *testing.T) {
	history := newFakeHistory()
	h, _, _ := newFillsHandler(history)

	msg := []byte(`{"symbol":"BTCUSDT","pnl":-3.0,"closed_at":1756100000000}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	trades, _ := history.ClosedTrades(context.Background(), "BTCUSDT", 10)
	if len(trades) != 1 {
		t.Fatalf("stored trades = %+v", trades)
	}
	if got := trades[0].Timestamp; got.Year() < 2020 || got.Year() > 2100 {
		t.Fatalf("timestamp %v not normalized from milliseconds", got)
	}
}

func TestFillsHandlerInvalidatesPerformanceCache(t *testing.T) {
	history := newFakeHistory()
	h, weighter, _ := newFillsHandler(history)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 6; i++ {
		_ = history.RecordClosedTrade(ctx, models.ClosedTrade{Symbol: "BTCUSDT", PnL: 1, Timestamp: base})
	}
	before, err := weighter.Metrics(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if before.TotalTrades != 6 {
		t.Fatalf("TotalTrades = %d, want 6", before.TotalTrades)
	}

	msg := []byte(`{"symbol":"BTCUSDT","pnl":2.0,"closed_at":0}`)
	if err := h.Handle(ctx, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	after, err := weighter.Metrics(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if after.TotalTrades != 7 {
		t.Fatalf("TotalTrades after fill = %d, want 7 (cache invalidated)", after.TotalTrades)
	}
}

func TestFillsHandlerWinLiftsCoolOff(t *testing.T) {
	history := newFakeHistory()
	h, _, filter := newFillsHandler(history)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		_ = history.RecordClosedTrade(ctx, models.ClosedTrade{Symbol: "DOGEUSDT", PnL: -1, Timestamp: base})
	}
	if v, err := filter.Evaluate(ctx, "DOGEUSDT", 0.6, 0.2); err != nil || v.Allowed {
		t.Fatalf("expected block, got %+v err=%v", v, err)
	}
	if len(filter.BlockedSymbols()) != 1 {
		t.Fatal("expected a cool-off")
	}

	msg := []byte(`{"symbol":"DOGEUSDT","pnl":4.0,"closed_at":0}`)
	if err := h.Handle(ctx, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(filter.BlockedSymbols()) != 0 {
		t.Fatal("winning fill should lift the cool-off")
	}
}

func TestFillsHandlerRejectsGarbage(t *testing.T) {
	history := newFakeHistory()
	h, _, _ := newFillsHandler(history)

	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), []byte(`{"pnl":1.0}`)); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}
