package repository

import (
	"context"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
	"AlphaFuse/pkg/cache"
)

func newStoreUnderTest() *RedisPositionStore {
	return NewRedisPositionStore(cache.NewMemoryCache()).(*RedisPositionStore)
}

func position(id, symbol string, status models.PositionStatus) models.Position {
	return models.Position{
		ID:         id,
		Symbol:     symbol,
		Side:       models.SideLong,
		Quantity:   1,
		EntryPrice: 50_000,
		EntryTime:  time.Now().Add(-time.Hour),
		StopLoss:   48_000,
		Status:     status,
	}
}

func TestPositionStoreRoundTrip(t *testing.T) {
	s := newStoreUnderTest()
	ctx := context.Background()

	want := position("pos-1", "BTCUSDT", models.PositionOpen)
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "pos-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Symbol != want.Symbol || got.Side != want.Side || got.Status != models.PositionOpen {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestPositionStoreOpenFiltersClosed(t *testing.T) {
	s := newStoreUnderTest()
	ctx := context.Background()

	if err := s.Put(ctx, position("pos-1", "BTCUSDT", models.PositionOpen)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, position("pos-2", "ETHUSDT", models.PositionOpen)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.MarkClosed(ctx, "pos-2", "stop loss breached"); err != nil {
		t.Fatalf("MarkClosed: %v", err)
	}

	open, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(open) != 1 || open[0].ID != "pos-1" {
		t.Fatalf("Open = %+v, want only pos-1", open)
	}

	closed, err := s.Get(ctx, "pos-2")
	if err != nil {
		t.Fatalf("Get closed: %v", err)
	}
	if closed.Status != models.PositionClosed || closed.ExitReason != "stop loss breached" {
		t.Fatalf("closed position = %+v", closed)
	}
}

func TestPositionStoreMarkClosedIdempotent(t *testing.T) {
	s := newStoreUnderTest()
	ctx := context.Background()

	if err := s.Put(ctx, position("pos-1", "BTCUSDT", models.PositionOpen)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.MarkClosed(ctx, "pos-1", "first reason"); err != nil {
		t.Fatalf("MarkClosed: %v", err)
	}
	if err := s.MarkClosed(ctx, "pos-1", "second reason"); err != nil {
		t.Fatalf("MarkClosed twice: %v", err)
	}
	got, err := s.Get(ctx, "pos-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExitReason != "first reason" {
		t.Fatalf("exit reason = %q, want the first reason kept", got.ExitReason)
	}
}

func TestPositionStoreEmptyIndex(t *testing.T) {
	s := newStoreUnderTest()
	open, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("Open on empty store = %+v", open)
	}
}

func TestPositionStoreRejectsMissingID(t *testing.T) {
	s := newStoreUnderTest()
	if err := s.Put(context.Background(), models.Position{Symbol: "BTCUSDT"}); err == nil {
		t.Fatal("expected error for position without id")
	}
}
