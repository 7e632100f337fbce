package repository

import (
	"context"

	"AlphaFuse/internal/domain/models"
)

// TradeHistory is the closed-trade store backing performance metrics and
// win-rate gates.
type TradeHistory interface {
	ClosedTrades(ctx context.Context, symbol string, limit int) ([]models.ClosedTrade, error)
	RecordClosedTrade(ctx context.Context, t models.ClosedTrade) error
	Health(ctx context.Context) error
	Close() error
}

// PositionStore holds live positions. The core reads open positions each
// cycle and marks them closed when an exit fires; order placement stays with
// the owning process.
type PositionStore interface {
	Open(ctx context.Context) ([]models.Position, error)
	Get(ctx context.Context, id string) (models.Position, error)
	Put(ctx context.Context, p models.Position) error
	MarkClosed(ctx context.Context, id, reason string) error
}

// DecisionSink receives emitted decisions and exit verdicts for the owning
// process to execute.
type DecisionSink interface {
	PublishDecision(ctx context.Context, env models.DecisionEnvelope) error
	PublishExit(ctx context.Context, d models.ExitDecision) error
	Close() error
}

// MarketStream is a live tick feed from an exchange.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordDecision(symbol string, action string)
	RecordGateRejection(gate string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordOpenPositions(n int)
}
