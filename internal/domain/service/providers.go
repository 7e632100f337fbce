package service

import (
	"context"

	"AlphaFuse/internal/domain/models"
)

// SignalProvider is the uniform contract each predictive system satisfies.
// Providers are queried concurrently once per symbol per cycle; a provider
// that errors or times out is dropped from the fusion set for that cycle.
type SignalProvider interface {
	SystemID() string
	GetSignal(ctx context.Context, symbol string) (models.Signal, error)
}

// MarketData serves the current price for a symbol. Implementations must
// prefer returning a last-known value flagged Stale over blocking.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (models.PricePoint, error)
	Volatility(symbol string) float64
}
