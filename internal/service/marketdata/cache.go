package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaFuse/internal/domain/models"
	dservice "AlphaFuse/internal/domain/service"
	"AlphaFuse/internal/services/stats"
)

// PriceCacheConfig tunes staleness and the volatility window.
type PriceCacheConfig struct {
	StaleAfter       time.Duration
	HistoryDepth     int // price points kept per symbol
	VolatilityWindow int // log returns used for realized volatility
}

func DefaultPriceCacheConfig() PriceCacheConfig {
	return PriceCacheConfig{
		StaleAfter:       30 * time.Second,
		HistoryDepth:     256,
		VolatilityWindow: 60,
	}
}

type symbolState struct {
	last   models.PricePoint
	prices []float64 // ring, newest last
}

// PriceCache holds the last quote and a short price history per symbol, fed
// by the tick stream. Reads never block: a quote past StaleAfter is served
// with the Stale flag set rather than withheld.
type PriceCache struct {
	cfg PriceCacheConfig

	mu    sync.RWMutex
	state map[string]*symbolState
	now   func() time.Time
}

func NewPriceCache(cfg PriceCacheConfig) *PriceCache {
	return &PriceCache{
		cfg:   cfg,
		state: make(map[string]*symbolState),
		now:   time.Now,
	}
}

// Apply folds one tick into the cache. Satisfies the pipeline's downstream
// contract.
func (c *PriceCache) Apply(_ context.Context, t *models.Tick) error {
	if t == nil || t.Symbol == "" || t.Price <= 0 {
		return fmt.Errorf("invalid tick")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state[t.Symbol]
	if !ok {
		st = &symbolState{prices: make([]float64, 0, c.cfg.HistoryDepth)}
		c.state[t.Symbol] = st
	}
	st.last = models.PricePoint{
		Symbol: t.Symbol,
		Price:  t.Price,
		AsOf:   time.Unix(t.Timestamp, 0),
	}
	st.prices = append(st.prices, t.Price)
	if len(st.prices) > c.cfg.HistoryDepth {
		st.prices = st.prices[len(st.prices)-c.cfg.HistoryDepth:]
	}
	return nil
}

// CurrentPrice returns the last known quote. Quotes older than StaleAfter
// come back flagged Stale; an unknown symbol is an error.
func (c *PriceCache) CurrentPrice(_ context.Context, symbol string) (models.PricePoint, error) {
	c.mu.RLock()
	st, ok := c.state[symbol]
	c.mu.RUnlock()
	if !ok || st.last.Price <= 0 {
		return models.PricePoint{}, fmt.Errorf("no quote for %s", symbol)
	}
	p := st.last
	if c.now().Sub(p.AsOf) > c.cfg.StaleAfter {
		p.Stale = true
	}
	return p, nil
}

// Volatility is the realized volatility of recent log returns, 0 when the
// history is too short.
func (c *PriceCache) Volatility(symbol string) float64 {
	c.mu.RLock()
	st, ok := c.state[symbol]
	if !ok {
		c.mu.RUnlock()
		return 0
	}
	prices := make([]float64, len(st.prices))
	copy(prices, st.prices)
	c.mu.RUnlock()

	return stats.RealizedVolatility(stats.ComputeLogReturns(prices), c.cfg.VolatilityWindow)
}

var _ dservice.MarketData = (*PriceCache)(nil)
