package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	pkgkafka "AlphaFuse/pkg/kafka"
	applogger "AlphaFuse/pkg/logger"
)

// FillsHandler consumes closed-trade fills from the execution side, records
// them into trade history, and invalidates the cached performance snapshot so
// the next decision cycle sees the fresh record. A winning fill also lifts
// any cool-off on the symbol.
type FillsHandler struct {
	topic    string
	history  drepo.TradeHistory
	weighter *performance.Weighter
	filter   *pairfilter.Filter
	metrics  drepo.Metrics
	l        *applogger.Logger
}

func NewFillsHandler(
	topic string,
	history drepo.TradeHistory,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *FillsHandler {
	return &FillsHandler{
		topic:    topic,
		history:  history,
		weighter: weighter,
		filter:   filter,
		metrics:  metrics,
		l:        l,
	}
}

func (h *FillsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, pnl, closed_at}
func (h *FillsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol   string  `json:"symbol"`
		PnL      float64 `json:"pnl"`
		ClosedAt int64   `json:"closed_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("fills_unmarshal")
		return err
	}
	if m.Symbol == "" {
		h.metrics.RecordError("fills_missing_symbol")
		return fmt.Errorf("fill without symbol")
	}
	if m.ClosedAt > 1e11 { // ms
		m.ClosedAt = m.ClosedAt / 1000
	}
	closedAt := time.Unix(m.ClosedAt, 0)
	if m.ClosedAt == 0 {
		closedAt = time.Now()
	}

	trade := models.ClosedTrade{Symbol: m.Symbol, PnL: m.PnL, Timestamp: closedAt}
	if err := h.history.RecordClosedTrade(ctx, trade); err != nil {
		h.metrics.RecordError("fills_store")
		return fmt.Errorf("record fill %s: %w", m.Symbol, err)
	}

	if err := h.weighter.Invalidate(ctx, m.Symbol); err != nil && h.l != nil {
		h.l.Warn("performance invalidation failed",
			applogger.String("symbol", m.Symbol), applogger.Error(err))
	}
	if trade.Win() {
		h.filter.ClearCoolOff(m.Symbol)
	}

	if h.l != nil {
		h.l.Info("fill recorded",
			applogger.String("symbol", m.Symbol),
			applogger.Any("pnl", m.PnL))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*FillsHandler)(nil)
