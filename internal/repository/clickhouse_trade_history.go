package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
)

// TradeFillsSchema creates the closed-trade table. Passed to the ClickHouse
// client's InitSchema at startup.
var TradeFillsSchema = []string{
	`CREATE TABLE IF NOT EXISTS trade_fills (
		closed_at DateTime,
		symbol    LowCardinality(String),
		pnl       Float64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(closed_at)
	ORDER BY (symbol, closed_at)`,
}

// ClickHouseTradeHistory implements TradeHistory over ClickHouse.
type ClickHouseTradeHistory struct {
	db    *sql.DB
	table string
}

func NewClickHouseTradeHistory(db *sql.DB, table string) drepo.TradeHistory {
	if table == "" {
		table = "trade_fills"
	}
	return &ClickHouseTradeHistory{db: db, table: table}
}

// ClosedTrades returns the most recent closed trades for a symbol in
// chronological order, oldest first, so streak math reads the tail.
func (s *ClickHouseTradeHistory) ClosedTrades(ctx context.Context, symbol string, limit int) ([]models.ClosedTrade, error) {
	if limit <= 0 {
		limit = 200
	}
	q := fmt.Sprintf(`SELECT symbol, pnl, closed_at FROM (
		SELECT symbol, pnl, closed_at FROM %s WHERE symbol = ? ORDER BY closed_at DESC LIMIT ?
	) ORDER BY closed_at ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var t models.ClosedTrade
		var ts time.Time
		if err := rows.Scan(&t.Symbol, &t.PnL, &ts); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		t.Timestamp = ts
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *ClickHouseTradeHistory) RecordClosedTrade(ctx context.Context, t models.ClosedTrade) error {
	if t.Symbol == "" {
		return fmt.Errorf("closed trade without symbol")
	}
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	q := fmt.Sprintf("INSERT INTO %s (closed_at, symbol, pnl) VALUES (?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, ts, t.Symbol, t.PnL); err != nil {
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

func (s *ClickHouseTradeHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTradeHistory) Close() error {
	return nil // connection owned by pkg client
}
