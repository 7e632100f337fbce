package models

import "time"

// Category buckets a symbol's historical trading quality.
type Category string

const (
	CategoryChampion Category = "CHAMPION"
	CategoryProven   Category = "PROVEN"
	CategoryNeutral  Category = "NEUTRAL"
	CategoryCaution  Category = "CAUTION"
	CategoryHighRisk Category = "HIGH_RISK"
)

// SymbolPerformanceMetrics is the rolling per-symbol aggregate recomputed on a
// TTL from closed-trade history. PerformanceWeight is a monotone non-increasing
// function of RiskScore.
type SymbolPerformanceMetrics struct {
	Symbol            string
	TotalTrades       int
	WinRate           float64 // [0,1]
	AvgPnL            float64
	TotalPnL          float64
	RiskScore         float64 // [0,1], higher is worse
	PerformanceWeight float64 // [0.05,2.0]
	Category          Category
	LastUpdated       time.Time
}

// ClosedTrade is one realized trade outcome from the trade history store.
type ClosedTrade struct {
	Symbol    string
	PnL       float64
	Timestamp time.Time
}

// Win reports whether the trade closed profitably.
func (t ClosedTrade) Win() bool { return t.PnL > 0 }
