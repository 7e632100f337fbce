package models

// FilterCriteria are the dynamic pair-filter thresholds. They are always
// derived from (marketVolatility, systemConfidence), never hand-tuned.
type FilterCriteria struct {
	MinWinRate           float64
	MinTotalPnL          float64
	MinTrades            int
	MaxConsecutiveLosses int
}

// RiskLevel bands the aggressiveness of a stop/target configuration.
type RiskLevel string

const (
	RiskConservative RiskLevel = "CONSERVATIVE"
	RiskModerate     RiskLevel = "MODERATE"
	RiskAggressive   RiskLevel = "AGGRESSIVE"
)

// RiskPlan is the stop/target configuration computed per trade.
type RiskPlan struct {
	Symbol       string
	Side         Side
	EntryPrice   float64
	StopLoss     float64
	TakeProfit   float64
	ExpectedWin  float64 // $ at take-profit for the given position size
	ExpectedLoss float64 // $ at stop-loss, positive number
	WinLossRatio float64
	RiskLevel    RiskLevel
}

// ValidationReport is the strict validator's verdict on a candidate trade.
type ValidationReport struct {
	Passed   bool
	Score    float64
	Reasons  []string
	Blockers []string
}
