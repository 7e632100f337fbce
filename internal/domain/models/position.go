package models

import "time"

// Side of a live holding.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// PositionStatus tracks the position lifecycle. CLOSED is terminal: a new
// position on the same symbol is a distinct instance with a fresh EntryTime.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is a live holding owned by the caller; the core reads it each
// cycle and returns exit decisions for the owner to act on.
type Position struct {
	ID            string
	Symbol        string
	Side          Side
	Quantity      float64
	EntryPrice    float64
	EntryTime     time.Time
	StopLoss      float64
	TakeProfit    float64
	Status        PositionStatus
	ExitReason    string
	CurrentPrice  float64
	UnrealizedPnL float64
}

// StopBreached reports whether price has crossed the hard stop for the side.
func (p Position) StopBreached(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == SideShort {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

// LossFraction is the adverse fractional move from entry, 0 when in profit.
func (p Position) LossFraction(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (price - p.EntryPrice) / p.EntryPrice
	if p.Side == SideShort {
		move = -move
	}
	if move >= 0 {
		return 0
	}
	return -move
}

// ExitDecision is the per-position verdict of one exit evaluation.
type ExitDecision struct {
	PositionID string
	Symbol     string
	Exit       bool
	Reason     string
	Score      float64 // time-adjusted exit score actually compared
	Threshold  float64 // threshold it was compared against
	Timestamp  time.Time
}

// PricePoint is a market data quote. Stale marks a last-known value served
// because the live source was unavailable; callers must not treat it as fresh.
type PricePoint struct {
	Symbol string
	Price  float64
	Stale  bool
	AsOf   time.Time
}
