package models

import "time"

// Direction is the predicted move direction of a signal.
type Direction int

const (
	DirectionShort Direction = -1
	DirectionFlat  Direction = 0
	DirectionLong  Direction = 1
)

// Action is the decision emitted for a symbol after fusion and validation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionSkip Action = "SKIP"
)

// Signal is one predictive system's opinion about a symbol at a point in time.
// Signals are immutable; each provider produces one per evaluation cycle.
type Signal struct {
	SystemID    string
	Symbol      string
	Confidence  float64 // [0,1]
	Direction   Direction
	Magnitude   float64 // expected fractional move, e.g. 0.012 = 1.2%
	Reliability float64 // historical accuracy of the system, [0,1]
	Timestamp   time.Time
}

// Act maps the signal direction to an entry action.
func (s Signal) Act() Action {
	switch {
	case s.Direction > 0:
		return ActionBuy
	case s.Direction < 0:
		return ActionSell
	default:
		return ActionHold
	}
}

// FusedDecision is the output of fusing a signal set for one symbol.
type FusedDecision struct {
	Symbol           string
	Action           Action
	Confidence       float64
	ExpectedMove     float64 // fractional, pre-commission
	PositionFraction float64 // fraction of allocatable capital
	Coherence        float64 // directional agreement [0,1]
	Information      float64 // ensemble information content, bits
	DominantSignals  []string
	Reasoning        []string
	Timestamp        time.Time
}

// DecisionEnvelope is what the core emits to the execution sink: the fused
// decision plus, for BUY/SELL, the stop/target plan.
type DecisionEnvelope struct {
	Decision FusedDecision
	Risk     *RiskPlan
}
