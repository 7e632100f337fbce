package validation

import (
	"strings"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
)

func goodCandidate() Candidate {
	return Candidate{
		Decision: models.FusedDecision{
			Symbol:     "BTCUSDT",
			Action:     models.ActionBuy,
			Confidence: 0.8,
		},
		Plan: models.RiskPlan{
			Symbol:       "BTCUSDT",
			Side:         models.SideLong,
			EntryPrice:   50_000,
			StopLoss:     49_250,
			TakeProfit:   51_875,
			ExpectedWin:  1_875,
			ExpectedLoss: 750,
			WinLossRatio: 2.5,
			RiskLevel:    models.RiskModerate,
		},
		Perf: models.SymbolPerformanceMetrics{
			Symbol:      "BTCUSDT",
			TotalTrades: 50,
			WinRate:     0.65,
		},
		Signals: []models.Signal{
			{SystemID: "gpu_neural", Confidence: 0.82, Direction: models.DirectionLong},
			{SystemID: "tensor_grid", Confidence: 0.78, Direction: models.DirectionLong},
			{SystemID: "markov_regime", Confidence: 0.80, Direction: models.DirectionLong},
		},
		Actions:    []models.Action{models.ActionBuy, models.ActionBuy, models.ActionBuy},
		Commission: 0.25,
	}
}

func TestValidatePassesCleanCandidate(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	r := v.Validate(goodCandidate())
	if !r.Passed {
		t.Fatalf("clean candidate failed: score=%v blockers=%v", r.Score, r.Blockers)
	}
	if len(r.Blockers) != 0 {
		t.Fatalf("unexpected blockers: %v", r.Blockers)
	}
}

// A candidate carrying both BUY and SELL provider actions can never pass,
// whatever the rest of the gates score.
func TestValidateConflictingActionsAlwaysBlock(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Actions = []models.Action{models.ActionBuy, models.ActionSell, models.ActionBuy}
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("conflicting actions passed: %+v", r)
	}
	if len(r.Blockers) == 0 {
		t.Fatal("expected a blocker for BUY/SELL conflict")
	}
}

func TestValidateNegativeExpectancyBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Perf.WinRate = 0.36 // above the hard floor, but kills the expectancy
	c.Plan.ExpectedWin = 300
	c.Plan.ExpectedLoss = 750
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("negative expectancy passed: %+v", r)
	}
}

func TestValidateLowWinRateBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Perf.WinRate = 0.20
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("20%% win rate passed: %+v", r)
	}
}

func TestValidateColdStartUsesConfidence(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Perf = models.SymbolPerformanceMetrics{Symbol: "BTCUSDT", TotalTrades: 2}
	r := v.Validate(c)
	if !r.Passed {
		t.Fatalf("cold-start candidate with 0.8 confidence failed: %+v", r)
	}
}

func TestValidateMisorderedPlanBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Plan.StopLoss, c.Plan.TakeProfit = c.Plan.TakeProfit, c.Plan.StopLoss
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("misordered plan passed: %+v", r)
	}
}

func TestValidateRateLimits(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	clock := time.Now()
	v.now = func() time.Time { return clock }

	// Three accepted trades inside the hour exhaust the budget.
	v.RecordAccepted("BTCUSDT", clock.Add(-50*time.Minute))
	v.RecordAccepted("BTCUSDT", clock.Add(-30*time.Minute))
	v.RecordAccepted("BTCUSDT", clock.Add(-15*time.Minute))
	if r := v.Validate(goodCandidate()); r.Passed {
		t.Fatalf("fourth trade in an hour passed: %+v", r)
	}

	// An hour later only the interval gate matters.
	clock = clock.Add(time.Hour)
	v.RecordAccepted("BTCUSDT", clock.Add(-5*time.Minute))
	if r := v.Validate(goodCandidate()); r.Passed {
		t.Fatalf("trade 5 minutes after the last one passed: %+v", r)
	}

	clock = clock.Add(20 * time.Minute)
	if r := v.Validate(goodCandidate()); !r.Passed {
		t.Fatalf("trade after cooldown failed: %+v", r)
	}
}

func TestValidateRateLimitPerSymbol(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	clock := time.Now()
	v.now = func() time.Time { return clock }

	v.RecordAccepted("ETHUSDT", clock.Add(-5*time.Minute))
	if r := v.Validate(goodCandidate()); !r.Passed {
		t.Fatalf("BTCUSDT should not inherit ETHUSDT's rate limit: %+v", r)
	}
}

func TestActionsFromSignalsFiltersWeakVotes(t *testing.T) {
	signals := []models.Signal{
		{SystemID: "a", Confidence: 0.9, Direction: models.DirectionLong},
		{SystemID: "b", Confidence: 0.85, Direction: models.DirectionLong},
		{SystemID: "c", Confidence: 0.3, Direction: models.DirectionShort},
	}
	actions := ActionsFromSignals(signals, 0.5)
	if len(actions) != 2 {
		t.Fatalf("actions = %v, want the weak short dropped", actions)
	}
	for _, a := range actions {
		if a != models.ActionBuy {
			t.Fatalf("unexpected action %s", a)
		}
	}
}

func TestValidateMarginalCandidateFailsScoreBar(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Perf.WinRate = 0.40          // partial credit
	c.Plan.WinLossRatio = 1.5      // partial credit
	c.Plan.ExpectedWin = 800       // thin expectancy: 0.4*800-0.6*750-0.25 = -130 -> blocker
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("marginal candidate passed: %+v", r)
	}
}

// A fused confidence above 0.95 is a data fault, not conviction.
func TestValidateImplausibleConfidenceBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Decision.Confidence = 0.99
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("0.99 confidence passed: score=%v blockers=%v", r.Score, r.Blockers)
	}
	found := false
	for _, b := range r.Blockers {
		if strings.Contains(b, "implausible") {
			found = true
		}
	}
	if !found {
		t.Fatalf("blockers %v should cite implausible confidence", r.Blockers)
	}
}

func TestValidateImplausibleSignalConfidenceBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Signals[1].Confidence = 0.97
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("0.97 signal confidence passed: %+v", r)
	}
}

// One BUY against three HOLDs is 25% agreement, far off the 80% consensus
// bar, no matter how clean the rest of the candidate looks.
func TestValidateLowAgreementBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Signals = []models.Signal{
		{SystemID: "gpu_neural", Confidence: 0.82, Direction: models.DirectionLong},
		{SystemID: "tensor_grid", Confidence: 0.78, Direction: models.DirectionFlat},
		{SystemID: "markov_regime", Confidence: 0.80, Direction: models.DirectionFlat},
		{SystemID: "kelly_sizer", Confidence: 0.76, Direction: models.DirectionFlat},
	}
	c.Actions = []models.Action{models.ActionBuy, models.ActionHold, models.ActionHold, models.ActionHold}
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("25%% agreement passed: score=%v blockers=%v", r.Score, r.Blockers)
	}
	found := false
	for _, b := range r.Blockers {
		if strings.Contains(b, "consensus") {
			found = true
		}
	}
	if !found {
		t.Fatalf("blockers %v should cite consensus", r.Blockers)
	}
}

func TestValidateConsensusAgreementEdge(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	// Four of five votes on BUY sits exactly at the 80% bar.
	c := goodCandidate()
	c.Signals = append(c.Signals,
		models.Signal{SystemID: "kelly_sizer", Confidence: 0.75, Direction: models.DirectionLong},
		models.Signal{SystemID: "rsi_basic", Confidence: 0.72, Direction: models.DirectionFlat},
	)
	c.Actions = []models.Action{
		models.ActionBuy, models.ActionBuy, models.ActionBuy, models.ActionBuy, models.ActionHold,
	}
	if r := v.Validate(c); !r.Passed {
		t.Fatalf("80%% agreement should pass: score=%v blockers=%v", r.Score, r.Blockers)
	}

	// Three of four does not.
	c.Signals = c.Signals[:4]
	c.Actions = []models.Action{
		models.ActionBuy, models.ActionBuy, models.ActionBuy, models.ActionHold,
	}
	if r := v.Validate(c); r.Passed {
		t.Fatalf("75%% agreement passed: score=%v", r.Score)
	}
}

func TestValidateTooFewSignalsBlock(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Signals = c.Signals[:2]
	c.Actions = []models.Action{models.ActionBuy, models.ActionBuy}
	r := v.Validate(c)
	if r.Passed {
		t.Fatalf("two-signal candidate passed: %+v", r)
	}
}

// A wide confidence spread loses the confidence credit but is not a blocker:
// the candidate can still clear the bar on the other gates.
func TestValidateConfidenceSpreadCostsCredit(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	c := goodCandidate()
	c.Signals[2].Confidence = 0.40 // mean 0.67, spread 0.42
	c.Actions = []models.Action{models.ActionBuy, models.ActionBuy} // 0.40 vote drops out
	r := v.Validate(c)
	if !r.Passed {
		t.Fatalf("spread should cost credit, not block: %+v", r)
	}
	if r.Score > 0.81 {
		t.Fatalf("score = %v, want the 0.2 confidence credit withheld", r.Score)
	}
}
