package validation

import (
	"fmt"
	"sync"
	"time"

	"AlphaFuse/internal/domain/models"
	applogger "AlphaFuse/pkg/logger"
)

// Gate weights. They sum to 1; the pass bar is MinScore with zero blockers.
// Conflict and risk-plan sanity are pure blockers and carry no weight.
const (
	weightFrequency  = 0.1
	weightExpectancy = 0.2
	weightConsensus  = 0.3
	weightConfidence = 0.2
	weightWinRate    = 0.2
)

// Consensus and confidence gate bounds.
const (
	minConsensusSignals    = 3
	minAgreement           = 0.80
	minMeanConfidence      = 0.70
	maxConfidenceSpread    = 0.30
	maxPlausibleConfidence = 0.95
)

// Config holds the validator thresholds.
type Config struct {
	MaxTradesPerHour int
	MinInterval      time.Duration
	MinScore         float64
	MinWinLossRatio  float64
	ColdStartTrades  int
	// MinActionConfidence is the vote bar for ActionsFromSignals.
	MinActionConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MaxTradesPerHour:    3,
		MinInterval:         10 * time.Minute,
		MinScore:            0.6,
		MinWinLossRatio:     2.0,
		ColdStartTrades:     5,
		MinActionConfidence: 0.5,
	}
}

// ActionsFromSignals maps signals to their implied actions, keeping only
// signals confident enough to count as a real vote. Low-confidence dissent is
// the fusion engine's problem, not a validator conflict.
func ActionsFromSignals(signals []models.Signal, minConfidence float64) []models.Action {
	out := make([]models.Action, 0, len(signals))
	for _, s := range signals {
		if s.Confidence >= minConfidence {
			out = append(out, s.Act())
		}
	}
	return out
}

// Candidate is the fully assembled trade the validator rules on. Signals is
// the raw per-provider set from this cycle; the consensus and confidence
// gates read it directly rather than trusting the fused summary.
type Candidate struct {
	Decision   models.FusedDecision
	Plan       models.RiskPlan
	Perf       models.SymbolPerformanceMetrics
	Signals    []models.Signal
	Actions    []models.Action // confident votes derived from Signals
	Commission float64         // round-trip $ cost at the planned size
}

// Validator is the last gate before a decision is emitted. Each check
// contributes weighted credit toward the score; hard failures are recorded as
// blockers and no score can override a blocker.
type Validator struct {
	cfg Config
	l   *applogger.Logger

	mu     sync.Mutex
	recent map[string][]time.Time
	now    func() time.Time
}

func NewValidator(cfg Config, l *applogger.Logger) *Validator {
	return &Validator{
		cfg:    cfg,
		l:      l,
		recent: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Validate scores the candidate. Passed is true only when there are no
// blockers and the accumulated score reaches MinScore.
func (v *Validator) Validate(c Candidate) models.ValidationReport {
	var r models.ValidationReport

	v.checkRateLimit(c, &r)
	v.checkConflict(c, &r)
	v.checkConsensus(c, &r)
	v.checkConfidence(c, &r)
	v.checkExpectancy(c, &r)
	v.checkWinRate(c, &r)
	v.checkRiskPlan(c, &r)

	r.Passed = len(r.Blockers) == 0 && r.Score >= v.cfg.MinScore
	if v.l != nil {
		v.l.Info("trade validation",
			applogger.String("symbol", c.Decision.Symbol),
			applogger.Bool("passed", r.Passed),
			applogger.Any("score", r.Score),
			applogger.Any("blockers", r.Blockers),
		)
	}
	return r
}

// RecordAccepted registers an emitted trade for rate limiting.
func (v *Validator) RecordAccepted(symbol string, at time.Time) {
	v.mu.Lock()
	v.recent[symbol] = append(v.recent[symbol], at)
	v.mu.Unlock()
}

func (v *Validator) checkRateLimit(c Candidate, r *models.ValidationReport) {
	symbol := c.Decision.Symbol
	now := v.now()
	cutoff := now.Add(-time.Hour)

	v.mu.Lock()
	kept := v.recent[symbol][:0]
	var last time.Time
	for _, t := range v.recent[symbol] {
		if t.After(cutoff) {
			kept = append(kept, t)
			if t.After(last) {
				last = t
			}
		}
	}
	v.recent[symbol] = kept
	count := len(kept)
	v.mu.Unlock()

	if count >= v.cfg.MaxTradesPerHour {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("rate limit: %d trades in the last hour (max %d)", count, v.cfg.MaxTradesPerHour))
		return
	}
	if !last.IsZero() && now.Sub(last) < v.cfg.MinInterval {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("rate limit: last trade %s ago (min interval %s)",
				now.Sub(last).Round(time.Second), v.cfg.MinInterval))
		return
	}
	r.Score += weightFrequency
	r.Reasons = append(r.Reasons, "rate limit ok")
}

func (v *Validator) checkConflict(c Candidate, r *models.ValidationReport) {
	var buys, sells int
	for _, a := range c.Actions {
		switch a {
		case models.ActionBuy:
			buys++
		case models.ActionSell:
			sells++
		}
	}
	if buys > 0 && sells > 0 {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("conflicting signals: %d BUY vs %d SELL", buys, sells))
		return
	}
	// High-confidence disagreement blocks even when the votes above were
	// assembled with a different bar.
	var longs, shorts int
	for _, s := range c.Signals {
		if s.Confidence <= 0.70 {
			continue
		}
		switch {
		case s.Direction > 0:
			longs++
		case s.Direction < 0:
			shorts++
		}
	}
	if longs > 0 && shorts > 0 {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("conflicting high-confidence signals: %d long vs %d short", longs, shorts))
		return
	}
	r.Reasons = append(r.Reasons, "no conflicting signals")
}

// checkConsensus requires a full signal roster and a dominant directional
// vote. HOLD votes count against agreement: an undecided roster is not a
// consensus.
func (v *Validator) checkConsensus(c Candidate, r *models.ValidationReport) {
	if len(c.Signals) < minConsensusSignals {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("consensus: only %d signals (min %d)", len(c.Signals), minConsensusSignals))
		return
	}

	votes := c.Actions
	if len(votes) == 0 {
		votes = ActionsFromSignals(c.Signals, v.cfg.MinActionConfidence)
	}
	var buys, sells int
	for _, a := range votes {
		switch a {
		case models.ActionBuy:
			buys++
		case models.ActionSell:
			sells++
		}
	}
	dominant, action := buys, models.ActionBuy
	if sells > buys {
		dominant, action = sells, models.ActionSell
	}
	if dominant == 0 {
		r.Blockers = append(r.Blockers, "consensus: no directional votes")
		return
	}
	agreement := float64(dominant) / float64(len(votes))
	if agreement < minAgreement {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("consensus: %.0f%% agreement on %s (min %.0f%%)",
				agreement*100, action, minAgreement*100))
		return
	}
	r.Score += weightConsensus
	r.Reasons = append(r.Reasons,
		fmt.Sprintf("consensus: %.0f%% on %s across %d signals", agreement*100, action, len(c.Signals)))
}

// checkConfidence gates on the raw confidence distribution. Anything above
// maxPlausibleConfidence is treated as a data fault, not conviction: no real
// model is that sure.
func (v *Validator) checkConfidence(c Candidate, r *models.ValidationReport) {
	if c.Decision.Confidence > maxPlausibleConfidence {
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("implausible fused confidence %.2f (max %.2f)",
				c.Decision.Confidence, maxPlausibleConfidence))
		return
	}

	var sum, lo, hi float64
	lo = 1.0
	for _, s := range c.Signals {
		if s.Confidence > maxPlausibleConfidence {
			r.Blockers = append(r.Blockers,
				fmt.Sprintf("implausible confidence %.2f from %s (max %.2f)",
					s.Confidence, s.SystemID, maxPlausibleConfidence))
			return
		}
		sum += s.Confidence
		if s.Confidence < lo {
			lo = s.Confidence
		}
		if s.Confidence > hi {
			hi = s.Confidence
		}
	}

	mean, spread := c.Decision.Confidence, 0.0
	if len(c.Signals) > 0 {
		mean = sum / float64(len(c.Signals))
		spread = hi - lo
	}
	if mean < minMeanConfidence {
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("mean confidence %.2f below %.2f, no credit", mean, minMeanConfidence))
		return
	}
	if spread > maxConfidenceSpread {
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("confidence spread %.2f above %.2f, no credit", spread, maxConfidenceSpread))
		return
	}
	r.Score += weightConfidence
	r.Reasons = append(r.Reasons, fmt.Sprintf("confidence mean %.2f spread %.2f", mean, spread))
}

func (v *Validator) checkExpectancy(c Candidate, r *models.ValidationReport) {
	acc := c.Perf.WinRate
	if c.Perf.TotalTrades < v.cfg.ColdStartTrades {
		acc = c.Decision.Confidence
	}
	expectancy := acc*c.Plan.ExpectedWin - (1-acc)*c.Plan.ExpectedLoss - c.Commission

	switch {
	case expectancy <= 0:
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("negative expectancy %.4f after commission", expectancy))
	case expectancy < c.Commission:
		// Edge exists but barely clears costs.
		r.Score += 0.5 * weightExpectancy
		r.Reasons = append(r.Reasons, fmt.Sprintf("thin expectancy %.4f", expectancy))
	default:
		r.Score += weightExpectancy
		r.Reasons = append(r.Reasons, fmt.Sprintf("expectancy %.4f", expectancy))
	}
}

func (v *Validator) checkWinRate(c Candidate, r *models.ValidationReport) {
	if c.Perf.TotalTrades < v.cfg.ColdStartTrades {
		r.Score += weightWinRate
		r.Reasons = append(r.Reasons, "win rate: cold start, neutral credit")
		return
	}
	switch {
	case c.Perf.WinRate < 0.35:
		r.Blockers = append(r.Blockers,
			fmt.Sprintf("win rate %.0f%% below hard floor 35%%", c.Perf.WinRate*100))
	case c.Perf.WinRate < 0.45:
		r.Score += 0.5 * weightWinRate
		r.Reasons = append(r.Reasons, fmt.Sprintf("marginal win rate %.0f%%", c.Perf.WinRate*100))
	default:
		r.Score += weightWinRate
		r.Reasons = append(r.Reasons, fmt.Sprintf("win rate %.0f%%", c.Perf.WinRate*100))
	}
}

func (v *Validator) checkRiskPlan(c Candidate, r *models.ValidationReport) {
	p := c.Plan
	if p.EntryPrice <= 0 || p.ExpectedLoss <= 0 {
		r.Blockers = append(r.Blockers, "risk plan missing entry or stop")
		return
	}
	ordered := (p.Side == models.SideLong && p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit) ||
		(p.Side == models.SideShort && p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss)
	if !ordered {
		r.Blockers = append(r.Blockers, "risk plan misordered for side "+string(p.Side))
		return
	}
	if p.WinLossRatio < v.cfg.MinWinLossRatio {
		r.Reasons = append(r.Reasons, fmt.Sprintf("reward:risk %.2f below preferred %.2f",
			p.WinLossRatio, v.cfg.MinWinLossRatio))
		return
	}
	r.Reasons = append(r.Reasons, fmt.Sprintf("reward:risk %.2f", p.WinLossRatio))
}
