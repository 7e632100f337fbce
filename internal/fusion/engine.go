package fusion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"AlphaFuse/internal/domain/models"
	applogger "AlphaFuse/pkg/logger"
)

// Gate rejection kinds. All of them resolve to action=SKIP, never to an
// error: a rejected cycle is a normal outcome, and the two most common ones
// (commission, consensus) must stay distinguishable in the reason text.
const (
	ReasonInsufficientSignals       = "insufficient_signals"
	ReasonNoConsensus               = "no_consensus"
	ReasonInsufficientInformation   = "insufficient_information"
	ReasonUnprofitableAfterCommission = "unprofitable_after_commission"
)

// Config holds the fusion gate thresholds. The exact coefficients are tuning
// parameters; tests pin their monotonic behavior, not the values.
type Config struct {
	MinSignals           int
	MinCoherence         float64
	MinInformationBits   float64
	MinProfitMargin      float64 // fractional, e.g. 0.005 = 0.5%
	BasePositionFraction float64
	MaxPositionFraction  float64
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinSignals:           3,
		MinCoherence:         0.60,
		MinInformationBits:   2.0,
		MinProfitMargin:      0.005,
		BasePositionFraction: 0.05,
		MaxPositionFraction:  0.25,
	}
}

// Engine combines a set of signals into one fused decision vector using
// priority weighting, a directional consensus gate, an information-content
// gate, and a commission-aware expectancy gate.
type Engine struct {
	cfg Config
	reg *Registry
	l   *applogger.Logger
}

// NewEngine creates a fusion engine.
func NewEngine(cfg Config, reg *Registry, l *applogger.Logger) *Engine {
	return &Engine{cfg: cfg, reg: reg, l: l}
}

// Fuse folds the signal set for one symbol into a single decision.
// Gate rejections return action=SKIP with the rejection reason first in
// Reasoning; error is reserved for unusable input.
func (e *Engine) Fuse(signals []models.Signal, symbol string, commissionRoundTrip float64) (models.FusedDecision, error) {
	if symbol == "" {
		return models.FusedDecision{}, fmt.Errorf("fuse: symbol is empty")
	}

	valid := make([]models.Signal, 0, len(signals))
	var dropped []string
	for _, s := range signals {
		if err := validateSignal(s); err != nil {
			dropped = append(dropped, fmt.Sprintf("dropped %s: %v", s.SystemID, err))
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) < e.cfg.MinSignals {
		return e.skip(symbol, ReasonInsufficientSignals,
			fmt.Sprintf("%d usable signals, need %d", len(valid), e.cfg.MinSignals), dropped), nil
	}

	ids := make([]string, len(valid))
	for i, s := range valid {
		ids[i] = s.SystemID
	}
	weights := e.reg.normalizedWeights(ids)

	var (
		confidence   float64
		dirScore     float64
		expectedMove float64
		reliability  float64
	)
	for i, s := range valid {
		w := weights[i]
		confidence += w * s.Confidence
		dirScore += w * float64(s.Direction) * s.Confidence
		expectedMove += w * s.Magnitude
		reliability += w * s.Reliability
	}

	coherence := directionCoherence(valid)
	info := informationContent(valid)

	reasoning := append([]string{}, dropped...)
	reasoning = append(reasoning,
		fmt.Sprintf("fused %d signals: confidence=%.3f reliability=%.3f move=%.4f", len(valid), confidence, reliability, expectedMove))

	if coherence < e.cfg.MinCoherence {
		return e.skip(symbol, ReasonNoConsensus,
			fmt.Sprintf("coherence %.3f below %.2f", coherence, e.cfg.MinCoherence), reasoning), nil
	}
	reasoning = append(reasoning, fmt.Sprintf("consensus gate passed: coherence=%.3f", coherence))

	if info < e.cfg.MinInformationBits {
		return e.skip(symbol, ReasonInsufficientInformation,
			fmt.Sprintf("information %.2f bits below %.2f", info, e.cfg.MinInformationBits), reasoning), nil
	}
	reasoning = append(reasoning, fmt.Sprintf("information gate passed: %.2f bits", info))

	netMove := expectedMove - commissionRoundTrip
	if netMove < e.cfg.MinProfitMargin {
		return e.skip(symbol, ReasonUnprofitableAfterCommission,
			fmt.Sprintf("net move %.4f after %.4f commission below %.4f margin", netMove, commissionRoundTrip, e.cfg.MinProfitMargin), reasoning), nil
	}
	reasoning = append(reasoning, fmt.Sprintf("commission gate passed: net move %.4f", netMove))

	action := models.ActionBuy
	if dirScore < 0 {
		action = models.ActionSell
	}

	d := models.FusedDecision{
		Symbol:           symbol,
		Action:           action,
		Confidence:       confidence,
		ExpectedMove:     expectedMove,
		PositionFraction: e.positionFraction(confidence, coherence),
		Coherence:        coherence,
		Information:      info,
		DominantSignals:  dominantSignals(valid, weights),
		Reasoning:        reasoning,
		Timestamp:        time.Now(),
	}

	if e.l != nil {
		e.l.Debug("fusion decision",
			applogger.String("symbol", symbol),
			applogger.String("action", string(d.Action)),
			applogger.Any("confidence", d.Confidence),
			applogger.Any("coherence", coherence),
			applogger.Any("information_bits", info),
		)
	}
	return d, nil
}

func (e *Engine) skip(symbol, kind, detail string, prior []string) models.FusedDecision {
	reasoning := append([]string{fmt.Sprintf("%s: %s", kind, detail)}, prior...)
	if e.l != nil {
		e.l.Debug("fusion skip",
			applogger.String("symbol", symbol),
			applogger.String("reason", kind),
			applogger.String("detail", detail),
		)
	}
	return models.FusedDecision{
		Symbol:    symbol,
		Action:    models.ActionSkip,
		Reasoning: reasoning,
		Timestamp: time.Now(),
	}
}

func (e *Engine) positionFraction(confidence, coherence float64) float64 {
	f := e.cfg.BasePositionFraction + (e.cfg.MaxPositionFraction-e.cfg.BasePositionFraction)*confidence*coherence
	if f > e.cfg.MaxPositionFraction {
		f = e.cfg.MaxPositionFraction
	}
	if f < 0 {
		f = 0
	}
	return f
}

func validateSignal(s models.Signal) error {
	if s.SystemID == "" {
		return fmt.Errorf("missing system id")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of range", s.Confidence)
	}
	if s.Reliability < 0 || s.Reliability > 1 {
		return fmt.Errorf("reliability %.3f out of range", s.Reliability)
	}
	if s.Magnitude < 0 {
		return fmt.Errorf("negative magnitude %.4f", s.Magnitude)
	}
	if s.Direction < models.DirectionShort || s.Direction > models.DirectionLong {
		return fmt.Errorf("direction %d out of range", s.Direction)
	}
	return nil
}

// directionCoherence measures directional agreement as the
// confidence-weighted share of the dominant direction. Unanimous sets score
// 1; an even split of equally confident signals scores 0.5. Flat signals
// count against both sides.
func directionCoherence(signals []models.Signal) float64 {
	var long, short, total float64
	for _, s := range signals {
		total += s.Confidence
		switch {
		case s.Direction > 0:
			long += s.Confidence
		case s.Direction < 0:
			short += s.Confidence
		}
	}
	if total <= 0 {
		return 0
	}
	return math.Max(long, short) / total
}

// informationContent is the Shannon surprisal carried by the ensemble,
// -sum(log2(confidence)), floored at 0.001 per term. Diverse confidences
// carry more bits than a handful of near-certain ones; the gate demands the
// ensemble as a whole encode enough independent evidence.
func informationContent(signals []models.Signal) float64 {
	bits := 0.0
	for _, s := range signals {
		c := s.Confidence
		if c < 0.001 {
			c = 0.001
		}
		bits += -math.Log2(c)
	}
	return bits
}

// dominantSignals orders system IDs by weighted confidence, strongest first.
func dominantSignals(signals []models.Signal, weights []float64) []string {
	type ranked struct {
		id    string
		score float64
	}
	rs := make([]ranked, len(signals))
	for i, s := range signals {
		rs[i] = ranked{id: s.SystemID, score: weights[i] * s.Confidence}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].score > rs[j].score })
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.id
	}
	return out
}
