package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	dservice "AlphaFuse/internal/domain/service"
	"AlphaFuse/internal/fusion"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	"AlphaFuse/internal/riskreward"
	"AlphaFuse/internal/service/ratelimit"
	"AlphaFuse/internal/validation"
	applogger "AlphaFuse/pkg/logger"
)

// DecisionCycleConfig tunes the per-symbol evaluation loop.
type DecisionCycleConfig struct {
	Symbols            []string
	Interval           time.Duration
	CycleTimeout       time.Duration
	ProviderTimeout    time.Duration
	ProviderRatePerSec float64 // token refill per provider
	ProviderBurst      float64
	CommissionFraction float64 // round-trip cost as a fraction of notional
	CommissionUSD      float64 // round-trip cost at planned size, for expectancy
	MaxStaleReads      int     // consecutive stale price reads before a symbol skips
}

// DefaultDecisionCycleConfig returns the production cadence.
func DefaultDecisionCycleConfig() DecisionCycleConfig {
	return DecisionCycleConfig{
		Interval:           30 * time.Second,
		CycleTimeout:       5 * time.Second,
		ProviderTimeout:    2 * time.Second,
		ProviderRatePerSec: 5,
		ProviderBurst:      10,
		CommissionFraction: 0.0044,
		CommissionUSD:      0.25,
		MaxStaleReads:      3,
	}
}

// DecisionCycle runs the full entry pipeline for each symbol: provider
// fan-out, fusion, performance weighting, pair filtering, risk planning, and
// strict validation. Every verdict, including SKIP, is published to the sink
// so downstream consumers see the whole decision stream.
type DecisionCycle struct {
	cfg       DecisionCycleConfig
	providers []dservice.SignalProvider
	engine    *fusion.Engine
	weighter  *performance.Weighter
	filter    *pairfilter.Filter
	optimizer *riskreward.Optimizer
	validator *validation.Validator
	market    dservice.MarketData
	sink      drepo.DecisionSink
	metrics   drepo.Metrics
	limiter   *ratelimit.Limiter
	l         *applogger.Logger

	staleMu    sync.Mutex
	staleReads map[string]int
}

func NewDecisionCycle(
	cfg DecisionCycleConfig,
	providers []dservice.SignalProvider,
	engine *fusion.Engine,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	optimizer *riskreward.Optimizer,
	validator *validation.Validator,
	market dservice.MarketData,
	sink drepo.DecisionSink,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *DecisionCycle {
	return &DecisionCycle{
		cfg:        cfg,
		providers:  providers,
		engine:     engine,
		weighter:   weighter,
		filter:     filter,
		optimizer:  optimizer,
		validator:  validator,
		market:     market,
		sink:       sink,
		metrics:    metrics,
		limiter:    ratelimit.New(),
		l:          l,
		staleReads: make(map[string]int),
	}
}

// Run evaluates all configured symbols on the interval until ctx is done.
func (dc *DecisionCycle) Run(ctx context.Context) {
	ticker := time.NewTicker(dc.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range dc.cfg.Symbols {
				if _, err := dc.EvaluateSymbol(ctx, symbol); err != nil {
					dc.metrics.RecordError("decision_cycle")
					if dc.l != nil {
						dc.l.Error("decision cycle failed",
							applogger.String("symbol", symbol), applogger.Error(err))
					}
				}
			}
		}
	}
}

// EvaluateSymbol runs one full decision pass for a symbol and publishes the
// result. The returned envelope mirrors what was published.
func (dc *DecisionCycle) EvaluateSymbol(ctx context.Context, symbol string) (models.DecisionEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, dc.cfg.CycleTimeout)
	defer cancel()
	start := time.Now()

	signals := dc.collectSignals(ctx, symbol)
	if err := ctx.Err(); err != nil {
		// The cycle budget ran out mid-fan-out. Whatever providers made it
		// back is a partial roster, not this cycle's roster: abandon rather
		// than fuse it.
		return models.DecisionEnvelope{}, fmt.Errorf("cycle budget exhausted for %s: %w", symbol, err)
	}

	fused, err := dc.engine.Fuse(signals, symbol, dc.cfg.CommissionFraction)
	if err != nil {
		return models.DecisionEnvelope{}, fmt.Errorf("fuse %s: %w", symbol, err)
	}
	if fused.Action == models.ActionSkip {
		dc.metrics.RecordGateRejection("fusion")
		return dc.emit(ctx, models.DecisionEnvelope{Decision: fused}, start)
	}

	perf, err := dc.weighter.Metrics(ctx, symbol)
	if err != nil {
		return models.DecisionEnvelope{}, fmt.Errorf("performance %s: %w", symbol, err)
	}
	adjusted := dc.weighter.ApplyToConviction(fused.Confidence, perf)
	if adjusted <= 0 {
		dc.metrics.RecordGateRejection("performance")
		return dc.emit(ctx, dc.downgrade(fused,
			fmt.Sprintf("performance weight %.2f (%s) zeroed conviction %.3f",
				perf.PerformanceWeight, perf.Category, fused.Confidence)), start)
	}
	fused.Confidence = adjusted

	volatility := dc.market.Volatility(symbol)
	verdict, err := dc.filter.Evaluate(ctx, symbol, adjusted, volatility)
	if err != nil {
		return models.DecisionEnvelope{}, fmt.Errorf("pair filter %s: %w", symbol, err)
	}
	if !verdict.Allowed {
		dc.metrics.RecordGateRejection("pair_filter")
		d := fused
		for _, reason := range verdict.Reasons {
			d = dc.downgradeDecision(d, "pair filter: "+reason)
		}
		return dc.emit(ctx, models.DecisionEnvelope{Decision: d}, start)
	}

	price, err := dc.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return models.DecisionEnvelope{}, fmt.Errorf("market data %s: %w", symbol, err)
	}
	dc.metrics.RecordLastPrice(symbol, price.Price)
	if price.Stale {
		// A single stale tick still prices the entry off the last known
		// value; only a run of stale reads means the feed is dead.
		if n := dc.noteStale(symbol); n >= dc.cfg.MaxStaleReads {
			dc.metrics.RecordGateRejection("stale_price")
			return dc.emit(ctx, dc.downgrade(fused,
				fmt.Sprintf("price stale for %d consecutive reads (limit %d), last tick %s",
					n, dc.cfg.MaxStaleReads, price.AsOf.Format(time.RFC3339))), start)
		}
	} else {
		dc.resetStale(symbol)
	}

	side := models.SideLong
	if fused.Action == models.ActionSell {
		side = models.SideShort
	}
	plan, err := dc.optimizer.Plan(symbol, side, price.Price, adjusted, volatility, perf)
	if err != nil {
		return models.DecisionEnvelope{}, fmt.Errorf("risk plan %s: %w", symbol, err)
	}

	actions := validation.ActionsFromSignals(signals, validation.DefaultConfig().MinActionConfidence)
	report := dc.validator.Validate(validation.Candidate{
		Decision:   fused,
		Plan:       plan,
		Perf:       perf,
		Signals:    signals,
		Actions:    actions,
		Commission: dc.cfg.CommissionUSD,
	})
	if !report.Passed {
		dc.metrics.RecordGateRejection("validation")
		d := fused
		for _, b := range report.Blockers {
			d = dc.downgradeDecision(d, "validator: "+b)
		}
		if len(report.Blockers) == 0 {
			d = dc.downgradeDecision(d, fmt.Sprintf("validator score %.2f below bar", report.Score))
		}
		return dc.emit(ctx, models.DecisionEnvelope{Decision: d}, start)
	}
	dc.validator.RecordAccepted(symbol, time.Now())

	fused.Reasoning = append(fused.Reasoning, report.Reasons...)
	return dc.emit(ctx, models.DecisionEnvelope{Decision: fused, Risk: &plan}, start)
}

// collectSignals queries every provider concurrently with a per-provider
// timeout. Failed, rate-limited, or slow providers drop out of this cycle.
func (dc *DecisionCycle) collectSignals(ctx context.Context, symbol string) []models.Signal {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		signals []models.Signal
	)
	for _, p := range dc.providers {
		if !dc.limiter.Allow(p.SystemID(), dc.cfg.ProviderBurst, dc.cfg.ProviderRatePerSec) {
			dc.metrics.RecordError("provider_rate_limited")
			continue
		}
		wg.Add(1)
		go func(p dservice.SignalProvider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, dc.cfg.ProviderTimeout)
			defer cancel()
			s, err := p.GetSignal(pctx, symbol)
			if err != nil {
				dc.metrics.RecordError("provider_" + p.SystemID())
				if dc.l != nil {
					dc.l.Warn("signal provider failed",
						applogger.String("system_id", p.SystemID()),
						applogger.String("symbol", symbol),
						applogger.Error(err))
				}
				return
			}
			mu.Lock()
			signals = append(signals, s)
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return signals
}

func (dc *DecisionCycle) noteStale(symbol string) int {
	dc.staleMu.Lock()
	defer dc.staleMu.Unlock()
	dc.staleReads[symbol]++
	return dc.staleReads[symbol]
}

func (dc *DecisionCycle) resetStale(symbol string) {
	dc.staleMu.Lock()
	delete(dc.staleReads, symbol)
	dc.staleMu.Unlock()
}

func (dc *DecisionCycle) emit(ctx context.Context, env models.DecisionEnvelope, start time.Time) (models.DecisionEnvelope, error) {
	if err := dc.sink.PublishDecision(ctx, env); err != nil {
		dc.metrics.RecordError("sink_publish")
		return env, fmt.Errorf("publish decision %s: %w", env.Decision.Symbol, err)
	}
	dc.metrics.RecordDecision(env.Decision.Symbol, string(env.Decision.Action))
	dc.metrics.RecordLatency("decision_cycle", time.Since(start).Seconds())
	return env, nil
}

func (dc *DecisionCycle) downgrade(d models.FusedDecision, reason string) models.DecisionEnvelope {
	return models.DecisionEnvelope{Decision: dc.downgradeDecision(d, reason)}
}

func (dc *DecisionCycle) downgradeDecision(d models.FusedDecision, reason string) models.FusedDecision {
	d.Action = models.ActionSkip
	d.Reasoning = append([]string{reason}, d.Reasoning...)
	return d
}
