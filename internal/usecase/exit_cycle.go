package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	dservice "AlphaFuse/internal/domain/service"
	"AlphaFuse/internal/exitpolicy"
	"AlphaFuse/internal/fusion"
	applogger "AlphaFuse/pkg/logger"
)

// ExitCycleConfig tunes the open-position sweep.
type ExitCycleConfig struct {
	Interval        time.Duration
	SweepTimeout    time.Duration
	ProviderTimeout time.Duration
	MaxConcurrent   int
}

func DefaultExitCycleConfig() ExitCycleConfig {
	return ExitCycleConfig{
		Interval:        15 * time.Second,
		SweepTimeout:    10 * time.Second,
		ProviderTimeout: 2 * time.Second,
		MaxConcurrent:   8,
	}
}

// ExitCycle sweeps open positions, scores each against the live signal set,
// and publishes exit decisions. Positions are evaluated concurrently and
// independently: one symbol's provider trouble never stalls the rest.
type ExitCycle struct {
	cfg        ExitCycleConfig
	providers  []dservice.SignalProvider
	registry   *fusion.Registry
	controller *exitpolicy.Controller
	positions  drepo.PositionStore
	market     dservice.MarketData
	sink       drepo.DecisionSink
	metrics    drepo.Metrics
	l          *applogger.Logger
}

func NewExitCycle(
	cfg ExitCycleConfig,
	providers []dservice.SignalProvider,
	registry *fusion.Registry,
	controller *exitpolicy.Controller,
	positions drepo.PositionStore,
	market dservice.MarketData,
	sink drepo.DecisionSink,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *ExitCycle {
	return &ExitCycle{
		cfg:        cfg,
		providers:  providers,
		registry:   registry,
		controller: controller,
		positions:  positions,
		market:     market,
		sink:       sink,
		metrics:    metrics,
		l:          l,
	}
}

// Run sweeps on the interval until ctx is done.
func (ec *ExitCycle) Run(ctx context.Context) {
	ticker := time.NewTicker(ec.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ec.Sweep(ctx); err != nil {
				ec.metrics.RecordError("exit_cycle")
				if ec.l != nil {
					ec.l.Error("exit sweep failed", applogger.Error(err))
				}
			}
		}
	}
}

// Sweep evaluates every open position once and returns the decisions made.
func (ec *ExitCycle) Sweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ec.cfg.SweepTimeout)
	defer cancel()

	open, err := ec.positions.Open(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	ec.metrics.RecordOpenPositions(len(open))
	if len(open) == 0 {
		return nil
	}

	sem := make(chan struct{}, ec.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, pos := range open {
		wg.Add(1)
		sem <- struct{}{}
		go func(pos models.Position) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ec.evaluate(ctx, pos); err != nil {
				ec.metrics.RecordError("exit_evaluate")
				if ec.l != nil {
					ec.l.Warn("exit evaluation failed",
						applogger.String("position_id", pos.ID),
						applogger.String("symbol", pos.Symbol),
						applogger.Error(err))
				}
			}
		}(pos)
	}
	wg.Wait()
	return nil
}

func (ec *ExitCycle) evaluate(ctx context.Context, pos models.Position) error {
	price, err := ec.market.CurrentPrice(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("price %s: %w", pos.Symbol, err)
	}

	signals := ec.collectSignals(ctx, pos.Symbol)
	liveScore := fusion.ExitScore(ec.registry, signals, pos.Side)

	decision := ec.controller.Evaluate(pos, liveScore, price, time.Now())
	if !decision.Exit {
		return nil
	}

	if err := ec.sink.PublishExit(ctx, decision); err != nil {
		return fmt.Errorf("publish exit %s: %w", pos.ID, err)
	}
	if err := ec.positions.MarkClosed(ctx, pos.ID, decision.Reason); err != nil {
		return fmt.Errorf("mark closed %s: %w", pos.ID, err)
	}
	if ec.l != nil {
		ec.l.Info("position exit",
			applogger.String("position_id", pos.ID),
			applogger.String("symbol", pos.Symbol),
			applogger.String("reason", decision.Reason))
	}
	return nil
}

func (ec *ExitCycle) collectSignals(ctx context.Context, symbol string) []models.Signal {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		signals []models.Signal
	)
	for _, p := range ec.providers {
		wg.Add(1)
		go func(p dservice.SignalProvider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, ec.cfg.ProviderTimeout)
			defer cancel()
			s, err := p.GetSignal(pctx, symbol)
			if err != nil {
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
