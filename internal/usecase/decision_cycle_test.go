package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlphaFuse/internal/domain/models"
	dservice "AlphaFuse/internal/domain/service"
	"AlphaFuse/internal/exitpolicy"
	"AlphaFuse/internal/fusion"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	"AlphaFuse/internal/riskreward"
	"AlphaFuse/internal/validation"
	"AlphaFuse/pkg/cache"
)

type fakeProvider struct {
	id     string
	signal models.Signal
	err    error
	delay  time.Duration
}

func (f *fakeProvider) SystemID() string { return f.id }

func (f *fakeProvider) GetSignal(ctx context.Context, symbol string) (models.Signal, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return models.Signal{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return models.Signal{}, f.err
	}
	s := f.signal
	s.SystemID = f.id
	s.Symbol = symbol
	s.Timestamp = time.Now()
	return s, nil
}

type fakeMarket struct {
	price      float64
	stale      bool
	err        error
	volatility float64
}

func (f *fakeMarket) CurrentPrice(_ context.Context, symbol string) (models.PricePoint, error) {
	if f.err != nil {
		return models.PricePoint{}, f.err
	}
	return models.PricePoint{Symbol: symbol, Price: f.price, Stale: f.stale, AsOf: time.Now()}, nil
}

func (f *fakeMarket) Volatility(string) float64 { return f.volatility }

type fakeHistory struct {
	mu     sync.Mutex
	trades map[string][]models.ClosedTrade
	err    error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{trades: make(map[string][]models.ClosedTrade)}
}

func (f *fakeHistory) ClosedTrades(_ context.Context, symbol string, _ int) ([]models.ClosedTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.trades[symbol], nil
}

func (f *fakeHistory) RecordClosedTrade(_ context.Context, t models.ClosedTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.trades[t.Symbol] = append(f.trades[t.Symbol], t)
	return nil
}

func (f *fakeHistory) Health(context.Context) error { return nil }
func (f *fakeHistory) Close() error                 { return nil }

type fakeSink struct {
	mu        sync.Mutex
	decisions []models.DecisionEnvelope
	exits     []models.ExitDecision
	err       error
}

func (f *fakeSink) PublishDecision(_ context.Context, env models.DecisionEnvelope) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.decisions = append(f.decisions, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) PublishExit(_ context.Context, d models.ExitDecision) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.exits = append(f.exits, d)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) last(t *testing.T) models.DecisionEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.decisions) == 0 {
		t.Fatal("no decision published")
	}
	return f.decisions[len(f.decisions)-1]
}

type fakeMetrics struct {
	mu         sync.Mutex
	rejections map[string]int
	errors     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rejections: make(map[string]int), errors: make(map[string]int)}
}

func (f *fakeMetrics) RecordDecision(string, string) {}
func (f *fakeMetrics) RecordGateRejection(gate string) {
	f.mu.Lock()
	f.rejections[gate]++
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	f.errors[kind]++
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordLastPrice(string, float64) {}
func (f *fakeMetrics) RecordLatency(string, float64)   {}
func (f *fakeMetrics) RecordOpenPositions(int)         {}

type fakePositions struct {
	mu     sync.Mutex
	byID   map[string]models.Position
	closed map[string]string
	err    error
}

func newFakePositions(ps ...models.Position) *fakePositions {
	f := &fakePositions{byID: make(map[string]models.Position), closed: make(map[string]string)}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakePositions) Open(context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Position
	for _, p := range f.byID {
		if p.Status == models.PositionOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositions) Get(_ context.Context, id string) (models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return models.Position{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakePositions) Put(_ context.Context, p models.Position) error {
	f.mu.Lock()
	f.byID[p.ID] = p
	f.mu.Unlock()
	return nil
}

func (f *fakePositions) MarkClosed(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return errors.New("not found")
	}
	p.Status = models.PositionClosed
	p.ExitReason = reason
	f.byID[id] = p
	f.closed[id] = reason
	return nil
}

func strongLong(conf, mag float64) models.Signal {
	return models.Signal{Confidence: conf, Direction: models.DirectionLong, Magnitude: mag, Reliability: 0.9}
}

func asProviders(ps []*fakeProvider) []dservice.SignalProvider {
	out := make([]dservice.SignalProvider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func testProviders() []*fakeProvider {
	return []*fakeProvider{
		{id: "gpu_neural", signal: strongLong(0.90, 0.012)},
		{id: "tensor_grid", signal: strongLong(0.85, 0.011)},
		{id: "rsi_basic", signal: models.Signal{Confidence: 0.30, Direction: models.DirectionShort, Magnitude: 0.004, Reliability: 0.5}},
	}
}

type cycleDeps struct {
	history *fakeHistory
	market  *fakeMarket
	sink    *fakeSink
	metrics *fakeMetrics
}

func newDecisionCycle(t *testing.T, providers []*fakeProvider, deps cycleDeps) *DecisionCycle {
	t.Helper()
	reg := fusion.NewRegistry(map[string]fusion.ProviderClass{
		"gpu_neural":  fusion.ClassNeural,
		"tensor_grid": fusion.ClassMultiDimensional,
		"rsi_basic":   fusion.ClassTechnical,
	})
	weighter := performance.NewWeighter(deps.history, cache.NewMemoryCache(), performance.DefaultConfig(), nil)
	return NewDecisionCycle(
		DefaultDecisionCycleConfig(),
		asProviders(providers),
		fusion.NewEngine(fusion.DefaultConfig(), reg, nil),
		weighter,
		pairfilter.NewFilter(deps.history, pairfilter.DefaultConfig(), nil),
		riskreward.NewOptimizer(riskreward.DefaultConfig(), nil),
		validation.NewValidator(validation.DefaultConfig(), nil),
		deps.market,
		deps.sink,
		deps.metrics,
		nil,
	)
}

func defaultDeps() cycleDeps {
	return cycleDeps{
		history: newFakeHistory(),
		market:  &fakeMarket{price: 50_000, volatility: 0.2},
		sink:    &fakeSink{},
		metrics: newFakeMetrics(),
	}
}

func TestEvaluateSymbolHappyPathEmitsBuy(t *testing.T) {
	deps := defaultDeps()
	dc := newDecisionCycle(t, testProviders(), deps)

	env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("EvaluateSymbol: %v", err)
	}
	if env.Decision.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY (reasoning: %v)", env.Decision.Action, env.Decision.Reasoning)
	}
	if env.Risk == nil {
		t.Fatal("BUY decision must carry a risk plan")
	}
	if env.Risk.Side != models.SideLong {
		t.Fatalf("risk side = %s, want LONG", env.Risk.Side)
	}
	published := deps.sink.last(t)
	if published.Decision.Action != models.ActionBuy {
		t.Fatalf("published action = %s, want BUY", published.Decision.Action)
	}
}

func TestEvaluateSymbolProviderFailureDegrades(t *testing.T) {
	providers := testProviders()
	providers[1].err = errors.New("upstream 503")
	deps := defaultDeps()
	dc := newDecisionCycle(t, providers, deps)

	env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("EvaluateSymbol: %v", err)
	}
	if env.Decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want SKIP with only 2 providers answering", env.Decision.Action)
	}
	if deps.metrics.rejections["fusion"] == 0 {
		t.Fatal("expected a fusion gate rejection")
	}
	// The skip verdict is still published.
	if deps.sink.last(t).Decision.Action != models.ActionSkip {
		t.Fatal("skip verdict not published")
	}
}

func TestEvaluateSymbolSlowProviderDropped(t *testing.T) {
	providers := testProviders()
	providers[2].delay = 5 * time.Second
	deps := defaultDeps()
	dc := newDecisionCycle(t, providers, deps)

	env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("EvaluateSymbol: %v", err)
	}
	if env.Decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want SKIP after dropping the slow provider", env.Decision.Action)
	}
}

// A stale feed prices the entry off the last known tick; only a run of
// consecutive stale reads kills the symbol for the cycle, and a single fresh
// read resets the run.
func TestEvaluateSymbolStalePriceSkipsAfterRun(t *testing.T) {
	deps := defaultDeps()
	deps.market.stale = true
	reg := fusion.NewRegistry(map[string]fusion.ProviderClass{
		"gpu_neural":  fusion.ClassNeural,
		"tensor_grid": fusion.ClassMultiDimensional,
		"rsi_basic":   fusion.ClassTechnical,
	})
	weighter := performance.NewWeighter(deps.history, cache.NewMemoryCache(), performance.DefaultConfig(), nil)
	vcfg := validation.DefaultConfig()
	vcfg.MaxTradesPerHour = 100 // back-to-back evaluations in this test
	vcfg.MinInterval = 0
	dc := NewDecisionCycle(
		DefaultDecisionCycleConfig(),
		asProviders(testProviders()),
		fusion.NewEngine(fusion.DefaultConfig(), reg, nil),
		weighter,
		pairfilter.NewFilter(deps.history, pairfilter.DefaultConfig(), nil),
		riskreward.NewOptimizer(riskreward.DefaultConfig(), nil),
		validation.NewValidator(vcfg, nil),
		deps.market,
		deps.sink,
		deps.metrics,
		nil,
	)

	for i := 1; i < dc.cfg.MaxStaleReads; i++ {
		env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
		if err != nil {
			t.Fatalf("stale read %d: %v", i, err)
		}
		if env.Decision.Action != models.ActionBuy {
			t.Fatalf("stale read %d: action = %s, want BUY on last known price (reasoning: %v)",
				i, env.Decision.Action, env.Decision.Reasoning)
		}
	}
	if deps.metrics.rejections["stale_price"] != 0 {
		t.Fatal("stale_price rejection before the run completed")
	}

	env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("EvaluateSymbol: %v", err)
	}
	if env.Decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want SKIP after %d consecutive stale reads", env.Decision.Action, dc.cfg.MaxStaleReads)
	}
	if deps.metrics.rejections["stale_price"] != 1 {
		t.Fatalf("stale_price rejections = %d, want 1", deps.metrics.rejections["stale_price"])
	}

	// One fresh read resets the run.
	deps.market.stale = false
	if env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT"); err != nil || env.Decision.Action != models.ActionBuy {
		t.Fatalf("fresh read: action = %s, err = %v, want BUY", env.Decision.Action, err)
	}
	deps.market.stale = true
	if env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT"); err != nil || env.Decision.Action != models.ActionBuy {
		t.Fatalf("first stale read after reset: action = %s, err = %v, want BUY", env.Decision.Action, err)
	}
}

// An exhausted cycle budget abandons the symbol outright instead of fusing
// whatever subset of providers happened to answer in time.
func TestEvaluateSymbolBudgetExhaustedAbandons(t *testing.T) {
	providers := testProviders()
	for _, p := range providers {
		p.delay = 200 * time.Millisecond
	}
	deps := defaultDeps()
	cfg := DefaultDecisionCycleConfig()
	cfg.CycleTimeout = 20 * time.Millisecond
	reg := fusion.NewRegistry(map[string]fusion.ProviderClass{
		"gpu_neural":  fusion.ClassNeural,
		"tensor_grid": fusion.ClassMultiDimensional,
		"rsi_basic":   fusion.ClassTechnical,
	})
	weighter := performance.NewWeighter(deps.history, cache.NewMemoryCache(), performance.DefaultConfig(), nil)
	dc := NewDecisionCycle(
		cfg,
		asProviders(providers),
		fusion.NewEngine(fusion.DefaultConfig(), reg, nil),
		weighter,
		pairfilter.NewFilter(deps.history, pairfilter.DefaultConfig(), nil),
		riskreward.NewOptimizer(riskreward.DefaultConfig(), nil),
		validation.NewValidator(validation.DefaultConfig(), nil),
		deps.market,
		deps.sink,
		deps.metrics,
		nil,
	)

	if _, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected an error when the cycle budget expires mid-fan-out")
	}
	deps.sink.mu.Lock()
	published := len(deps.sink.decisions)
	deps.sink.mu.Unlock()
	if published != 0 {
		t.Fatalf("published %d decisions on an exhausted budget, want none", published)
	}
}

func TestEvaluateSymbolBlockedPairSkips(t *testing.T) {
	deps := defaultDeps()
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 6; i++ {
		_ = deps.history.RecordClosedTrade(context.Background(), models.ClosedTrade{
			Symbol: "BTCUSDT", PnL: -1, Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}
	dc := newDecisionCycle(t, testProviders(), deps)

	env, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("EvaluateSymbol: %v", err)
	}
	if env.Decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want SKIP for an all-losing symbol", env.Decision.Action)
	}
}

func TestEvaluateSymbolSinkFailureSurfaces(t *testing.T) {
	deps := defaultDeps()
	deps.sink.err = errors.New("kafka down")
	dc := newDecisionCycle(t, testProviders(), deps)

	if _, err := dc.EvaluateSymbol(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error when the sink is down")
	}
}

func TestExitCycleSweepClosesAgedPosition(t *testing.T) {
	now := time.Now()
	positions := newFakePositions(models.Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		Quantity:   0.5,
		EntryPrice: 50_000,
		EntryTime:  now.Add(-6 * time.Hour),
		StopLoss:   48_000,
		Status:     models.PositionOpen,
	})
	// All providers now argue against the long.
	providers := []*fakeProvider{
		{id: "gpu_neural", signal: models.Signal{Confidence: 0.85, Direction: models.DirectionShort, Magnitude: 0.01, Reliability: 0.9}},
		{id: "tensor_grid", signal: models.Signal{Confidence: 0.80, Direction: models.DirectionShort, Magnitude: 0.01, Reliability: 0.9}},
		{id: "rsi_basic", signal: models.Signal{Confidence: 0.60, Direction: models.DirectionShort, Magnitude: 0.005, Reliability: 0.5}},
	}
	reg := fusion.NewRegistry(map[string]fusion.ProviderClass{
		"gpu_neural":  fusion.ClassNeural,
		"tensor_grid": fusion.ClassMultiDimensional,
		"rsi_basic":   fusion.ClassTechnical,
	})
	sink := &fakeSink{}
	ec := NewExitCycle(
		DefaultExitCycleConfig(),
		asProviders(providers),
		reg,
		exitpolicy.NewController(exitpolicy.DefaultConfig(), nil),
		positions,
		&fakeMarket{price: 50_100},
		sink,
		newFakeMetrics(),
		nil,
	)

	if err := ec.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(sink.exits) != 1 {
		t.Fatalf("exits published = %d, want 1", len(sink.exits))
	}
	if reason, ok := positions.closed["pos-1"]; !ok || reason == "" {
		t.Fatalf("position not closed with a reason: %+v", positions.closed)
	}
}

func TestExitCycleHoldsFreshAlignedPosition(t *testing.T) {
	now := time.Now()
	positions := newFakePositions(models.Position{
		ID:         "pos-2",
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		Quantity:   0.5,
		EntryPrice: 50_000,
		EntryTime:  now.Add(-time.Minute),
		StopLoss:   48_000,
		Status:     models.PositionOpen,
	})
	providers := testProviders() // mostly long, aligned with the position
	reg := fusion.NewRegistry(map[string]fusion.ProviderClass{
		"gpu_neural":  fusion.ClassNeural,
		"tensor_grid": fusion.ClassMultiDimensional,
		"rsi_basic":   fusion.ClassTechnical,
	})
	sink := &fakeSink{}
	ec := NewExitCycle(
		DefaultExitCycleConfig(),
		asProviders(providers),
		reg,
		exitpolicy.NewController(exitpolicy.DefaultConfig(), nil),
		positions,
		&fakeMarket{price: 50_200},
		sink,
		newFakeMetrics(),
		nil,
	)

	if err := ec.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(sink.exits) != 0 {
		t.Fatalf("exits published = %d, want 0: %+v", len(sink.exits), sink.exits)
	}
}
