package pairfilter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"AlphaFuse/internal/domain/models"
	"AlphaFuse/internal/domain/repository"
	"AlphaFuse/internal/services/stats"
	applogger "AlphaFuse/pkg/logger"
)

// Config tunes the filter's history depth and cool-off base period. The
// cold-start bar itself is not configured here: it comes from the derived
// criteria (MinTrades), like every other threshold.
type Config struct {
	HistoryLimit int
	CoolOffBase  time.Duration
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit: 200,
		CoolOffBase:  30 * time.Minute,
	}
}

// Verdict is the filter's answer for one symbol and cycle.
type Verdict struct {
	Symbol       string
	Allowed      bool
	Reasons      []string
	Criteria     models.FilterCriteria
	CoolOffUntil time.Time
}

// Filter blocks symbols whose realized record fails the adaptive criteria.
// A loss streak at or past the limit puts the symbol into a cool-off window;
// the window scales up with decision confidence and down with volatility.
type Filter struct {
	history repository.TradeHistory
	cfg     Config
	l       *applogger.Logger

	mu      sync.Mutex
	coolOff map[string]time.Time
	now     func() time.Time
}

func NewFilter(history repository.TradeHistory, cfg Config, l *applogger.Logger) *Filter {
	return &Filter{
		history: history,
		cfg:     cfg,
		l:       l,
		coolOff: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Evaluate decides whether the symbol may trade this cycle. A history backend
// failure blocks the symbol: trading blind past the filter is worse than
// missing a cycle.
func (f *Filter) Evaluate(ctx context.Context, symbol string, confidence, volatility float64) (Verdict, error) {
	criteria := AdaptiveCriteria(confidence, volatility)
	v := Verdict{Symbol: symbol, Criteria: criteria}

	if until, active := f.activeCoolOff(symbol); active {
		v.CoolOffUntil = until
		v.Reasons = append(v.Reasons, fmt.Sprintf("in cool-off until %s", until.Format(time.RFC3339)))
		return v, nil
	}

	trades, err := f.history.ClosedTrades(ctx, symbol, f.cfg.HistoryLimit)
	if err != nil {
		v.Reasons = append(v.Reasons, "trade history unavailable")
		return v, fmt.Errorf("pair filter %s: %w", symbol, err)
	}

	winRate := stats.WinRate(trades)
	totalPnL := stats.TotalPnL(trades)
	streak := stats.ConsecutiveLosses(trades)

	// A symbol that has never won is blocked even inside the cold-start
	// window, once there is a minimal sample to judge it on.
	zeroSample := criteria.MinTrades / 2
	if len(trades) >= zeroSample && winRate == 0 {
		until := f.startCoolOff(symbol, confidence, volatility)
		v.CoolOffUntil = until
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("win rate 0%% over %d trades (sample %d), cooling off until %s",
				len(trades), zeroSample, until.Format(time.RFC3339)))
		return v, nil
	}

	if len(trades) < criteria.MinTrades {
		v.Allowed = true
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("cold start: %d trades on record (min %d)", len(trades), criteria.MinTrades))
		return v, nil
	}

	if winRate < criteria.MinWinRate {
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("win rate %.0f%% below required %.0f%%", winRate*100, criteria.MinWinRate*100))
	}
	if totalPnL < criteria.MinTotalPnL {
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("total PnL %.2f below floor %.2f", totalPnL, criteria.MinTotalPnL))
	}
	if streak >= criteria.MaxConsecutiveLosses {
		until := f.startCoolOff(symbol, confidence, volatility)
		v.CoolOffUntil = until
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("%d consecutive losses at limit %d, cooling off until %s",
				streak, criteria.MaxConsecutiveLosses, until.Format(time.RFC3339)))
	}

	v.Allowed = len(v.Reasons) == 0
	if !v.Allowed && f.l != nil {
		f.l.Info("pair blocked",
			applogger.String("symbol", symbol),
			applogger.Any("reasons", v.Reasons),
		)
	}
	return v, nil
}

// Blocked lists symbols currently inside a cool-off window, sorted.
func (f *Filter) Blocked() map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	out := make(map[string]time.Time, len(f.coolOff))
	for sym, until := range f.coolOff {
		if now.Before(until) {
			out[sym] = until
		} else {
			delete(f.coolOff, sym)
		}
	}
	return out
}

// BlockedSymbols returns the blocked symbol names in sorted order.
func (f *Filter) BlockedSymbols() []string {
	m := f.Blocked()
	out := make([]string, 0, len(m))
	for sym := range m {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ClearCoolOff removes any cool-off for the symbol, typically after a
// winning fill resets the streak.
func (f *Filter) ClearCoolOff(symbol string) {
	f.mu.Lock()
	delete(f.coolOff, symbol)
	f.mu.Unlock()
}

func (f *Filter) activeCoolOff(symbol string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.coolOff[symbol]
	if !ok {
		return time.Time{}, false
	}
	if f.now().After(until) {
		delete(f.coolOff, symbol)
		return time.Time{}, false
	}
	return until, true
}

func (f *Filter) startCoolOff(symbol string, confidence, volatility float64) time.Time {
	d := time.Duration(float64(f.cfg.CoolOffBase) * (1 + confidence) / (1 + volatility))
	until := f.now().Add(d)
	f.mu.Lock()
	f.coolOff[symbol] = until
	f.mu.Unlock()
	return until
}
