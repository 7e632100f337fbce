package exitpolicy

import (
	"fmt"
	"math"
	"time"

	"AlphaFuse/internal/domain/models"
	applogger "AlphaFuse/pkg/logger"
)

// goldenRatio scales how fast holding time erodes the exit threshold.
const goldenRatio = 1.6180339887498949

// Config holds the exit policy parameters.
type Config struct {
	BaseThreshold float64 // exit threshold for a freshly opened position
	HardExitScore float64 // live score that forces an exit regardless of age
	TimeDiscount  float64 // how much time-confidence discounts the live score
}

func DefaultConfig() Config {
	return Config{
		BaseThreshold: 0.8,
		HardExitScore: 0.9,
		TimeDiscount:  0.5,
	}
}

// Controller decides when an open position should be closed. The exit
// threshold starts at BaseThreshold and decays with holding time on a
// logarithmic schedule, so stale positions need progressively weaker exit
// signals to be closed out.
type Controller struct {
	cfg Config
	l   *applogger.Logger
}

func NewController(cfg Config, l *applogger.Logger) *Controller {
	return &Controller{cfg: cfg, l: l}
}

// timeBoost grows from 1 at entry, logarithmically in hours held.
func timeBoost(held time.Duration) float64 {
	hours := held.Hours()
	if hours < 0 {
		hours = 0
	}
	return 1 + goldenRatio*math.Log(1+hours)
}

// Threshold is the exit threshold after the given holding time. It equals
// BaseThreshold at zero and strictly decreases as the position ages.
func (c *Controller) Threshold(held time.Duration) float64 {
	return c.cfg.BaseThreshold / math.Sqrt(timeBoost(held))
}

// TimeConfidence is how sure the policy is that the position has had its
// chance, in [0, 1). Zero at entry, approaching 1 for very old positions.
func (c *Controller) TimeConfidence(held time.Duration) float64 {
	return 1 - 1/timeBoost(held)
}

// Evaluate scores one open position. A breached hard stop or a live exit
// score at the hard limit closes unconditionally; otherwise the
// time-discounted score is compared against the decayed threshold.
func (c *Controller) Evaluate(pos models.Position, liveScore float64, price models.PricePoint, now time.Time) models.ExitDecision {
	d := models.ExitDecision{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Timestamp:  now,
	}

	if !price.Stale && pos.StopBreached(price.Price) {
		d.Exit = true
		d.Score = liveScore
		d.Reason = fmt.Sprintf("stop loss breached: price %.4f vs stop %.4f", price.Price, pos.StopLoss)
		c.log(pos, d)
		return d
	}

	if liveScore >= c.cfg.HardExitScore {
		d.Exit = true
		d.Score = liveScore
		d.Threshold = c.cfg.HardExitScore
		d.Reason = fmt.Sprintf("hard exit: live score %.3f at limit %.2f", liveScore, c.cfg.HardExitScore)
		c.log(pos, d)
		return d
	}

	held := now.Sub(pos.EntryTime)
	threshold := c.Threshold(held)
	adjusted := liveScore * (1 - c.TimeConfidence(held)*c.cfg.TimeDiscount)

	d.Score = adjusted
	d.Threshold = threshold
	if adjusted >= threshold {
		d.Exit = true
		d.Reason = fmt.Sprintf("time-weighted exit: score %.4f over threshold %.4f after %s",
			adjusted, threshold, held.Round(time.Minute))
	} else {
		d.Reason = fmt.Sprintf("holding: score %.4f under threshold %.4f", adjusted, threshold)
	}
	c.log(pos, d)
	return d
}

func (c *Controller) log(pos models.Position, d models.ExitDecision) {
	if c.l == nil {
		return
	}
	c.l.Debug("exit evaluation",
		applogger.String("position_id", pos.ID),
		applogger.String("symbol", pos.Symbol),
		applogger.Bool("exit", d.Exit),
		applogger.String("reason", d.Reason),
	)
}
