package repository

import (
	"context"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	pkgkafka "AlphaFuse/pkg/kafka"
)

// KafkaDecisionSink publishes decisions and exit verdicts for the execution
// side to consume. Messages are keyed by symbol so per-symbol ordering holds.
type KafkaDecisionSink struct {
	producer      *pkgkafka.Producer
	decisionTopic string
	exitTopic     string
}

func NewKafkaDecisionSink(producer *pkgkafka.Producer, decisionTopic, exitTopic string) drepo.DecisionSink {
	return &KafkaDecisionSink{
		producer:      producer,
		decisionTopic: decisionTopic,
		exitTopic:     exitTopic,
	}
}

func (s *KafkaDecisionSink) PublishDecision(ctx context.Context, env models.DecisionEnvelope) error {
	d := env.Decision
	payload := map[string]interface{}{
		"symbol":            d.Symbol,
		"action":            string(d.Action),
		"confidence":        d.Confidence,
		"expected_move":     d.ExpectedMove,
		"position_fraction": d.PositionFraction,
		"coherence":         d.Coherence,
		"information_bits":  d.Information,
		"dominant_signals":  d.DominantSignals,
		"reasoning":         d.Reasoning,
		"ts":                d.Timestamp.Unix(),
	}
	if env.Risk != nil {
		payload["risk"] = map[string]interface{}{
			"side":           string(env.Risk.Side),
			"entry_price":    env.Risk.EntryPrice,
			"stop_loss":      env.Risk.StopLoss,
			"take_profit":    env.Risk.TakeProfit,
			"win_loss_ratio": env.Risk.WinLossRatio,
			"risk_level":     string(env.Risk.RiskLevel),
		}
	}
	if err := s.producer.Publish(ctx, s.decisionTopic, []byte(d.Symbol), payload); err != nil {
		return fmt.Errorf("publish decision: %w", err)
	}
	return nil
}

func (s *KafkaDecisionSink) PublishExit(ctx context.Context, d models.ExitDecision) error {
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := map[string]interface{}{
		"position_id": d.PositionID,
		"symbol":      d.Symbol,
		"exit":        d.Exit,
		"reason":      d.Reason,
		"score":       d.Score,
		"threshold":   d.Threshold,
		"ts":          ts.Unix(),
	}
	if err := s.producer.Publish(ctx, s.exitTopic, []byte(d.Symbol), payload); err != nil {
		return fmt.Errorf("publish exit: %w", err)
	}
	return nil
}

func (s *KafkaDecisionSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
