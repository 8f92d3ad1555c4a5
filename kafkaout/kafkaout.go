// Package kafkaout publishes enforcement actions onto a Kafka topic for
// downstream consumers (dashboards, ticketing, other services) that want
// the enforcement stream without tailing the sink's JSONL files.
package kafkaout

import (
	"context"
	"encoding/json"

	"github.com/gatewatch/gatewatch/events"
	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"
)

// Writer publishes enforcement actions to a Kafka topic, keyed by account
// id so a consumer's per-partition ordering matches per-account ordering.
type Writer struct {
	w   *kafka.Writer
	log zerolog.Logger
}

// NewWriter builds a Writer over brokers/topic.
func NewWriter(brokers []string, topic string, log zerolog.Logger) *Writer {
	return &Writer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 0,
			RequiredAcks: kafka.RequireOne,
		},
		log: log,
	}
}

// Publish writes action to the topic. Errors are logged and returned; the
// caller decides whether a publish failure should block enforcement
// (it should not — Kafka output is best-effort telemetry, not the
// authoritative enforcement path).
func (w *Writer) Publish(ctx context.Context, action events.EnforcementAction) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(action.AccountID),
		Value: payload,
	}
	if err := w.w.WriteMessages(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("account_id", action.AccountID).Msg("failed to publish enforcement action to kafka")
		return err
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (w *Writer) Close() error {
	return w.w.Close()
}
