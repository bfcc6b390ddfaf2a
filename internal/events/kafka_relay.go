package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
)

// KafkaRelay mirrors dispatched envelopes to a Kafka topic so out-of-process
// consumers (email, SMS, audit) can react to lifecycle changes.
type KafkaRelay struct {
	writer *kafka.Writer
	logger *zap.Logger
}

type relayRecord struct {
	EventID     string   `json:"eventId"`
	ComplaintID string   `json:"complaintId"`
	Envelope    Envelope `json:"envelope"`
	Targets     []Target `json:"targets"`
}

// NewKafkaRelay returns nil when no brokers are configured.
func NewKafkaRelay(cfg config.KafkaConfig, logger *zap.Logger) *KafkaRelay {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaRelay{writer: newRelayWriter(cfg, logger), logger: logger}
}

// newRelayWriter builds an async writer: WriteMessages only enqueues, so the
// dispatcher never waits on the broker. Delivery failures surface through
// Completion.
func newRelayWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   relayCompletion(logger),
	}
}

func relayCompletion(logger *zap.Logger) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(messages))
		for _, m := range messages {
			keys = append(keys, string(m.Key))
		}
		logger.Warn("kafka relay delivery failed",
			zap.Int("messages", len(messages)),
			zap.Strings("complaint_ids", keys),
			zap.Error(err))
	}
}

// Register subscribes the relay to every dispatched event type.
func (r *KafkaRelay) Register(d Dispatcher) {
	if r == nil || d == nil {
		return
	}
	SubscribeAll(d, r.handle)
}

func (r *KafkaRelay) handle(ctx context.Context, event Event) error {
	msg, err := relayMessage(event)
	if err != nil {
		return err
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka relay: %w", err)
	}
	return nil
}

// relayMessage keys by complaint id so one complaint's events stay ordered within a partition.
func relayMessage(event Event) (kafka.Message, error) {
	value, err := json.Marshal(relayRecord{
		EventID:     event.ID,
		ComplaintID: event.ComplaintID,
		Envelope:    event.Envelope,
		Targets:     event.Targets,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.ComplaintID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Envelope.Type)},
		},
		Time: event.Envelope.Timestamp,
	}, nil
}

// Close flushes and closes the writer.
func (r *KafkaRelay) Close() error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Close()
}
