package listeners

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"branch-ledger/internal/events"
	"branch-ledger/pkg/config"
	"branch-ledger/pkg/eventbus"
)

// Producer is the subset of *kafka.Writer the publisher needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAuditPublisher forwards audit events to a Kafka topic, keyed by
// object so every event for one stock row or transfer lands on one partition.
type KafkaAuditPublisher struct {
	producer Producer
	logger   *zap.Logger
}

func NewKafkaAuditPublisher(producer Producer, logger *zap.Logger) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{producer: producer, logger: logger}
}

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.AuditTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaAuditPublisher) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.AuditRecordedEvent, p.handle)
	p.logger.Info("kafka audit publisher subscribed", zap.String("event", events.AuditRecordedEvent))
}

func (p *KafkaAuditPublisher) handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.AuditEvent)
	if !ok {
		return fmt.Errorf("kafka audit publisher: unexpected event %T", event)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event %s: %w", e.EventID, err)
	}

	msg := kafka.Message{
		Key:   []byte(e.ObjectType + ":" + e.ObjectID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.EventID)},
			{Key: "action", Value: []byte(e.Action)},
		},
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event %s: %w", e.EventID, err)
	}
	return nil
}

func (p *KafkaAuditPublisher) Close() error {
	return p.producer.Close()
}
