package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
)

// MessageWriter is the part of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds publisher configuration
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// EventPublisher writes domain events to a Kafka topic keyed by assignment id,
// so every assignment's events stay ordered within one partition
type EventPublisher struct {
	writer       MessageWriter
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewEventPublisher creates a publisher backed by a synchronous kafka.Writer
func NewEventPublisher(cfg Config, logger *zap.Logger) *EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return NewEventPublisherWithWriter(writer, cfg.WriteTimeout, logger)
}

// NewEventPublisherWithWriter creates a publisher on an explicit writer
func NewEventPublisherWithWriter(writer MessageWriter, writeTimeout time.Duration, logger *zap.Logger) *EventPublisher {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &EventPublisher{
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Publish implements port.EventPublisher
func (p *EventPublisher) Publish(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(evt.AssignmentID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
			{Key: "assignment_version", Value: []byte(strconv.FormatInt(evt.Version, 10))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("assignment_id", evt.AssignmentID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type.String()),
		zap.String("assignment_id", evt.AssignmentID))

	return nil
}

// Handler adapts the publisher to a dispatcher handler
func (p *EventPublisher) Handler() dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return p.Publish(ctx, evt)
	}
}

// Register subscribes the publisher to every workflow event type
func (p *EventPublisher) Register(d dispatcher.Dispatcher) {
	d.Subscribe(dispatcher.AnyEvent, "kafka-publisher", p.Handler())
}

// Close flushes and closes the writer
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// Verify interface compliance
var _ port.EventPublisher = (*EventPublisher)(nil)
