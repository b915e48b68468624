package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/spec-kit/servicedesk/internal/events"
)

// EventPublisher ships domain events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher writing to topic. With no brokers it
// returns a publisher that drops everything.
func NewKafkaPublisher(brokers []string, topic string) EventPublisher {
	if len(brokers) == 0 {
		return noopPublisher{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event events.Event) error {
	message, err := toMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", event.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// toMessage keys by aggregate so every event of one ticket or contract lands
// on the same partition in order.
func toMessage(event events.Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Event) error { return nil }
func (noopPublisher) Close() error                                { return nil }
