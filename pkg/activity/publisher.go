package activity

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the Publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // same actor -> same partition
	}
}

// Publisher wraps a Store and forwards every appended entry to Kafka, keyed
// by actor. Publish failures are logged; the entry is already durable.
type Publisher struct {
	Store
	w Writer
}

// NewPublisher creates a Publisher wrapping store.
func NewPublisher(store Store, w Writer) *Publisher {
	return &Publisher{Store: store, w: w}
}

// Append delegates to the underlying store, then publishes the entry.
func (p *Publisher) Append(ctx context.Context, entryType, actorID, subject string, content map[string]any) (*Entry, error) {
	e, err := p.Store.Append(ctx, entryType, actorID, subject, content)
	if err != nil {
		return nil, err
	}

	value, err := json.Marshal(e)
	if err != nil {
		log.Printf("activity: marshal %s for kafka: %v", e.ID, err)
		return e, nil
	}
	msg := kafka.Message{
		Key:   []byte(e.ActorID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		log.Printf("activity: publish %s %s: %v", e.Type, e.ID, err)
	}
	return e, nil
}

// Close shuts down the Kafka writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
