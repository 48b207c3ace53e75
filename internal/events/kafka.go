package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published on the payments topic.
const (
	TypeIntentCreated   = "PaymentIntentCreated"
	TypeIntentConfirmed = "PaymentIntentConfirmed"
)

// Envelope is the standard event schema the gateway publishes.
// Keep it small and stable.
type Envelope struct {
	EventType    string      `json:"eventType"`
	EventVersion string      `json:"eventVersion"`
	OccurredAt   time.Time   `json:"occurredAt"`
	AggregateID  string      `json:"aggregateId"` // intent id
	Data         interface{} `json:"data"`
}

// Publisher emits envelopes keyed by aggregate.
type Publisher interface {
	Publish(ctx context.Context, key string, evt Envelope) error
	Close() error
}

// Producer publishes envelopes to a single Kafka topic. Writes are
// asynchronous so a slow or absent broker never delays a payment response;
// delivery failures are logged from the completion callback.
type Producer struct {
	w     *kafka.Writer
	topic string
}

func NewProducer(brokers []string, topic string, logger *log.Logger) *Producer {
	return &Producer{
		topic: topic,
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{}, // partition by intent id
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil && logger != nil {
					logger.Printf("[events] failed to deliver %d message(s) to %s: %v", len(messages), topic, err)
				}
			},
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish stamps OccurredAt and writes a single message.
// 'key' is the Kafka partition key; use the intent id to keep per-intent ordering.
func (p *Producer) Publish(ctx context.Context, key string, evt Envelope) error {
	val, err := Marshal(evt)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: val,
	})
}

// Marshal stamps OccurredAt when unset and encodes the envelope.
func Marshal(evt Envelope) ([]byte, error) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if evt.EventVersion == "" {
		evt.EventVersion = "v1"
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", evt.EventType, err)
	}
	return b, nil
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, Envelope) error { return nil }
func (Noop) Close() error                                    { return nil }
