package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// FulfillmentEvent is emitted on every successful fulfillment transition so
// downstream consumers (notifications, analytics) can react without polling.
type FulfillmentEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	AWBCode     string    `json:"awb_code,omitempty"`
	CourierName string    `json:"courier_name,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event FulfillmentEvent) error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes one event keyed by order id, so all events for an order
// land on the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, event FulfillmentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal fulfillment event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("events: failed to publish fulfillment event: %w", err)
	}
	return nil
}
