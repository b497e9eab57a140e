// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EntityOrder     = "order"
	ActionScheduled = "scheduled"
)

type Milestone struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// OrderScheduled is emitted once an order has been accepted with a
// fulfilment time.
type OrderScheduled struct {
	OrderID      string      `json:"orderId"`
	RestaurantID int64       `json:"restaurantId"`
	Mode         string      `json:"mode"`
	ShippedAt    time.Time   `json:"shippedAt"`
	Milestones   []Milestone `json:"milestones"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

type Publisher interface {
	OrderScheduled(ctx context.Context, ev OrderScheduled) error
	Close() error
}

// envelope is the entity/action wrapper the realtime consumers decode.
type envelope struct {
	Entity     string            `json:"entity"`
	Action     string            `json:"action"`
	ResourceID string            `json:"resourceId"`
	Topic      string            `json:"topic"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Data       any               `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w     messageWriter
	topic string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) OrderScheduled(ctx context.Context, ev OrderScheduled) error {
	value, err := json.Marshal(envelope{
		Entity:     EntityOrder,
		Action:     ActionScheduled,
		ResourceID: ev.OrderID,
		Topic:      EntityOrder + "." + ActionScheduled,
		Metadata:   map[string]string{"restaurantId": strconv.FormatInt(ev.RestaurantID, 10)},
		Data:       ev,
	})
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	// Keyed by restaurant so one kitchen's orders stay on one partition.
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.RestaurantID, 10)),
		Value: value,
		Time:  ev.OccurredAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publish to %s: %w", p.topic, err)
	}
	slog.Debug("kafka message produced",
		slog.String("topic", p.topic),
		slog.String("entity", EntityOrder),
		slog.String("action", ActionScheduled),
		slog.String("resourceId", ev.OrderID),
	)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) OrderScheduled(context.Context, OrderScheduled) error { return nil }
func (Nop) Close() error { return nil }

// Fanout publishes to every publisher in turn. All are attempted even when
// one fails.
type Fanout []Publisher

func (f Fanout) OrderScheduled(ctx context.Context, ev OrderScheduled) error {
	var errs []error
	for _, p := range f {
		if err := p.OrderScheduled(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// New picks KafkaPublisher when brokers are configured.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic)
}
