package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func TestKafkaPublisherOrderScheduled(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{w: w, topic: "order.scheduled"}
	at := time.Date(2024, 6, 3, 11, 30, 0, 0, time.UTC)

	err := p.OrderScheduled(context.Background(), OrderScheduled{
		OrderID:      "0b6f6c8e-3f0a-4d43-9d55-4c1f2a0f8c11",
		RestaurantID: 12,
		Mode:         "asap",
		ShippedAt:    at,
		Milestones:   []Milestone{{Label: "estimated_delivery", At: at}},
		OccurredAt:   at.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "12" {
		t.Fatalf("expected key 12, got %q", msg.Key)
	}

	var got struct {
		Entity     string         `json:"entity"`
		Action     string         `json:"action"`
		ResourceID string         `json:"resourceId"`
		Data       OrderScheduled `json:"data"`
	}
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Entity != "order" || got.Action != "scheduled" || got.ResourceID == "" {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if !got.Data.ShippedAt.Equal(at) || len(got.Data.Milestones) != 1 {
		t.Fatalf("unexpected payload %+v", got.Data)
	}
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{w: &captureWriter{err: boom}, topic: "order.scheduled"}
	if err := p.OrderScheduled(context.Background(), OrderScheduled{OrderID: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewWithoutBrokers(t *testing.T) {
	if _, ok := New(nil, "order.scheduled").(Nop); !ok {
		t.Fatal("expected Nop publisher without brokers")
	}
}

type recordingPublisher struct {
	got []string
	err error
}

func (r *recordingPublisher) OrderScheduled(_ context.Context, ev OrderScheduled) error {
	r.got = append(r.got, ev.OrderID)
	return r.err
}

func (r *recordingPublisher) Close() error { return r.err }

func TestFanoutReachesEveryPublisher(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingPublisher{err: boom}
	ok := &recordingPublisher{}
	f := Fanout{failing, ok}

	err := f.OrderScheduled(context.Background(), OrderScheduled{OrderID: "o-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(ok.got) != 1 || ok.got[0] != "o-1" {
		t.Fatalf("second publisher skipped: %v", ok.got)
	}
	if err := f.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected close error, got %v", err)
	}
	if err := (Fanout{ok, Nop{}}).Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
