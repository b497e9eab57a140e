package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/foodsched/internal/events"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, hub *Hub, topic string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, topic, "tester")
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, func() bool { return hub.Subscribers(topic) == 1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrderScheduledReachesRestaurantTopic(t *testing.T) {
	hub := NewHub()
	conn := dial(t, hub, RestaurantTopic(1))

	ctx := context.Background()
	_ = hub.OrderScheduled(ctx, events.OrderScheduled{OrderID: "other", RestaurantID: 2})
	if err := hub.OrderScheduled(ctx, events.OrderScheduled{OrderID: "o-1", RestaurantID: 1, Mode: "asap"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var msg struct {
		Topic string                `json:"topic"`
		Type  string                `json:"type"`
		Data  events.OrderScheduled `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Topic != "restaurant.1" || msg.Type != TypeOrderScheduled || msg.Data.OrderID != "o-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestClientDetachedOnDisconnect(t *testing.T) {
	hub := NewHub()
	topic := RestaurantTopic(5)
	conn := dial(t, hub, topic)

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Subscribers(topic) == 0 })
	if n := hub.Broadcast(Message{Topic: topic, Type: "ping"}); n != 0 {
		t.Fatalf("expected no recipients, got %d", n)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	topic := RestaurantTopic(9)
	conn := dial(t, hub, topic)

	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if hub.Subscribers(topic) != 0 {
		t.Fatal("expected no subscribers after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed")
	}
}
