// Package realtime pushes order events to kitchen displays over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/example/foodsched/internal/events"
)

const TypeOrderScheduled = "order.scheduled"

type Message struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

func RestaurantTopic(id int64) string { return "restaurant." + strconv.FormatInt(id, 10) }

// Hub fans messages out to the clients subscribed to a topic. It also
// satisfies events.Publisher.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Client]struct{})}
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[c.topic] == nil {
		h.topics[c.topic] = make(map[*Client]struct{})
	}
	h.topics[c.topic][c] = struct{}{}
	slog.Info("ws client attached", slog.String("topic", c.topic), slog.String("subject", c.subject))
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	if subs, ok := h.topics[c.topic]; ok {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, c.topic)
			}
			slog.Info("ws client detached", slog.String("topic", c.topic), slog.String("subject", c.subject))
		}
	}
	h.mu.Unlock()
	c.close()
}

// Subscribers reports how many clients listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Broadcast queues msg for every subscriber of its topic and returns how
// many were reached. Clients with a full buffer are dropped.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast marshal error", slog.Any("error", err))
		return 0
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.topics[msg.Topic]))
	for c := range h.topics[msg.Topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.enqueue(data) {
			sent++
			continue
		}
		slog.Warn("ws send buffer full", slog.String("topic", c.topic), slog.String("subject", c.subject))
		go h.detach(c)
	}
	return sent
}

func (h *Hub) OrderScheduled(_ context.Context, ev events.OrderScheduled) error {
	h.Broadcast(Message{Topic: RestaurantTopic(ev.RestaurantID), Type: TypeOrderScheduled, Data: ev})
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	var all []*Client
	for _, subs := range h.topics {
		for c := range subs {
			all = append(all, c)
		}
	}
	h.topics = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	return nil
}
