package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/foodsched/internal/realtime"
	"github.com/gorilla/websocket"
)

func (e testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/login", `{"username":"admin","password":"s3cret-pass"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("login: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func TestIssueKitchenToken(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodPost, "/admin/restaurants/1/kitchen-tokens", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
	cookies := env.login(t)
	if rec := env.do(t, http.MethodPost, "/admin/restaurants/99/kitchen-tokens", "", cookies...); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown restaurant, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/admin/restaurants/1/kitchen-tokens", "", cookies...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	claims, err := env.tokens.Validate(body["token"].(string), time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.RestaurantID != 1 || claims.Subject != "user:1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if body["stream"] != "/restaurants/1/orders/stream" {
		t.Fatalf("unexpected stream path %v", body["stream"])
	}
}

func TestOrderStreamRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 6, 3, 10, 45, 0, 0, time.UTC)
	other, _, err := env.tokens.Issue(2, "user:1", now)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "missing", target: "/restaurants/1/orders/stream", want: http.StatusUnauthorized},
		{name: "garbage", target: "/restaurants/1/orders/stream?token=abc", want: http.StatusUnauthorized},
		{name: "other restaurant", target: "/restaurants/1/orders/stream?token=" + other, want: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodGet, tc.target, ""); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPlacedOrderReachesKitchenStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	token, _, err := env.tokens.Issue(1, "user:1", time.Date(2024, 6, 3, 10, 45, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/restaurants/1/orders/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	topic := realtime.RestaurantTopic(1)
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream client never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := env.do(t, http.MethodPost, "/restaurants/1/orders", `{"mode":"asap"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var msg struct {
		Topic string `json:"topic"`
		Type  string `json:"type"`
		Data  struct {
			OrderID    string `json:"orderId"`
			Milestones []any  `json:"milestones"`
		} `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != realtime.TypeOrderScheduled || msg.Topic != topic || msg.Data.OrderID == "" || len(msg.Data.Milestones) != 3 {
		t.Fatalf("unexpected message %+v", msg)
	}
}
