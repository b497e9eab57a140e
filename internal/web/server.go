package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/example/foodsched/internal/auth"
	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/clock"
	"github.com/example/foodsched/internal/logging"
	"github.com/example/foodsched/internal/ordering"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/realtime"
	"github.com/google/uuid"
)

// ClosingRules is the admin side of the restaurant store.
type ClosingRules interface {
	AddClosingRule(ctx context.Context, restaurantID int64, rule availability.ClosingRule) (int64, error)
}

// CartTimes reads carts and drops their fulfilment time.
type CartTimes interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	ClearShippedAt(ctx context.Context, id string) error
}

type Server struct {
	Auth     *auth.Store
	Ordering *ordering.Service
	Closing  ClosingRules
	Carts    CartTimes
	Clock    clock.Clock

	// Tokens and Realtime enable the kitchen order stream when both are set.
	Tokens   *auth.KitchenTokens
	Realtime *realtime.Hub

	// Ping backs /healthz when set.
	Ping func(ctx context.Context) error
	Log  *slog.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /restaurants", s.handleRestaurants)
	mux.HandleFunc("GET /restaurants/{id}/hours", s.handleHours)
	mux.HandleFunc("GET /restaurants/{id}/next-opening", s.handleNextOpening)
	mux.HandleFunc("GET /restaurants/{id}/slots", s.handleSlots)
	mux.HandleFunc("POST /restaurants/{id}/validate", s.handleValidate)
	mux.HandleFunc("POST /restaurants/{id}/quote", s.handleQuote)
	mux.HandleFunc("POST /restaurants/{id}/orders", s.handlePlace)
	if s.Carts != nil {
		mux.HandleFunc("DELETE /restaurants/{id}/orders/{orderId}/shipped-at", s.handleClearShippedAt)
	}

	mux.Handle("POST /admin/restaurants/{id}/closing-rules", s.Auth.RequireAuth(http.HandlerFunc(s.handleAddClosingRule)))

	if s.Tokens != nil && s.Realtime != nil {
		mux.Handle("POST /admin/restaurants/{id}/kitchen-tokens", s.Auth.RequireAuth(http.HandlerFunc(s.handleIssueKitchenToken)))
		mux.HandleFunc("GET /restaurants/{id}/orders/stream", s.handleOrderStream)
	}

	return s.logRequests(mux)
}

func (s *Server) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// requestIDHeader is echoed back, or filled with a fresh uuid, on every response.
const requestIDHeader = "X-Request-Id"

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		log := s.log().With(slog.String("request_id", id))
		r = r.WithContext(logging.NewContext(r.Context(), log))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the request logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	info := defaultErrors.Map(err)
	body := map[string]any{"error": info.Message}
	if info.Status < 500 {
		body["detail"] = err.Error()
	} else {
		logging.FromContext(r.Context(), s.log()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	var rejected *ordering.RejectedError
	if errors.As(err, &rejected) {
		body["reason"] = rejected.Reason
	}
	writeJSON(w, info.Status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
