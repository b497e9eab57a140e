package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/db"
	"github.com/example/foodsched/internal/ordering"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/routing"
)

const defaultHoursSpan = 7 * 24 * time.Hour

type intervalJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type milestoneJSON struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

type timelineJSON struct {
	Mode               availability.Mode `json:"mode"`
	PreparationMinutes int               `json:"preparationMinutes"`
	ShippingMinutes    int               `json:"shippingMinutes"`
	Milestones         []milestoneJSON   `json:"milestones"`
}

type quoteJSON struct {
	Accepted  bool                `json:"accepted"`
	Reason    availability.Reason `json:"reason"`
	ShippedAt *time.Time          `json:"shippedAt,omitempty"`
	Timeline  *timelineJSON       `json:"timeline,omitempty"`
}

type restaurantJSON struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Timezone    string           `json:"timezone"`
	Enabled     bool             `json:"enabled"`
	Open        bool             `json:"open"`
	NextOpening *time.Time       `json:"nextOpening,omitempty"`
	Location    routing.GeoPoint `json:"location"`
}

type orderJSON struct {
	ID           string            `json:"id"`
	RestaurantID int64             `json:"restaurantId"`
	Status       orders.Status     `json:"status"`
	Mode         availability.Mode `json:"mode"`
	ShippedAt    *time.Time        `json:"shippedAt,omitempty"`
}

type quoteRequestJSON struct {
	Mode     string            `json:"mode"`
	Target   *time.Time        `json:"target,omitempty"`
	Delivery *routing.GeoPoint `json:"delivery,omitempty"`
	Cart     bool              `json:"cart,omitempty"`
}

func (q quoteRequestJSON) toRequest(id int64) (ordering.QuoteRequest, error) {
	mode, err := availability.ParseMode(q.Mode)
	if err != nil {
		return ordering.QuoteRequest{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	req := ordering.QuoteRequest{RestaurantID: id, Mode: mode, Delivery: q.Delivery}
	if q.Target != nil {
		req.Target = *q.Target
	}
	if q.Delivery != nil {
		if err := q.Delivery.Validate(); err != nil {
			return ordering.QuoteRequest{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return req, nil
}

func toQuoteJSON(q ordering.Quote) quoteJSON {
	out := quoteJSON{Accepted: q.Validation.Accepted, Reason: q.Validation.Reason}
	if q.Timeline != nil {
		shipped := q.ShippedAt
		out.ShippedAt = &shipped
		tl := &timelineJSON{
			Mode:               q.Timeline.Mode,
			PreparationMinutes: int(q.Timeline.PreparationTime / time.Minute),
			ShippingMinutes:    int(q.Timeline.ShippingTime / time.Minute),
		}
		for _, m := range q.Timeline.Milestones() {
			tl.Milestones = append(tl.Milestones, milestoneJSON{Label: m.Label, At: m.At})
		}
		out.Timeline = tl
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		if err := s.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable\n", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			s.writeError(w, r, fmt.Errorf("%w: invalid page %q", errBadRequest, v))
			return
		}
		page = p
	}
	items, pages, err := s.Ordering.ListRestaurants(r.Context(), s.Clock.Now(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]restaurantJSON, 0, len(items))
	for _, l := range items {
		rj := restaurantJSON{
			ID:       l.Restaurant.ID,
			Name:     l.Restaurant.Name,
			Timezone: l.Restaurant.Timezone,
			Enabled:  l.Restaurant.Enabled,
			Open:     l.Open,
			Location: l.Restaurant.Location,
		}
		if !l.NextOpening.IsZero() {
			next := l.NextOpening
			rj.NextOpening = &next
		}
		out = append(out, rj)
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "pages": pages, "restaurants": out})
}

func (s *Server) handleHours(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from", s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to", from.Add(defaultHoursSpan))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ivs, err := s.Ordering.OpenIntervals(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]intervalJSON, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, intervalJSON{Start: iv.Start, End: iv.End})
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurantId": id, "intervals": out})
}

func (s *Server) handleNextOpening(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from", s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := s.Ordering.NextOpening(r.Context(), id, from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurantId": id, "nextOpening": next})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	delay, err := s.Ordering.OrderingDelay(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slots, err := s.Ordering.Slots(r.Context(), id, s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restaurantId":         id,
		"orderingDelayMinutes": int(delay / time.Minute),
		"slots":                slots,
	})
}

// handleClearShippedAt drops the fulfilment time of a cart, for instance when
// the customer moves it to another restaurant.
func (s *Server) handleClearShippedAt(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	orderID := r.PathValue("orderId")
	o, err := s.Carts.Get(r.Context(), orderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if o.RestaurantID != id {
		s.writeError(w, r, fmt.Errorf("%w: order %s is not at restaurant %d", db.ErrNotFound, orderID, id))
		return
	}
	if o.Status != orders.StatusCart {
		s.writeError(w, r, fmt.Errorf("%w: order %s is %s", errNotACart, orderID, o.Status))
		return
	}
	if err := s.Carts.ClearShippedAt(r.Context(), orderID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		At time.Time `json:"at"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.At.IsZero() {
		s.writeError(w, r, fmt.Errorf("%w: at required", errBadRequest))
		return
	}
	res, err := s.Ordering.Validate(r.Context(), id, body.At, s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": res.Accepted, "reason": res.Reason})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body quoteRequestJSON
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := body.toRequest(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.Ordering.Quote(r.Context(), req, s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteJSON(q))
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body quoteRequestJSON
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := body.toRequest(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	o, q, err := s.Ordering.Place(r.Context(), ordering.PlaceRequest{QuoteRequest: req, Cart: body.Cart}, s.Clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order": orderJSON{ID: o.ID, RestaurantID: o.RestaurantID, Status: o.Status, Mode: o.Mode, ShippedAt: o.ShippedAt},
		"quote": toQuoteJSON(q),
	})
}

func (s *Server) handleAddClosingRule(w http.ResponseWriter, r *http.Request) {
	id, err := restaurantID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
		Mode  string    `json:"mode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode := availability.ClosingMode(strings.ToUpper(strings.TrimSpace(body.Mode)))
	if mode == "" {
		mode = availability.ModeClose
	}
	rule := availability.ClosingRule{Range: availability.TimeInterval{Start: body.Start, End: body.End}, Mode: mode}
	ruleID, err := s.Closing.AddClosingRule(r.Context(), id, rule)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": ruleID, "restaurantId": id})
}

func restaurantID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid restaurant id %q", errBadRequest, raw)
	}
	return id, nil
}

// queryTime parses an RFC3339 query parameter, falling back to def.
func queryTime(r *http.Request, key string, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339", errBadRequest, key)
	}
	return t, nil
}
