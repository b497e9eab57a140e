// Package ordering combines the availability core with restaurant
// configuration, kitchen load, routing and event publishing. Every method
// takes the reference instant from its caller.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/events"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/example/foodsched/internal/routing"
)

// ErrRejected is wrapped by RejectedError.
var ErrRejected = errors.New("fulfilment time rejected")

type RejectedError struct {
	Reason availability.Reason
}

func (e *RejectedError) Error() string { return fmt.Sprintf("%s: %s", ErrRejected, e.Reason) }
func (e *RejectedError) Unwrap() error { return ErrRejected }

type RestaurantStore interface {
	Get(ctx context.Context, id int64) (restaurants.Restaurant, error)
	List(ctx context.Context) ([]restaurants.Restaurant, error)
}

type OrderStore interface {
	Create(ctx context.Context, o orders.Order) (string, error)
	PendingCount(ctx context.Context, restaurantID int64) (int, error)
}

type Service struct {
	Restaurants RestaurantStore
	Orders      OrderStore
	Routes      routing.Estimator
	Events      events.Publisher

	// Horizon bounds next-opening searches; zero means the core default.
	Horizon time.Duration
	Log     *slog.Logger
}

func (s *Service) horizon() time.Duration {
	if s.Horizon > 0 {
		return s.Horizon
	}
	return availability.DefaultSearchHorizon
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) load(ctx context.Context, id int64) (restaurants.Restaurant, availability.Schedule, error) {
	r, err := s.Restaurants.Get(ctx, id)
	if err != nil {
		return restaurants.Restaurant{}, availability.Schedule{}, err
	}
	sched, err := r.Schedule()
	if err != nil {
		return restaurants.Restaurant{}, availability.Schedule{}, fmt.Errorf("restaurant %d: %w", id, err)
	}
	return r, sched, nil
}

func (s *Service) OpenIntervals(ctx context.Context, id int64, from, to time.Time) ([]availability.TimeInterval, error) {
	_, sched, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return availability.GetOpenIntervals(sched, availability.TimeInterval{Start: from, End: to})
}

func (s *Service) NextOpening(ctx context.Context, id int64, from time.Time) (time.Time, error) {
	_, sched, err := s.load(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return availability.FindNextOpening(sched, from, s.horizon())
}

// Validate checks a requested fulfilment time. Disabled restaurants accept
// nothing.
func (s *Service) Validate(ctx context.Context, id int64, candidate, now time.Time) (availability.ValidationResult, error) {
	r, sched, err := s.load(ctx, id)
	if err != nil {
		return availability.ValidationResult{}, err
	}
	return validate(r, sched, candidate, now)
}

func validate(r restaurants.Restaurant, sched availability.Schedule, candidate, now time.Time) (availability.ValidationResult, error) {
	if !r.Enabled {
		return availability.ValidationResult{Reason: availability.ReasonNotAvailable}, nil
	}
	return availability.ValidateCandidateTime(sched, r.Policy, candidate, now)
}

// OrderingDelay is the minimum notice restaurant id needs between ordering
// and fulfilment.
func (s *Service) OrderingDelay(ctx context.Context, id int64) (time.Duration, error) {
	r, err := s.Restaurants.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return r.Policy.OrderingDelay(), nil
}

func (s *Service) Slots(ctx context.Context, id int64, now time.Time) ([]time.Time, error) {
	r, sched, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Enabled {
		return nil, nil
	}
	return availability.ListAvailableSlots(sched, r.Policy, now)
}

type QuoteRequest struct {
	RestaurantID int64
	Mode         availability.Mode
	// Target is the requested delivery time; ignored in ASAP mode.
	Target time.Time
	// Delivery is nil for pickup orders.
	Delivery *routing.GeoPoint
}

type Quote struct {
	RestaurantID int64
	Validation   availability.ValidationResult
	// ShippedAt is the fulfilment time that would be stored on the order.
	ShippedAt time.Time
	// Timeline is only set when Validation is accepted.
	Timeline *availability.Timeline
}

// Quote validates the request and, when accepted, computes the order
// timeline. In ASAP mode preparation starts at the next opening and the
// only possible rejection is an opening beyond the lead-time horizon.
func (s *Service) Quote(ctx context.Context, req QuoteRequest, now time.Time) (Quote, error) {
	r, sched, err := s.load(ctx, req.RestaurantID)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{RestaurantID: r.ID}

	var at time.Time
	switch req.Mode {
	case availability.ModeTarget:
		if req.Target.IsZero() {
			return Quote{}, fmt.Errorf("%w: target time required", availability.ErrInvalidRange)
		}
		q.Validation, err = validate(r, sched, req.Target, now)
		if err != nil {
			return Quote{}, err
		}
		at = req.Target
	case availability.ModeASAP:
		if err := r.Policy.Validate(); err != nil {
			return Quote{}, err
		}
		at, err = availability.ASAPStart(sched, now, s.horizon())
		switch {
		case errors.Is(err, availability.ErrNotFound):
			q.Validation = availability.ValidationResult{Reason: availability.ReasonNotAvailable}
		case err != nil:
			return Quote{}, err
		case !r.Enabled || at.After(now.Add(r.Policy.MaxLeadTime())):
			q.Validation = availability.ValidationResult{Reason: availability.ReasonNotAvailable}
		default:
			q.Validation = availability.ValidationResult{Accepted: true, Reason: availability.ReasonOK}
		}
	default:
		return Quote{}, fmt.Errorf("unknown timeline mode %q", req.Mode)
	}
	if !q.Validation.Accepted {
		return q, nil
	}

	prep, err := s.preparation(ctx, r)
	if err != nil {
		return Quote{}, err
	}
	ship, err := s.shipping(ctx, r, req.Delivery)
	if err != nil {
		return Quote{}, err
	}
	tl := availability.ComputeTimeline(req.Mode, at, prep, ship)
	q.Timeline = &tl
	q.ShippedAt = tl.EstimatedDelivery
	return q, nil
}

func (s *Service) preparation(ctx context.Context, r restaurants.Restaurant) (time.Duration, error) {
	var load availability.LoadContext
	if r.Preparation.Dynamic && !r.Preparation.Instant {
		n, err := s.Orders.PendingCount(ctx, r.ID)
		if err != nil {
			return 0, fmt.Errorf("pending orders: %w", err)
		}
		load.PendingOrders = n
	}
	return availability.EstimatePreparation(r.Preparation, load), nil
}

func (s *Service) shipping(ctx context.Context, r restaurants.Restaurant, to *routing.GeoPoint) (time.Duration, error) {
	if to == nil {
		return 0, nil
	}
	route, err := s.Routes.Estimate(ctx, r.Location, *to)
	if err != nil {
		return 0, fmt.Errorf("route estimate: %w", err)
	}
	return availability.EstimateShipping(r.Shipping, route), nil
}

type PlaceRequest struct {
	QuoteRequest
	// Cart keeps the order as a cart; no event is published.
	Cart bool
}

// Place quotes the request and stores the order. A rejected fulfilment time
// is returned as a *RejectedError.
func (s *Service) Place(ctx context.Context, req PlaceRequest, now time.Time) (orders.Order, Quote, error) {
	q, err := s.Quote(ctx, req.QuoteRequest, now)
	if err != nil {
		return orders.Order{}, Quote{}, err
	}
	if !q.Validation.Accepted {
		return orders.Order{}, q, &RejectedError{Reason: q.Validation.Reason}
	}

	o := orders.Order{RestaurantID: req.RestaurantID, Status: orders.StatusPlaced, ShippedAt: &q.ShippedAt}
	if req.Cart {
		o.Status = orders.StatusCart
	}
	if req.Delivery != nil {
		o.Delivery = *req.Delivery
	}
	o.ApplyTimeline(*q.Timeline)

	o.ID, err = s.Orders.Create(ctx, o)
	if err != nil {
		return orders.Order{}, Quote{}, fmt.Errorf("store order: %w", err)
	}
	s.log().Info("order scheduled",
		slog.String("order_id", o.ID),
		slog.Int64("restaurant_id", o.RestaurantID),
		slog.String("status", string(o.Status)),
		slog.String("mode", string(o.Mode)),
		slog.Time("shipped_at", q.ShippedAt),
	)
	if o.Status == orders.StatusPlaced {
		s.publish(ctx, o, *q.Timeline, now)
	}
	return o, q, nil
}

func (s *Service) publish(ctx context.Context, o orders.Order, tl availability.Timeline, now time.Time) {
	if s.Events == nil {
		return
	}
	ev := events.OrderScheduled{
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Mode:         string(tl.Mode),
		ShippedAt:    *o.ShippedAt,
		OccurredAt:   now,
	}
	for _, m := range tl.Milestones() {
		ev.Milestones = append(ev.Milestones, events.Milestone{Label: m.Label, At: m.At})
	}
	// The order is stored; a lost event is logged, not surfaced.
	if err := s.Events.OrderScheduled(ctx, ev); err != nil {
		s.log().Warn("publish order event failed", slog.String("order_id", o.ID), slog.Any("error", err))
	}
}

// CheckCart re-validates a cart's fulfilment time.
func (s *Service) CheckCart(ctx context.Context, o orders.Order, now time.Time) (availability.ValidationResult, error) {
	if o.ShippedAt == nil {
		return availability.ValidationResult{Reason: availability.ReasonNotAvailable}, nil
	}
	return s.Validate(ctx, o.RestaurantID, *o.ShippedAt, now)
}

// ListRestaurants returns one page of the sorted listing and the page count.
func (s *Service) ListRestaurants(ctx context.Context, now time.Time, page int) ([]restaurants.Listing, int, error) {
	rs, err := s.Restaurants.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	listings := restaurants.SortForListing(rs, now, s.horizon())
	for _, l := range listings {
		if l.ScheduleErr != nil {
			s.log().Warn("restaurant schedule misconfigured",
				slog.Int64("restaurant_id", l.Restaurant.ID), slog.Any("error", l.ScheduleErr))
		}
	}
	items, pages := restaurants.Paginate(listings, page, restaurants.ItemsPerPage)
	return items, pages, nil
}
