package ordering

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/db"
	"github.com/example/foodsched/internal/events"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/example/foodsched/internal/routing"
)

type fakeRestaurants struct {
	byID map[int64]restaurants.Restaurant
}

func (f *fakeRestaurants) Get(_ context.Context, id int64) (restaurants.Restaurant, error) {
	r, ok := f.byID[id]
	if !ok {
		return restaurants.Restaurant{}, db.ErrNotFound
	}
	return r, nil
}

func (f *fakeRestaurants) List(context.Context) ([]restaurants.Restaurant, error) {
	var out []restaurants.Restaurant
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}

type fakeOrders struct {
	pending int
	created []orders.Order
}

func (f *fakeOrders) Create(_ context.Context, o orders.Order) (string, error) {
	f.created = append(f.created, o)
	return "6f1c9a52-7f0e-4f3a-9a5e-3f1a2b3c4d5e", nil
}

func (f *fakeOrders) PendingCount(context.Context, int64) (int, error) { return f.pending, nil }

type fixedRoute struct{ d time.Duration }

func (f fixedRoute) Estimate(context.Context, routing.GeoPoint, routing.GeoPoint) (availability.RouteEstimate, error) {
	return availability.RouteEstimate{DistanceMeters: 1000, Duration: f.d}, nil
}

type recordingPublisher struct {
	events []events.OrderScheduled
	err    error
}

func (p *recordingPublisher) OrderScheduled(_ context.Context, ev events.OrderScheduled) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc    *Service
	orders *fakeOrders
	events *recordingPublisher
	loc    *time.Location
}

// newFixture serves restaurant 1, open Monday 11:00-14:00 and 18:00-22:00 in
// Paris, with a 30 minute ordering delay.
func newFixture(t *testing.T) fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}
	rest := restaurants.Restaurant{
		ID:       1,
		Name:     "Chez Paul",
		Timezone: "Europe/Paris",
		Enabled:  true,
		Location: routing.GeoPoint{Lat: 48.86, Lng: 2.34},
		Policy:   availability.AvailabilityPolicy{OrderingDelayMinutes: 30, MaxLeadTimeDays: 7, SlotGranularityMinutes: 15},
		Preparation: availability.PreparationPolicy{
			Base: 10 * time.Minute, Dynamic: true, PerPendingOrder: 5 * time.Minute, Max: 40 * time.Minute,
		},
		Shipping: availability.ShippingPolicy{Multiplier: 1},
		Weekly: []availability.WeeklyRule{
			{Day: time.Monday, Start: 11 * 60, End: 14 * 60},
			{Day: time.Monday, Start: 18 * 60, End: 22 * 60},
		},
	}
	disabled := rest
	disabled.ID = 2
	disabled.Enabled = false

	o := &fakeOrders{}
	p := &recordingPublisher{}
	return fixture{
		svc: &Service{
			Restaurants: &fakeRestaurants{byID: map[int64]restaurants.Restaurant{1: rest, 2: disabled}},
			Orders:      o,
			Routes:      fixedRoute{d: 18*time.Minute + 20*time.Second},
			Events:      p,
		},
		orders: o,
		events: p,
		loc:    loc,
	}
}

func (f fixture) at(t *testing.T, value string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02 15:04", value, f.loc)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestQuoteTargetMode(t *testing.T) {
	f := newFixture(t)
	f.orders.pending = 2
	dest := routing.GeoPoint{Lat: 48.85, Lng: 2.37}

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		RestaurantID: 1,
		Mode:         availability.ModeTarget,
		Target:       f.at(t, "2024-06-03 19:00"),
		Delivery:     &dest,
	}, f.at(t, "2024-06-03 10:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Validation.Accepted || q.Timeline == nil {
		t.Fatalf("expected accepted quote, got %+v", q)
	}
	// 10m base + 2 pending * 5m, shipping rounded up to 19m.
	if q.Timeline.PreparationTime != 20*time.Minute || q.Timeline.ShippingTime != 19*time.Minute {
		t.Fatalf("unexpected durations %s / %s", q.Timeline.PreparationTime, q.Timeline.ShippingTime)
	}
	if want := f.at(t, "2024-06-03 18:21"); !q.Timeline.PreparationStart.Equal(want) {
		t.Fatalf("expected preparation start %s, got %s", want, q.Timeline.PreparationStart)
	}
	if !q.ShippedAt.Equal(f.at(t, "2024-06-03 19:00")) {
		t.Fatalf("unexpected shipped at %s", q.ShippedAt)
	}
}

func TestQuoteRejectsClosedTarget(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		RestaurantID: 1,
		Mode:         availability.ModeTarget,
		Target:       f.at(t, "2024-06-03 16:00"),
	}, f.at(t, "2024-06-03 10:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Validation.Accepted || q.Validation.Reason != availability.ReasonNotAvailable || q.Timeline != nil {
		t.Fatalf("expected NOT_AVAILABLE without timeline, got %+v", q)
	}
}

func TestQuoteASAPWhileClosed(t *testing.T) {
	f := newFixture(t)
	f.svc.Routes = fixedRoute{d: 20 * time.Minute}
	dest := routing.GeoPoint{Lat: 48.85, Lng: 2.37}

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		RestaurantID: 1,
		Mode:         availability.ModeASAP,
		Delivery:     &dest,
	}, f.at(t, "2024-06-03 08:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Validation.Accepted {
		t.Fatalf("expected accepted quote, got %+v", q)
	}
	ms := q.Timeline.Milestones()
	want := []string{"11:00", "11:10", "11:30"}
	for i, m := range ms {
		if got := m.At.In(f.loc).Format("15:04"); got != want[i] {
			t.Fatalf("%s: expected %s, got %s", m.Label, want[i], got)
		}
	}
}

func TestQuoteDisabledRestaurant(t *testing.T) {
	f := newFixture(t)
	for _, mode := range []availability.Mode{availability.ModeASAP, availability.ModeTarget} {
		q, err := f.svc.Quote(context.Background(), QuoteRequest{
			RestaurantID: 2,
			Mode:         mode,
			Target:       f.at(t, "2024-06-03 19:00"),
		}, f.at(t, "2024-06-03 10:00"))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		if q.Validation.Reason != availability.ReasonNotAvailable {
			t.Fatalf("%s: expected NOT_AVAILABLE, got %+v", mode, q.Validation)
		}
	}
}

func TestPlacePublishesEvent(t *testing.T) {
	f := newFixture(t)
	o, q, err := f.svc.Place(context.Background(), PlaceRequest{QuoteRequest: QuoteRequest{
		RestaurantID: 1,
		Mode:         availability.ModeTarget,
		Target:       f.at(t, "2024-06-03 12:30"),
	}}, f.at(t, "2024-06-03 10:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID == "" || o.Status != orders.StatusPlaced || !o.ShippedAt.Equal(q.ShippedAt) {
		t.Fatalf("unexpected order %+v", o)
	}
	if len(f.orders.created) != 1 {
		t.Fatalf("expected 1 stored order, got %d", len(f.orders.created))
	}
	if len(f.events.events) != 1 || f.events.events[0].OrderID != o.ID || len(f.events.events[0].Milestones) != 3 {
		t.Fatalf("unexpected events %+v", f.events.events)
	}
}

func TestPlaceKeepsOrderWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	_, _, err := f.svc.Place(context.Background(), PlaceRequest{QuoteRequest: QuoteRequest{
		RestaurantID: 1, Mode: availability.ModeASAP,
	}}, f.at(t, "2024-06-03 12:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.orders.created) != 1 {
		t.Fatal("expected order to be stored despite publish failure")
	}
}

func TestPlaceCartSkipsEvent(t *testing.T) {
	f := newFixture(t)
	o, _, err := f.svc.Place(context.Background(), PlaceRequest{Cart: true, QuoteRequest: QuoteRequest{
		RestaurantID: 1, Mode: availability.ModeTarget, Target: f.at(t, "2024-06-03 20:00"),
	}}, f.at(t, "2024-06-03 12:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != orders.StatusCart || len(f.events.events) != 0 {
		t.Fatalf("expected silent cart, got status %s and %d events", o.Status, len(f.events.events))
	}
}

func TestPlaceRejected(t *testing.T) {
	f := newFixture(t)
	_, q, err := f.svc.Place(context.Background(), PlaceRequest{QuoteRequest: QuoteRequest{
		RestaurantID: 1,
		Mode:         availability.ModeTarget,
		Target:       f.at(t, "2024-06-03 11:00"),
	}}, f.at(t, "2024-06-03 10:45"))

	var rejected *RejectedError
	if !errors.As(err, &rejected) || !errors.Is(err, ErrRejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Reason != availability.ReasonExpired || q.Validation.Reason != availability.ReasonExpired {
		t.Fatalf("expected EXPIRED, got %s", rejected.Reason)
	}
	if len(f.orders.created) != 0 || len(f.events.events) != 0 {
		t.Fatal("rejected order must not be stored or published")
	}
}

func TestCheckCart(t *testing.T) {
	f := newFixture(t)
	shipped := f.at(t, "2024-06-03 12:00")
	cart := orders.Order{RestaurantID: 1, Status: orders.StatusCart, Mode: availability.ModeTarget, ShippedAt: &shipped}

	res, err := f.svc.CheckCart(context.Background(), cart, f.at(t, "2024-06-03 10:00"))
	if err != nil || !res.Accepted {
		t.Fatalf("expected cart still valid, got %+v (%v)", res, err)
	}
	res, err = f.svc.CheckCart(context.Background(), cart, f.at(t, "2024-06-03 11:45"))
	if err != nil || res.Reason != availability.ReasonExpired {
		t.Fatalf("expected EXPIRED, got %+v (%v)", res, err)
	}
}

func TestUnknownRestaurant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.NextOpening(context.Background(), 99, f.at(t, "2024-06-03 10:00"))
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected db.ErrNotFound, got %v", err)
	}
}

func TestNextOpeningAndSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.at(t, "2024-06-03 14:30")

	next, err := f.svc.NextOpening(ctx, 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(f.at(t, "2024-06-03 18:00")) {
		t.Fatalf("expected 18:00, got %s", next)
	}

	slots, err := f.svc.Slots(ctx, 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// This evening's service plus next Monday's lunch; the horizon ends at 14:30.
	if len(slots) != 16+12 {
		t.Fatalf("expected 28 slots, got %d", len(slots))
	}

	slots, err = f.svc.Slots(ctx, 2, now)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected no slots for disabled restaurant, got %d (%v)", len(slots), err)
	}
}

func TestListRestaurants(t *testing.T) {
	f := newFixture(t)
	items, pages, err := f.svc.ListRestaurants(context.Background(), f.at(t, "2024-06-03 12:00"), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages != 1 || len(items) != 2 {
		t.Fatalf("expected 2 items on 1 page, got %d on %d", len(items), pages)
	}
	if items[0].Restaurant.ID != 1 || !items[0].Open {
		t.Fatalf("expected open enabled restaurant first, got %+v", items[0])
	}
}

func TestListRestaurantsLogsMisconfiguredSchedules(t *testing.T) {
	f := newFixture(t)
	f.svc.Restaurants.(*fakeRestaurants).byID[3] = restaurants.Restaurant{ID: 3, Name: "Nowhere", Timezone: "Mars/Olympus", Enabled: true}
	var buf bytes.Buffer
	f.svc.Log = slog.New(slog.NewTextHandler(&buf, nil))

	items, _, err := f.svc.ListRestaurants(context.Background(), f.at(t, "2024-06-03 12:00"), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 || items[0].Restaurant.ID != 1 {
		t.Fatalf("expected the broken restaurant listed after the open one, got %+v", items)
	}
	out := buf.String()
	if !strings.Contains(out, "restaurant schedule misconfigured") || !strings.Contains(out, "restaurant_id=3") {
		t.Fatalf("expected a warning for restaurant 3, got %q", out)
	}
}

func TestOrderingDelay(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.OrderingDelay(context.Background(), 1)
	if err != nil || d != 30*time.Minute {
		t.Fatalf("expected 30m, got %s (%v)", d, err)
	}
	if _, err := f.svc.OrderingDelay(context.Background(), 99); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
