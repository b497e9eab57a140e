package orders

import (
	"testing"
	"time"

	"github.com/example/foodsched/internal/availability"
)

func TestOrderValidate(t *testing.T) {
	at := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		order   Order
		wantErr bool
	}{
		{name: "placed", order: Order{RestaurantID: 1, Status: StatusPlaced, Mode: availability.ModeASAP, ShippedAt: &at}},
		{name: "cart without time", order: Order{RestaurantID: 1, Status: StatusCart, Mode: availability.ModeTarget}},
		{name: "placed without time", order: Order{RestaurantID: 1, Status: StatusPlaced, Mode: availability.ModeASAP}, wantErr: true},
		{name: "missing restaurant", order: Order{Status: StatusCart, Mode: availability.ModeASAP}, wantErr: true},
		{name: "unknown status", order: Order{RestaurantID: 1, Status: "lost", Mode: availability.ModeASAP}, wantErr: true},
		{name: "unknown mode", order: Order{RestaurantID: 1, Status: StatusCart, Mode: "later"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.order.Validate()
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestApplyTimeline(t *testing.T) {
	target := time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC)
	tl := availability.ComputeTimeline(availability.ModeTarget, target, 20*time.Minute, 15*time.Minute)

	var o Order
	o.ApplyTimeline(tl)
	if o.Mode != availability.ModeTarget {
		t.Fatalf("expected target mode, got %s", o.Mode)
	}
	if !o.PreparationStart.Equal(target.Add(-35*time.Minute)) || !o.EstimatedDelivery.Equal(target) {
		t.Fatalf("unexpected milestones %s / %s", o.PreparationStart, o.EstimatedDelivery)
	}
}

func TestAfterCursor(t *testing.T) {
	at := time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC)
	c := After(Order{ID: "a1", ShippedAt: &at})
	if c.ID != "a1" || !c.ShippedAt.Equal(at) {
		t.Fatalf("unexpected cursor %+v", c)
	}
	if c := After(Order{ID: "a2"}); !c.ShippedAt.IsZero() {
		t.Fatalf("expected zero time without shipped_at, got %s", c.ShippedAt)
	}
}
