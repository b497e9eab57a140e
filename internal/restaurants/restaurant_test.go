package restaurants

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/example/foodsched/internal/availability"
)

func lunch(day time.Weekday) availability.WeeklyRule {
	return availability.WeeklyRule{Day: day, Start: 11 * 60, End: 14 * 60}
}

func TestSortForListing(t *testing.T) {
	// Monday 2024-06-03 12:00 UTC.
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	rs := []Restaurant{
		{ID: 1, Name: "disabled but open", Timezone: "UTC", Weekly: []availability.WeeklyRule{lunch(time.Monday)}},
		{ID: 2, Name: "opens wednesday", Timezone: "UTC", Enabled: true, Weekly: []availability.WeeklyRule{lunch(time.Wednesday)}},
		{ID: 3, Name: "never opens", Timezone: "UTC", Enabled: true},
		{ID: 4, Name: "open now", Timezone: "UTC", Enabled: true, Weekly: []availability.WeeklyRule{lunch(time.Monday)}},
		{ID: 5, Name: "opens tuesday", Timezone: "UTC", Enabled: true, Weekly: []availability.WeeklyRule{lunch(time.Tuesday)}},
		{ID: 6, Name: "broken timezone", Timezone: "Mars/Olympus", Enabled: true},
	}

	got := SortForListing(rs, now, availability.DefaultSearchHorizon)
	want := []int64{4, 5, 2, 3, 6, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d listings, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Restaurant.ID != id {
			t.Fatalf("position %d: expected restaurant %d, got %d (%s)", i, id, got[i].Restaurant.ID, got[i].Restaurant.Name)
		}
	}
	if !got[0].Open || got[1].Open {
		t.Fatalf("unexpected open flags: %v %v", got[0].Open, got[1].Open)
	}
	if want := time.Date(2024, 6, 4, 11, 0, 0, 0, time.UTC); !got[1].NextOpening.Equal(want) {
		t.Fatalf("expected next opening %s, got %s", want, got[1].NextOpening)
	}
	if !got[3].NextOpening.IsZero() {
		t.Fatalf("expected no next opening, got %s", got[3].NextOpening)
	}
	for _, l := range got {
		if broken := l.Restaurant.ID == 6; broken != (l.ScheduleErr != nil) {
			t.Fatalf("restaurant %d: unexpected schedule error %v", l.Restaurant.ID, l.ScheduleErr)
		}
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i
	}
	tests := []struct {
		page      int
		wantLen   int
		wantFirst int
	}{
		{page: 0, wantLen: 21, wantFirst: 0},
		{page: 2, wantLen: 21, wantFirst: 21},
		{page: 3, wantLen: 3, wantFirst: 42},
		{page: 4, wantLen: 0},
	}
	for _, tc := range tests {
		got, pages := Paginate(items, tc.page, ItemsPerPage)
		if pages != 3 {
			t.Fatalf("expected 3 pages, got %d", pages)
		}
		if len(got) != tc.wantLen {
			t.Fatalf("page %d: expected %d items, got %d", tc.page, tc.wantLen, len(got))
		}
		if tc.wantLen > 0 && got[0] != tc.wantFirst {
			t.Fatalf("page %d: expected first item %d, got %d", tc.page, tc.wantFirst, got[0])
		}
	}
}

func TestValidate(t *testing.T) {
	ok := Restaurant{Name: "Chez Paul", Timezone: "Europe/Paris", Weekly: []availability.WeeklyRule{lunch(time.Monday)}}.Defaults()
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Policy != availability.DefaultPolicy || ok.Preparation.Base != availability.DefaultPreparationTime {
		t.Fatalf("defaults not applied: %+v", ok)
	}

	noName := ok
	noName.Name = " "
	if err := noName.Validate(); err == nil {
		t.Fatal("expected missing name to be rejected")
	}

	badTZ := ok
	badTZ.Timezone = "Nowhere/City"
	if err := badTZ.Validate(); !errors.Is(err, availability.ErrMisconfiguredSchedule) {
		t.Fatalf("expected ErrMisconfiguredSchedule, got %v", err)
	}

	overlap := ok
	overlap.Weekly = append(overlap.Weekly, availability.WeeklyRule{Day: time.Monday, Start: 13 * 60, End: 15 * 60})
	if err := overlap.Validate(); !errors.Is(err, availability.ErrMisconfiguredSchedule) {
		t.Fatalf("expected ErrMisconfiguredSchedule, got %v", err)
	}
}
