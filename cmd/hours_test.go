package cmd

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/example/foodsched/internal/availability"
)

func TestParseHours(t *testing.T) {
	got, err := parseHours("mon=11:00-14:00,18:00-22:00; Saturday=22:00-02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []availability.WeeklyRule{
		{Day: time.Monday, Start: 11 * 60, End: 14 * 60},
		{Day: time.Monday, Start: 18 * 60, End: 22 * 60},
		{Day: time.Saturday, Start: 22 * 60, End: 24 * 60},
		{Day: time.Sunday, Start: 0, End: 2 * 60},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rule %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParseHoursErrors(t *testing.T) {
	for _, in := range []string{"mon", "xyz=10:00-11:00", "mon=10:00", "tue=10:00-10:00"} {
		if _, err := parseHours(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseLocalTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	got, err := parseLocalTime("2024-06-03 11:30", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	got, err = parseLocalTime("2024-06-03T11:30:00Z", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 3, 11, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, err := parseLocalTime("tomorrow", loc); err == nil {
		t.Fatal("expected error")
	}
}
