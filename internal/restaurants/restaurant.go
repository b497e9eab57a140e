// Package restaurants stores restaurant configuration: weekly hours, closing
// rules and the ordering, kitchen and shipping policies.
package restaurants

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/routing"
)

// ItemsPerPage is the page size of the public restaurant listing.
const ItemsPerPage = 21

type Restaurant struct {
	ID       int64
	Name     string
	Timezone string
	Enabled  bool
	Location routing.GeoPoint

	Policy      availability.AvailabilityPolicy
	Preparation availability.PreparationPolicy
	Shipping    availability.ShippingPolicy

	Weekly  []availability.WeeklyRule
	Closing []availability.ClosingRule

	CreatedAt time.Time
}

// Schedule builds the availability schedule in the restaurant's timezone.
func (r Restaurant) Schedule() (availability.Schedule, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil || r.Timezone == "" {
		return availability.Schedule{}, fmt.Errorf("%w: unknown timezone %q", availability.ErrMisconfiguredSchedule, r.Timezone)
	}
	return availability.NewSchedule(loc, r.Weekly, r.Closing)
}

func (r Restaurant) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name required")
	}
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if err := r.Policy.Validate(); err != nil {
		return err
	}
	_, err := r.Schedule()
	return err
}

// Defaults fills zero policies with the service defaults.
func (r Restaurant) Defaults() Restaurant {
	if r.Policy == (availability.AvailabilityPolicy{}) {
		r.Policy = availability.DefaultPolicy
	}
	if r.Preparation.Base == 0 && !r.Preparation.Instant {
		r.Preparation.Base = availability.DefaultPreparationTime
	}
	if r.Shipping.Multiplier == 0 {
		r.Shipping.Multiplier = 1
	}
	return r
}

// Listing is a restaurant with its opening state at a given instant.
type Listing struct {
	Restaurant  Restaurant
	Open        bool
	NextOpening time.Time // zero when nothing opens within the search horizon

	// ScheduleErr is set when the stored configuration cannot be turned into
	// a schedule. Such restaurants are listed as closed.
	ScheduleErr error
}

// SortForListing orders restaurants for display: enabled before disabled,
// open before closed, then by soonest next opening. Logging misconfigured
// entries is left to the caller.
func SortForListing(rs []Restaurant, now time.Time, horizon time.Duration) []Listing {
	out := make([]Listing, 0, len(rs))
	for _, r := range rs {
		l := Listing{Restaurant: r}
		s, err := r.Schedule()
		if err != nil {
			l.ScheduleErr = err
			out = append(out, l)
			continue
		}
		if next, err := availability.FindNextOpening(s, now, horizon); err == nil {
			l.NextOpening = next
			l.Open = next.Equal(now)
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Restaurant.Enabled != b.Restaurant.Enabled {
			return a.Restaurant.Enabled
		}
		if a.Open != b.Open {
			return a.Open
		}
		if a.NextOpening.IsZero() != b.NextOpening.IsZero() {
			return !a.NextOpening.IsZero()
		}
		return a.NextOpening.Before(b.NextOpening)
	})
	return out
}

// Paginate returns the 1-based page of items and the page count.
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	if perPage < 1 {
		perPage = ItemsPerPage
	}
	pages := (len(items) + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil, pages
	}
	end := min(start+perPage, len(items))
	return items[start:end], pages
}
