// Package availability decides when a restaurant can take an order and what
// timestamps that order is expected to hit. Every function is pure: the
// reference instant is always passed in by the caller.
package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeInterval is the half-open range [Start, End).
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

func (iv TimeInterval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv TimeInterval) Overlaps(o TimeInterval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

func (iv TimeInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv TimeInterval) valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.Start.Before(iv.End)
}

// clip returns the part of iv inside [start, end), if any.
func (iv TimeInterval) clip(start, end time.Time) (TimeInterval, bool) {
	if iv.Start.Before(start) {
		iv.Start = start
	}
	if iv.End.After(end) {
		iv.End = end
	}
	return iv, iv.Start.Before(iv.End)
}

// TimeOfDay counts minutes since local midnight. 24:00 is allowed as an end bound.
type TimeOfDay int

const endOfDay TimeOfDay = 24 * 60

// ParseTimeOfDay accepts "HH:MM" (and "24:00").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// on returns the instant of t on the local calendar date of day.
func (t TimeOfDay) on(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// WeeklyRule opens the restaurant every week on Day between Start and End
// (local time). Rules never span midnight.
type WeeklyRule struct {
	Day   time.Weekday
	Start TimeOfDay
	End   TimeOfDay
}

func (r WeeklyRule) String() string {
	return fmt.Sprintf("%s %s-%s", r.Day, r.Start, r.End)
}

func (r WeeklyRule) validate() error {
	if r.Day < time.Sunday || r.Day > time.Saturday {
		return fmt.Errorf("%w: day %d out of range", ErrMisconfiguredSchedule, r.Day)
	}
	if r.Start < 0 || r.End > endOfDay {
		return fmt.Errorf("%w: rule %s out of day bounds", ErrMisconfiguredSchedule, r)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: rule %s must start before it ends", ErrMisconfiguredSchedule, r)
	}
	return nil
}

// ParseWeeklyRules parses "HH:MM-HH:MM" for the given day. An overnight span
// such as "22:00-02:00" is split into two rules at midnight.
func ParseWeeklyRules(day time.Weekday, span string) ([]WeeklyRule, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(span), "-")
	if !ok {
		return nil, fmt.Errorf("invalid span %q (want HH:MM-HH:MM)", span)
	}
	start, err := ParseTimeOfDay(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimeOfDay(to)
	if err != nil {
		return nil, err
	}
	switch {
	case start < end:
		return []WeeklyRule{{Day: day, Start: start, End: end}}, nil
	case start > end && start < endOfDay:
		rules := []WeeklyRule{{Day: day, Start: start, End: endOfDay}}
		if end > 0 {
			rules = append(rules, WeeklyRule{Day: (day + 1) % 7, Start: 0, End: end})
		}
		return rules, nil
	default:
		return nil, fmt.Errorf("invalid span %q: empty range", span)
	}
}

type ClosingMode string

const (
	ModeClose ClosingMode = "CLOSE"
	ModeOpen  ClosingMode = "OPEN"
)

// ClosingRule overrides the weekly schedule for Range. CLOSE always wins over
// OPEN on overlap.
type ClosingRule struct {
	Range TimeInterval
	Mode  ClosingMode
}

// Schedule is immutable once built with NewSchedule.
type Schedule struct {
	weekly  []WeeklyRule
	closing []ClosingRule
	loc     *time.Location
}

// NewSchedule validates the rules and returns a schedule evaluated in loc.
func NewSchedule(loc *time.Location, weekly []WeeklyRule, closing []ClosingRule) (Schedule, error) {
	if loc == nil {
		return Schedule{}, fmt.Errorf("%w: timezone required", ErrMisconfiguredSchedule)
	}
	rules := make([]WeeklyRule, len(weekly))
	copy(rules, weekly)
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return Schedule{}, err
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Day != rules[j].Day {
			return rules[i].Day < rules[j].Day
		}
		return rules[i].Start < rules[j].Start
	})
	for i := 1; i < len(rules); i++ {
		prev, cur := rules[i-1], rules[i]
		if prev.Day == cur.Day && cur.Start < prev.End {
			return Schedule{}, fmt.Errorf("%w: rules %s and %s overlap", ErrMisconfiguredSchedule, prev, cur)
		}
	}

	overrides := make([]ClosingRule, len(closing))
	copy(overrides, closing)
	for i, c := range overrides {
		if c.Mode != ModeClose && c.Mode != ModeOpen {
			return Schedule{}, fmt.Errorf("%w: closing rule %d has unknown mode %q", ErrMisconfiguredSchedule, i, c.Mode)
		}
		if !c.Range.valid() {
			return Schedule{}, fmt.Errorf("%w: closing rule %d has an empty range", ErrMisconfiguredSchedule, i)
		}
	}
	return Schedule{weekly: rules, closing: overrides, loc: loc}, nil
}

func (s Schedule) Location() *time.Location { return s.loc }

func (s Schedule) WeeklyRules() []WeeklyRule {
	out := make([]WeeklyRule, len(s.weekly))
	copy(out, s.weekly)
	return out
}

func (s Schedule) ClosingRules() []ClosingRule {
	out := make([]ClosingRule, len(s.closing))
	copy(out, s.closing)
	return out
}
