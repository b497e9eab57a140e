package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxResolveSpan bounds a single ResolveOpenIntervals query.
const MaxResolveSpan = 400 * 24 * time.Hour

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ResolveOpenIntervals returns the disjoint, sorted open intervals of s within
// [rangeStart, rangeEnd). Results are clipped to the range.
func ResolveOpenIntervals(s Schedule, rangeStart, rangeEnd time.Time) ([]TimeInterval, error) {
	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return nil, fmt.Errorf("%w: range must be bounded", ErrInvalidRange)
	}
	if !rangeStart.Before(rangeEnd) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange,
			rangeStart.Format(time.RFC3339), rangeEnd.Format(time.RFC3339))
	}
	if rangeEnd.Sub(rangeStart) > MaxResolveSpan {
		return nil, fmt.Errorf("%w: span exceeds %s", ErrInvalidRange, MaxResolveSpan)
	}
	if s.loc == nil {
		return nil, fmt.Errorf("%w: schedule has no timezone", ErrMisconfiguredSchedule)
	}

	open, err := s.weeklyIntervals(rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	for _, c := range s.closing {
		if c.Mode != ModeOpen {
			continue
		}
		if iv, ok := c.Range.clip(rangeStart, rangeEnd); ok {
			open = append(open, iv)
		}
	}
	open = mergeIntervals(open)

	for _, c := range s.closing {
		if c.Mode != ModeClose {
			continue
		}
		open = subtractInterval(open, c.Range)
	}

	for i := range open {
		open[i].Start = open[i].Start.In(s.loc)
		open[i].End = open[i].End.In(s.loc)
	}
	return open, nil
}

// IsOpen reports whether t falls inside an open interval of s.
func IsOpen(s Schedule, t time.Time) (bool, error) {
	ivs, err := ResolveOpenIntervals(s, t, t.Add(time.Minute))
	if err != nil {
		return false, err
	}
	return len(ivs) > 0 && ivs[0].Contains(t), nil
}

// weeklyIntervals expands every weekly rule into concrete local intervals
// overlapping [from, to).
func (s Schedule) weeklyIntervals(from, to time.Time) ([]TimeInterval, error) {
	localFrom := from.In(s.loc)
	localTo := to.In(s.loc)

	var out []TimeInterval
	for _, rule := range s.weekly {
		dtstart := rule.Start.on(localFrom, s.loc)
		rr, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Dtstart:   dtstart,
			Byweekday: []rrule.Weekday{rruleWeekdays[rule.Day]},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: expand %s: %v", ErrMisconfiguredSchedule, rule, err)
		}
		for _, occ := range rr.Between(dtstart, localTo, true) {
			occ = occ.In(s.loc)
			iv := TimeInterval{Start: rule.Start.on(occ, s.loc), End: rule.End.on(occ, s.loc)}
			if clipped, ok := iv.clip(from, to); ok {
				out = append(out, clipped)
			}
		}
	}
	return out, nil
}

// mergeIntervals sorts and joins overlapping or touching intervals.
func mergeIntervals(in []TimeInterval) []TimeInterval {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })
	out := []TimeInterval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtractInterval removes cut from every interval, splitting where needed.
func subtractInterval(in []TimeInterval, cut TimeInterval) []TimeInterval {
	out := make([]TimeInterval, 0, len(in)+1)
	for _, iv := range in {
		if !iv.Overlaps(cut) {
			out = append(out, iv)
			continue
		}
		if iv.Start.Before(cut.Start) {
			out = append(out, TimeInterval{Start: iv.Start, End: cut.Start})
		}
		if cut.End.Before(iv.End) {
			out = append(out, TimeInterval{Start: cut.End, End: iv.End})
		}
	}
	return out
}
