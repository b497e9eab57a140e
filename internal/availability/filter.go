package availability

import (
	"iter"
	"time"
)

type Reason string

const (
	ReasonOK           Reason = "OK"
	ReasonExpired      Reason = "EXPIRED"
	ReasonNotAvailable Reason = "NOT_AVAILABLE"
)

type ValidationResult struct {
	Accepted bool
	Reason   Reason
}

func accepted() ValidationResult { return ValidationResult{Accepted: true, Reason: ReasonOK} }

func rejected(r Reason) ValidationResult { return ValidationResult{Reason: r} }

// ValidateCandidateTime checks a requested fulfilment instant. Rules are
// applied in order: ordering delay, lead-time horizon, opening hours.
// Rejections are results; only configuration problems are errors.
func ValidateCandidateTime(s Schedule, p AvailabilityPolicy, candidate, now time.Time) (ValidationResult, error) {
	if err := p.Validate(); err != nil {
		return ValidationResult{}, err
	}
	if candidate.Before(now.Add(p.OrderingDelay())) {
		return rejected(ReasonExpired), nil
	}
	if candidate.After(now.Add(p.MaxLeadTime())) {
		return rejected(ReasonNotAvailable), nil
	}
	open, err := IsOpen(s, candidate)
	if err != nil {
		return ValidationResult{}, err
	}
	if !open {
		return rejected(ReasonNotAvailable), nil
	}
	return accepted(), nil
}

// Slots enumerates selectable instants between now+delay and now+horizon.
// Instants sit on the local granularity grid (e.g. :00, :15, :30, :45). The
// sequence holds no state, so ranging over it again yields the same instants.
func Slots(s Schedule, p AvailabilityPolicy, now time.Time) (iter.Seq[time.Time], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	earliest := now.Add(p.OrderingDelay())
	latest := now.Add(p.MaxLeadTime())
	// latest itself is selectable, so resolve one nanosecond past it.
	intervals, err := ResolveOpenIntervals(s, earliest, latest.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	step := p.SlotGranularity()

	return func(yield func(time.Time) bool) {
		for _, iv := range intervals {
			for t := alignUp(iv.Start, step, s.loc); t.Before(iv.End); t = alignUp(t.Add(time.Nanosecond), step, s.loc) {
				if t.After(latest) {
					return
				}
				res, err := ValidateCandidateTime(s, p, t, now)
				if err != nil || !res.Accepted {
					continue
				}
				if !yield(t) {
					return
				}
			}
		}
	}, nil
}

// ListAvailableSlots collects Slots into a slice.
func ListAvailableSlots(s Schedule, p AvailabilityPolicy, now time.Time) ([]time.Time, error) {
	seq, err := Slots(s, p, now)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for t := range seq {
		out = append(out, t)
	}
	return out, nil
}

// alignUp returns the first instant at or after t whose local wall clock is
// a multiple of step counted from local midnight. Grid times inside a DST gap
// do not exist and are skipped; the grid resumes at the zone change. Across a
// fall-back overlap both occurrences of a repeated wall time are on the grid.
func alignUp(t time.Time, step time.Duration, loc *time.Location) time.Time {
	local := t.In(loc)
	wall := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	if rem := wall % step; rem != 0 {
		wall += step - rem
	}
	// Read the rounded wall time with the offset in force at t.
	_, offset := local.Zone()
	y, m, d := local.Date()
	next := time.Date(y, m, d, 0, 0, int(wall/time.Second), 0, time.UTC).
		Add(-time.Duration(offset) * time.Second)
	if _, end := local.ZoneBounds(); !end.IsZero() && !next.Before(end) {
		return alignUp(end, step, loc)
	}
	return next.In(loc)
}
