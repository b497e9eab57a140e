package availability

import (
	"fmt"
	"time"
)

// DefaultSearchHorizon bounds FindNextOpening when callers have no better idea.
const DefaultSearchHorizon = 28 * 24 * time.Hour

const searchWindow = 7 * 24 * time.Hour

// FindNextOpening returns from itself when s is open at from, otherwise the
// earliest opening instant after it. It resolves one week at a time and gives
// up with ErrNotFound once horizon is exhausted.
func FindNextOpening(s Schedule, from time.Time, horizon time.Duration) (time.Time, error) {
	if from.IsZero() {
		return time.Time{}, fmt.Errorf("%w: reference instant required", ErrInvalidRange)
	}
	if horizon <= 0 {
		return time.Time{}, fmt.Errorf("%w: horizon must be positive", ErrInvalidRange)
	}

	limit := from.Add(horizon)
	for start := from; start.Before(limit); {
		end := start.Add(searchWindow)
		if end.After(limit) {
			end = limit
		}
		ivs, err := ResolveOpenIntervals(s, start, end)
		if err != nil {
			return time.Time{}, err
		}
		if len(ivs) > 0 {
			return ivs[0].Start, nil
		}
		start = end
	}
	return time.Time{}, fmt.Errorf("%w: within %s of %s", ErrNotFound, horizon, from.Format(time.RFC3339))
}

// ASAPStart is max(now, next opening): the earliest moment preparation can
// begin for an order placed now.
func ASAPStart(s Schedule, now time.Time, horizon time.Duration) (time.Time, error) {
	return FindNextOpening(s, now, horizon)
}
