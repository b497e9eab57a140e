package availability

import "time"

// GetOpenIntervals is ResolveOpenIntervals taking the query as an interval.
func GetOpenIntervals(s Schedule, r TimeInterval) ([]TimeInterval, error) {
	return ResolveOpenIntervals(s, r.Start, r.End)
}

// GetNextOpening searches DefaultSearchHorizon ahead of from.
func GetNextOpening(s Schedule, from time.Time) (time.Time, error) {
	return FindNextOpening(s, from, DefaultSearchHorizon)
}
