package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/foodsched/internal/availability"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) > 3 {
		key = key[:3]
	}
	d, ok := weekdays[key]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

// parseHours reads "mon=11:00-14:00,18:00-22:00;sat=22:00-02:00".
// Overnight spans are split at midnight.
func parseHours(value string) ([]availability.WeeklyRule, error) {
	var out []availability.WeeklyRule
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dayStr, spans, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid hours %q: want day=HH:MM-HH:MM", part)
		}
		day, err := parseWeekday(dayStr)
		if err != nil {
			return nil, err
		}
		for _, span := range strings.Split(spans, ",") {
			rules, err := availability.ParseWeeklyRules(day, span)
			if err != nil {
				return nil, err
			}
			out = append(out, rules...)
		}
	}
	return out, nil
}

// parseLocalTime accepts RFC3339 or "2006-01-02 15:04" in loc.
func parseLocalTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD HH:MM)", value)
	}
	return t, nil
}
