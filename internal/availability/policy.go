package availability

import (
	"fmt"
	"time"
)

const maxLeadTimeDays = 365

// AvailabilityPolicy governs how far ahead an order may be placed and at
// what granularity slots are offered.
type AvailabilityPolicy struct {
	OrderingDelayMinutes   int
	MaxLeadTimeDays        int
	SlotGranularityMinutes int
}

// DefaultPolicy mirrors the restaurant defaults used when nothing is configured.
var DefaultPolicy = AvailabilityPolicy{
	OrderingDelayMinutes:   0,
	MaxLeadTimeDays:        7,
	SlotGranularityMinutes: 15,
}

func (p AvailabilityPolicy) Validate() error {
	if p.OrderingDelayMinutes < 0 {
		return fmt.Errorf("%w: ordering delay must be >= 0", ErrMisconfiguredSchedule)
	}
	if p.MaxLeadTimeDays < 1 || p.MaxLeadTimeDays > maxLeadTimeDays {
		return fmt.Errorf("%w: max lead time must be between 1 and %d days", ErrMisconfiguredSchedule, maxLeadTimeDays)
	}
	if p.SlotGranularityMinutes < 1 {
		return fmt.Errorf("%w: slot granularity must be >= 1 minute", ErrMisconfiguredSchedule)
	}
	return nil
}

func (p AvailabilityPolicy) OrderingDelay() time.Duration {
	return time.Duration(p.OrderingDelayMinutes) * time.Minute
}

func (p AvailabilityPolicy) MaxLeadTime() time.Duration {
	return time.Duration(p.MaxLeadTimeDays) * 24 * time.Hour
}

func (p AvailabilityPolicy) SlotGranularity() time.Duration {
	return time.Duration(p.SlotGranularityMinutes) * time.Minute
}
