package availability

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	// ModeTarget computes backwards from the delivery time the customer picked.
	ModeTarget Mode = "target"
	// ModeASAP computes forwards from the earliest moment preparation can start.
	ModeASAP Mode = "asap"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTarget:
		return ModeTarget, nil
	case ModeASAP, "":
		return ModeASAP, nil
	default:
		return "", fmt.Errorf("unknown timeline mode %q", s)
	}
}

const (
	MilestonePreparationStart  = "preparation_start"
	MilestonePreparationEnd    = "preparation_end"
	MilestoneEstimatedDelivery = "estimated_delivery"
)

type Milestone struct {
	Label string
	At    time.Time
}

// Timeline holds the expected milestones of one order.
type Timeline struct {
	Mode              Mode
	PreparationStart  time.Time
	PreparationEnd    time.Time
	EstimatedDelivery time.Time
	PreparationTime   time.Duration
	ShippingTime      time.Duration
}

// Milestones lists the timestamps in lifecycle order.
func (t Timeline) Milestones() []Milestone {
	return []Milestone{
		{Label: MilestonePreparationStart, At: t.PreparationStart},
		{Label: MilestonePreparationEnd, At: t.PreparationEnd},
		{Label: MilestoneEstimatedDelivery, At: t.EstimatedDelivery},
	}
}

// ComputeTimeline maps one instant to the order milestones. For ModeTarget, at
// is the requested delivery time; for ModeASAP it is the preparation start
// (see ASAPStart). No feasibility check is made here.
func ComputeTimeline(mode Mode, at time.Time, preparation, shipping time.Duration) Timeline {
	if preparation < 0 {
		preparation = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	t := Timeline{Mode: mode, PreparationTime: preparation, ShippingTime: shipping}
	if mode == ModeTarget {
		t.EstimatedDelivery = at
		t.PreparationEnd = at.Add(-shipping)
		t.PreparationStart = t.PreparationEnd.Add(-preparation)
		return t
	}
	t.PreparationStart = at
	t.PreparationEnd = at.Add(preparation)
	t.EstimatedDelivery = t.PreparationEnd.Add(shipping)
	return t
}
