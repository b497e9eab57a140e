package availability

import "time"

const DefaultPreparationTime = 15 * time.Minute

// PreparationPolicy is the kitchen side of a restaurant's configuration.
type PreparationPolicy struct {
	// Base is the fixed preparation time. Zero or negative falls back to
	// DefaultPreparationTime unless Instant is set.
	Base time.Duration
	// Instant marks pre-made goods: preparation takes no time at all.
	Instant bool
	// Dynamic enables the load adjustment below.
	Dynamic         bool
	PerPendingOrder time.Duration
	// Max caps the dynamic estimate when positive.
	Max time.Duration
}

// LoadContext is supplied by the order-load collaborator.
type LoadContext struct {
	PendingOrders int
}

// EstimatePreparation returns how long the kitchen needs for one more order.
func EstimatePreparation(p PreparationPolicy, load LoadContext) time.Duration {
	if p.Instant {
		return 0
	}
	d := p.Base
	if d <= 0 {
		d = DefaultPreparationTime
	}
	if !p.Dynamic {
		return d
	}
	if load.PendingOrders > 0 && p.PerPendingOrder > 0 {
		d += time.Duration(load.PendingOrders) * p.PerPendingOrder
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}
