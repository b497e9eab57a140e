package availability

import (
	"math"
	"time"
)

const defaultFallbackSpeedKmh = 15.0

// RouteEstimate is what the routing collaborator knows about a trip.
// Duration may be zero when only the distance is known.
type RouteEstimate struct {
	DistanceMeters float64
	Duration       time.Duration
}

// ShippingPolicy holds restaurant-specific adjustments to travel estimates.
type ShippingPolicy struct {
	Multiplier       float64
	Minimum          time.Duration
	FallbackSpeedKmh float64
}

// EstimateShipping turns a route estimate into a transport duration rounded
// up to the minute.
func EstimateShipping(p ShippingPolicy, route RouteEstimate) time.Duration {
	d := route.Duration
	if d <= 0 && route.DistanceMeters > 0 {
		speed := p.FallbackSpeedKmh
		if speed <= 0 {
			speed = defaultFallbackSpeedKmh
		}
		hours := (route.DistanceMeters / 1000) / speed
		d = time.Duration(hours * float64(time.Hour))
	}
	if d < 0 {
		d = 0
	}
	if p.Multiplier > 0 {
		d = time.Duration(math.Round(float64(d) * p.Multiplier))
	}
	if d < p.Minimum {
		d = p.Minimum
	}
	if rem := d % time.Minute; rem != 0 {
		d += time.Minute - rem
	}
	return d
}
