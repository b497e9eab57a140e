// Package routing estimates courier trips between a restaurant and a
// delivery address.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/example/foodsched/internal/availability"
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("invalid coordinates %f,%f", p.Lat, p.Lng)
	}
	return nil
}

type Estimator interface {
	Estimate(ctx context.Context, from, to GeoPoint) (availability.RouteEstimate, error)
}

const earthRadiusMeters = 6371000.0

// Haversine estimates distance only; the shipping calculator derives a
// duration from the restaurant's fallback speed.
type Haversine struct{}

func (Haversine) Estimate(_ context.Context, from, to GeoPoint) (availability.RouteEstimate, error) {
	if err := from.Validate(); err != nil {
		return availability.RouteEstimate{}, err
	}
	if err := to.Validate(); err != nil {
		return availability.RouteEstimate{}, err
	}
	return availability.RouteEstimate{DistanceMeters: Distance(from, to)}, nil
}

// Distance is the great-circle distance in meters.
func Distance(a, b GeoPoint) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Fallback asks Primary first and Secondary when Primary fails.
type Fallback struct {
	Primary   Estimator
	Secondary Estimator
	Log       *slog.Logger
}

func (f Fallback) Estimate(ctx context.Context, from, to GeoPoint) (availability.RouteEstimate, error) {
	est, err := f.Primary.Estimate(ctx, from, to)
	if err == nil {
		return est, nil
	}
	if ctx.Err() != nil {
		return availability.RouteEstimate{}, err
	}
	log := f.Log
	if log == nil {
		log = slog.Default()
	}
	log.Warn("routing: primary estimator failed, using fallback", slog.Any("error", err))
	return f.Secondary.Estimate(ctx, from, to)
}
