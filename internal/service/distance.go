package service

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"
)

// Coordinates is a point on the map.
type Coordinates struct {
	Lat float64
	Lng float64
}

// DistanceEstimate is the distance provider's answer for an origin/destination pair.
type DistanceEstimate struct {
	DistanceKm  float64
	DurationMin float64
}

// DistanceProvider computes driving distance and duration between two points.
// Implementations must distinguish "no route" from "provider unavailable":
// the latter must never be silently replaced with a zero distance.
type DistanceProvider interface {
	Estimate(ctx context.Context, origin, destination Coordinates) (DistanceEstimate, error)
}

// GoogleDistanceProvider computes estimates via the Distance Matrix API.
type GoogleDistanceProvider struct {
	client *maps.Client
}

// NewGoogleDistanceProvider creates a provider with the given API key.
func NewGoogleDistanceProvider(apiKey string) (*GoogleDistanceProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleDistanceProvider{client: client}, nil
}

// Estimate calls the Distance Matrix API for a single origin/destination pair.
func (p *GoogleDistanceProvider) Estimate(ctx context.Context, origin, destination Coordinates) (DistanceEstimate, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", origin.Lat, origin.Lng)},
		Destinations: []string{fmt.Sprintf("%f,%f", destination.Lat, destination.Lng)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	resp, err := p.client.DistanceMatrix(ctx, req)
	if err != nil {
		return DistanceEstimate{}, fmt.Errorf("%w: %v", ErrDistanceProviderUnavailable, err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return DistanceEstimate{}, ErrNoRouteFound
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" {
		return DistanceEstimate{}, ErrNoRouteFound
	}

	return DistanceEstimate{
		DistanceKm:  float64(element.Distance.Meters) / 1000,
		DurationMin: element.Duration.Minutes(),
	}, nil
}

// HaversineDistanceProvider is a local fallback used when no Maps API key is
// configured. It applies a road-shape factor to the great-circle distance
// and derives duration from an average urban speed.
type HaversineDistanceProvider struct {
	RoadFactor  float64 // straight-line to road-distance multiplier
	AvgSpeedKmh float64
}

// NewHaversineDistanceProvider creates a fallback provider with defaults.
func NewHaversineDistanceProvider() *HaversineDistanceProvider {
	return &HaversineDistanceProvider{
		RoadFactor:  1.3,
		AvgSpeedKmh: 30,
	}
}

// Estimate computes a haversine-based approximation.
func (p *HaversineDistanceProvider) Estimate(ctx context.Context, origin, destination Coordinates) (DistanceEstimate, error) {
	km := haversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng) * p.RoadFactor
	return DistanceEstimate{
		DistanceKm:  km,
		DurationMin: km / p.AvgSpeedKmh * 60,
	}, nil
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
