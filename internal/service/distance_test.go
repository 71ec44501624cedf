package service

import (
	"context"
	"testing"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Tashkent city center to Chirchiq, roughly 30 km apart.
	origin := Coordinates{Lat: 41.3111, Lng: 69.2797}
	destination := Coordinates{Lat: 41.4689, Lng: 69.5822}

	km := haversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	if km < 25 || km > 35 {
		t.Errorf("expected roughly 30 km, got %.1f", km)
	}
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	if km := haversineKm(41.3, 69.2, 41.3, 69.2); km != 0 {
		t.Errorf("expected 0 km, got %f", km)
	}
}

func TestHaversineProvider_AppliesRoadFactor(t *testing.T) {
	provider := NewHaversineDistanceProvider()

	origin := Coordinates{Lat: 41.3111, Lng: 69.2797}
	destination := Coordinates{Lat: 41.4689, Lng: 69.5822}

	estimate, err := provider.Estimate(context.Background(), origin, destination)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	straight := haversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	if estimate.DistanceKm <= straight {
		t.Errorf("road estimate %.1f should exceed straight-line %.1f", estimate.DistanceKm, straight)
	}
	if estimate.DurationMin <= 0 {
		t.Error("expected a positive duration")
	}
}
