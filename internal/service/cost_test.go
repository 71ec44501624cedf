package service

import (
	"errors"
	"math"
	"testing"

	"dispatch/internal/config"
)

func defaultPricing() config.PricingConfig {
	return config.PricingConfig{
		BaseCost:             360.80,
		PerLifterCost:        360.80,
		DefaultServiceFeePct: 10,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimate_TwoLiftersTenPercentFee(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	quote, err := estimator.Estimate(10, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(quote.TotalCost, 1082.40) {
		t.Errorf("expected total 1082.40, got %.2f", quote.TotalCost)
	}
	if !almostEqual(quote.DriverShare, 974.16) {
		t.Errorf("expected driver share 974.16, got %.2f", quote.DriverShare)
	}
	if quote.ServiceFeePct != 10 {
		t.Errorf("expected fee pct 10, got %.2f", quote.ServiceFeePct)
	}
}

func TestEstimate_NoLifters(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	quote, err := estimator.Estimate(5, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(quote.TotalCost, 360.80) {
		t.Errorf("expected base cost only, got %.2f", quote.TotalCost)
	}
	if !almostEqual(quote.DriverShare, 324.72) {
		t.Errorf("expected driver share 324.72, got %.2f", quote.DriverShare)
	}
}

func TestEstimate_DistanceDoesNotScaleCost(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	near, _ := estimator.Estimate(1, 1, 10)
	far, _ := estimator.Estimate(250, 1, 10)

	if near.TotalCost != far.TotalCost {
		t.Errorf("cost varies with distance: %.2f vs %.2f", near.TotalCost, far.TotalCost)
	}
}

func TestEstimate_ZeroFeeGivesDriverEverything(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	quote, err := estimator.Estimate(10, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.DriverShare != quote.TotalCost {
		t.Errorf("expected full payout at 0%% fee, got %.2f of %.2f", quote.DriverShare, quote.TotalCost)
	}
}

func TestEstimate_FullFeeGivesDriverNothing(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	quote, err := estimator.Estimate(10, 3, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.DriverShare != 0 {
		t.Errorf("expected zero payout at 100%% fee, got %.2f", quote.DriverShare)
	}
}

func TestEstimate_RejectsInvalidInputs(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	cases := []struct {
		name       string
		distanceKm float64
		lifters    int
		feePct     float64
	}{
		{"negative distance", -1, 0, 10},
		{"negative lifters", 10, -1, 10},
		{"negative fee", 10, 0, -5},
		{"fee above 100", 10, 0, 101},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := estimator.Estimate(tc.distanceKm, tc.lifters, tc.feePct)
			if !errors.Is(err, ErrInvalidCostInput) {
				t.Errorf("expected ErrInvalidCostInput, got %v", err)
			}
		})
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	estimator := NewCostEstimator(defaultPricing())

	first, _ := estimator.Estimate(42, 4, 15)
	for i := 0; i < 10; i++ {
		again, _ := estimator.Estimate(42, 4, 15)
		if again != first {
			t.Fatalf("estimate not deterministic: %+v vs %+v", again, first)
		}
	}
}
