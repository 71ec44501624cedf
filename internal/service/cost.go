package service

import (
	"math"

	"dispatch/internal/config"
)

// CostEstimator computes trip cost and driver payout from load parameters.
// The formula is flat with respect to distance: distance is recorded on the
// order but does not scale the cost until a per-km rate is configured.
type CostEstimator struct {
	cfg config.PricingConfig
}

// NewCostEstimator creates a new CostEstimator.
func NewCostEstimator(cfg config.PricingConfig) *CostEstimator {
	return &CostEstimator{cfg: cfg}
}

// Quote is the result of a cost estimate.
type Quote struct {
	TotalCost     float64
	DriverShare   float64
	ServiceFeePct float64
}

// Estimate computes the total cost and the driver's share. It is a pure
// function: deterministic for given inputs, no side effects. Negative
// distance or lifter count is rejected before any state is touched.
func (e *CostEstimator) Estimate(distanceKm float64, lifterCount int, serviceFeePct float64) (Quote, error) {
	if distanceKm < 0 || lifterCount < 0 {
		return Quote{}, ErrInvalidCostInput
	}
	if serviceFeePct < 0 || serviceFeePct > 100 {
		return Quote{}, ErrInvalidCostInput
	}

	total := e.cfg.BaseCost + e.cfg.PerLifterCost*float64(lifterCount)
	share := total * (1 - serviceFeePct/100)

	return Quote{
		TotalCost:     roundCurrency(total),
		DriverShare:   roundCurrency(share),
		ServiceFeePct: serviceFeePct,
	}, nil
}

// roundCurrency rounds to two decimal places.
func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
