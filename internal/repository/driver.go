package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create persists a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// GetEligible retrieves Active drivers matching the category and vehicle type.
	GetEligible(ctx context.Context, category domain.ServiceCategory, vehicleType domain.VehicleType) ([]*domain.Driver, error)

	// UpdateStatus updates a driver's availability status.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// UpdateFCMToken replaces the driver's push-notification address.
	UpdateFCMToken(ctx context.Context, id, token string) error

	// CreditIncome adds a completed delivery's driver share to the
	// driver's income and balance counters.
	CreditIncome(ctx context.Context, id string, amount float64) error
}
