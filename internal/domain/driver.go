package domain

import "time"

// DriverStatus represents the current availability of a driver.
type DriverStatus string

const (
	DriverStatusActive       DriverStatus = "ACTIVE"
	DriverStatusOffline      DriverStatus = "OFFLINE"
	DriverStatusOnDuty       DriverStatus = "ON_DUTY"
	DriverStatusDisconnected DriverStatus = "DISCONNECTED"
)

// VehicleType represents the kind of vehicle a driver operates.
type VehicleType string

const (
	VehicleTypeBike  VehicleType = "BIKE"
	VehicleTypeVan   VehicleType = "VAN"
	VehicleTypeTruck VehicleType = "TRUCK"
)

// ServiceCategory represents the class of work a driver serves.
type ServiceCategory string

const (
	ServiceCategoryDelivery ServiceCategory = "DELIVERY"
	ServiceCategoryMoving   ServiceCategory = "MOVING"
)

// Driver represents a driver in the pool.
type Driver struct {
	ID              string
	Name            string
	Phone           string
	Status          DriverStatus
	VehicleType     VehicleType
	ServiceCategory ServiceCategory
	FCMToken        string
	TotalIncome     float64
	Balance         float64
	CreatedAt       time.Time
}
