package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order together with its initial history entry.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID, including its status history.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByAccessToken retrieves an order by its customer access token.
	GetByAccessToken(ctx context.Context, token string) (*domain.Order, error)

	// GetAll retrieves recent orders.
	GetAll(ctx context.Context) ([]*domain.Order, error)

	// Update updates an existing order's mutable fields.
	Update(ctx context.Context, order *domain.Order) error

	// AppendHistory records one status-history entry for the order.
	AppendHistory(ctx context.Context, orderID string, change domain.StatusChange) error

	// AssignDriver atomically claims an unassigned, confirmed order for the
	// driver. It returns true only when this call performed the assignment.
	AssignDriver(ctx context.Context, orderID, driverID string, at time.Time) (bool, error)

	// MarkViewed sets is_viewed/viewed_at the first time a customer opens
	// the order. Subsequent calls are no-ops.
	MarkViewed(ctx context.Context, orderID string, at time.Time) error
}
