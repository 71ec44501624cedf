package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// CancellationRepository defines the persistence operations for
// driver cancellation requests.
type CancellationRepository interface {
	// Create persists a new PENDING cancellation request.
	Create(ctx context.Context, req *domain.CancellationRequest) error

	// GetByID retrieves a request by ID.
	GetByID(ctx context.Context, id string) (*domain.CancellationRequest, error)

	// GetByOrderID retrieves all requests for an order.
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.CancellationRequest, error)

	// Resolve moves a PENDING request to ACCEPTED or REJECTED. It returns
	// true only when this call performed the resolution; false means the
	// request was already resolved.
	Resolve(ctx context.Context, id string, status domain.CancellationStatus, at time.Time) (bool, error)

	// RejectOtherPending rejects every PENDING request for the order except
	// the given one.
	RejectOtherPending(ctx context.Context, orderID, exceptID string, at time.Time) error
}
