package domain

import "time"

// CancellationStatus represents the state of a cancellation request.
type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "PENDING"
	CancellationStatusAccepted CancellationStatus = "ACCEPTED"
	CancellationStatusRejected CancellationStatus = "REJECTED"
)

// CancellationRequest is a driver's request to be released from an order.
// Several drivers may hold independent PENDING requests for the same order;
// at most one resolves to ACCEPTED per assignment.
type CancellationRequest struct {
	ID         string
	OrderID    string
	DriverID   string
	Status     CancellationStatus
	Reason     string
	CreatedAt  time.Time
	ResolvedAt time.Time
}
