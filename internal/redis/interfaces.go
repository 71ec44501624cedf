package redis

import (
	"context"
	"time"
)

// DispatchStoreInterface defines the notified-driver set operations.
type DispatchStoreInterface interface {
	MarkNotified(ctx context.Context, orderID, driverID string) (bool, error)
	NotifiedDrivers(ctx context.Context, orderID string) ([]string, error)
	IsNotified(ctx context.Context, orderID, driverID string) (bool, error)
	ClearNotified(ctx context.Context, orderID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ DispatchStoreInterface = (*DispatchStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
