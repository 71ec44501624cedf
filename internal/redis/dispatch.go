package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DispatchStore tracks, per order, which drivers have already been notified
// in the current broadcast cycle. Membership lives in Redis so the
// at-most-once guarantee holds across service instances.
type DispatchStore struct {
	client *redis.Client
}

// NewDispatchStore creates a new DispatchStore.
func NewDispatchStore(client *redis.Client) *DispatchStore {
	return &DispatchStore{client: client}
}

func notifiedKey(orderID string) string {
	return fmt.Sprintf("dispatch:notified:%s", orderID)
}

// MarkNotified test-and-inserts the driver into the order's notified set.
// SADD is atomic: it returns 1 only for the caller that inserted the member,
// so exactly one concurrent broadcast may send to a given driver.
func (s *DispatchStore) MarkNotified(ctx context.Context, orderID, driverID string) (bool, error) {
	added, err := s.client.SAdd(ctx, notifiedKey(orderID), driverID).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// NotifiedDrivers returns the drivers already notified for the order.
func (s *DispatchStore) NotifiedDrivers(ctx context.Context, orderID string) ([]string, error) {
	return s.client.SMembers(ctx, notifiedKey(orderID)).Result()
}

// IsNotified checks whether the driver is in the order's notified set.
func (s *DispatchStore) IsNotified(ctx context.Context, orderID, driverID string) (bool, error) {
	return s.client.SIsMember(ctx, notifiedKey(orderID), driverID).Result()
}

// ClearNotified discards the order's notified set entirely. Called when the
// order leaves the dispatch pool; a re-entering order starts from empty.
func (s *DispatchStore) ClearNotified(ctx context.Context, orderID string) error {
	return s.client.Del(ctx, notifiedKey(orderID)).Err()
}
