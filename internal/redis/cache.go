package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles driver entity caching and availability tracking in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverCacheTTL is short because availability flips frequently.
const DriverCacheTTL = 30 * time.Second

const (
	driverCachePrefix  = "cache:driver:"
	availablePrefix    = "available:"
	heartbeatKeyPrefix = "heartbeat:driver:"
)

// CachedDriver represents a cached driver entity.
type CachedDriver struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Status          string `json:"status"`
	VehicleType     string `json:"vehicle_type"`
	ServiceCategory string `json:"service_category"`
	FCMToken        string `json:"fcm_token"`
}

// GetDriver retrieves a driver from cache. A nil result is a cache miss.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// GetDriversBatch retrieves multiple drivers from cache using a pipeline.
// Returns a map of driverID -> CachedDriver, and a slice of missing IDs.
func (s *CacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error) {
	if len(driverIDs) == 0 {
		return make(map[string]*CachedDriver), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(driverIDs))
	for _, id := range driverIDs {
		cmds[id] = pipe.Get(ctx, driverCachePrefix+id)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, driverIDs, err
	}

	result := make(map[string]*CachedDriver)
	var missing []string
	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}
		var driver CachedDriver
		if err := json.Unmarshal(data, &driver); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &driver
	}

	return result, missing, nil
}

func availableKey(category string) string {
	return availablePrefix + category
}

// AddAvailableDriver adds a driver to the availability set for its category.
func (s *CacheStore) AddAvailableDriver(ctx context.Context, category, driverID string) error {
	return s.client.SAdd(ctx, availableKey(category), driverID).Err()
}

// RemoveAvailableDriver removes a driver from the availability set.
func (s *CacheStore) RemoveAvailableDriver(ctx context.Context, category, driverID string) error {
	return s.client.SRem(ctx, availableKey(category), driverID).Err()
}

// GetAvailableDrivers returns the driver IDs available for a category.
func (s *CacheStore) GetAvailableDrivers(ctx context.Context, category string) ([]string, error) {
	return s.client.SMembers(ctx, availableKey(category)).Result()
}

// RecordHeartbeat refreshes the driver's liveness key. The key expiring
// means the driver has not been heard from within the TTL.
func (s *CacheStore) RecordHeartbeat(ctx context.Context, driverID string, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s", heartbeatKeyPrefix, driverID)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsAlive checks whether the driver's liveness key is still present.
func (s *CacheStore) IsAlive(ctx context.Context, driverID string) (bool, error) {
	key := fmt.Sprintf("%s%s", heartbeatKeyPrefix, driverID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
