package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles courier snapshot caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CourierCacheTTL bounds how stale a cached courier snapshot may get;
// availability flips frequently.
const CourierCacheTTL = 30 * time.Second

const (
	courierCachePrefix  = "cache:courier:"
	availableCourierKey = "available_couriers"
)

// CachedCourier is the cached view of a courier used for match filtering.
type CachedCourier struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Enabled   bool     `json:"enabled"`
	Available bool     `json:"available"`
	Roles     []string `json:"roles"`
}

// GetCourier retrieves a courier snapshot from cache. Returns nil on a miss.
func (s *CacheStore) GetCourier(ctx context.Context, courierID string) (*CachedCourier, error) {
	key := courierCachePrefix + courierID
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var courier CachedCourier
	if err := json.Unmarshal(data, &courier); err != nil {
		return nil, err
	}
	return &courier, nil
}

// SetCourier stores a courier snapshot in cache.
func (s *CacheStore) SetCourier(ctx context.Context, courier *CachedCourier) error {
	key := courierCachePrefix + courier.ID
	data, err := json.Marshal(courier)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, CourierCacheTTL).Err()
}

// InvalidateCourier removes a courier snapshot from cache.
func (s *CacheStore) InvalidateCourier(ctx context.Context, courierID string) error {
	key := courierCachePrefix + courierID
	return s.client.Del(ctx, key).Err()
}

// AddAvailableCourier adds a courier to the available set for fast lookup.
func (s *CacheStore) AddAvailableCourier(ctx context.Context, courierID string) error {
	return s.client.SAdd(ctx, availableCourierKey, courierID).Err()
}

// RemoveAvailableCourier removes a courier from the available set.
func (s *CacheStore) RemoveAvailableCourier(ctx context.Context, courierID string) error {
	return s.client.SRem(ctx, availableCourierKey, courierID).Err()
}

// GetAvailableCouriers returns all courier IDs in the available set.
func (s *CacheStore) GetAvailableCouriers(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, availableCourierKey).Result()
}
