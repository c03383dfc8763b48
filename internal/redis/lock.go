package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireCourierLock attempts to acquire a lock for the given courier.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireCourierLock(ctx context.Context, courierID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:courier:%s", courierID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseCourierLock releases the lock for the given courier.
func (s *LockStore) ReleaseCourierLock(ctx context.Context, courierID string) error {
	key := fmt.Sprintf("lock:courier:%s", courierID)

	return s.client.Del(ctx, key).Err()
}

// AcquireDeliveryLock attempts to acquire a matching lock for the given
// delivery, so the immediate path and the sweep never match the same
// delivery at once.
func (s *LockStore) AcquireDeliveryLock(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:delivery:%s", deliveryID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseDeliveryLock releases the matching lock for the given delivery.
func (s *LockStore) ReleaseDeliveryLock(ctx context.Context, deliveryID string) error {
	key := fmt.Sprintf("lock:delivery:%s", deliveryID)

	return s.client.Del(ctx, key).Err()
}
