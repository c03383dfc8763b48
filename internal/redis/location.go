package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	courierLocationKey   = "couriers:locations"
	courierLocationTsKey = "couriers:locations:updated"
)

// CourierLocation is a courier's last reported position.
type CourierLocation struct {
	CourierID string
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}

// LocationStore handles courier location records in Redis. One record per
// courier, overwritten in place on each report; no history is retained.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation upserts a courier's location using GEOADD and stamps the
// report time in a companion hash.
func (s *LocationStore) UpdateLocation(ctx context.Context, courierID string, lat, lng float64) error {
	if err := s.client.GeoAdd(ctx, courierLocationKey, &redis.GeoLocation{
		Name:      courierID,
		Longitude: lng,
		Latitude:  lat,
	}).Err(); err != nil {
		return err
	}

	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	return s.client.HSet(ctx, courierLocationTsKey, courierID, ts).Err()
}

// LastKnown returns the courier's last reported location, or nil if the
// courier has never reported. Old records are returned as-is; no staleness
// expiry is applied.
func (s *LocationStore) LastKnown(ctx context.Context, courierID string) (*CourierLocation, error) {
	positions, err := s.client.GeoPos(ctx, courierLocationKey, courierID).Result()
	if err != nil {
		return nil, err
	}

	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}

	loc := &CourierLocation{
		CourierID: courierID,
		Lat:       positions[0].Latitude,
		Lng:       positions[0].Longitude,
	}

	ts, err := s.client.HGet(ctx, courierLocationTsKey, courierID).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if nanos, parseErr := strconv.ParseInt(ts, 10, 64); parseErr == nil {
		loc.UpdatedAt = time.Unix(0, nanos)
	}

	return loc, nil
}

// RemoveLocation removes a courier's location record.
func (s *LocationStore) RemoveLocation(ctx context.Context, courierID string) error {
	if err := s.client.ZRem(ctx, courierLocationKey, courierID).Err(); err != nil {
		return err
	}
	return s.client.HDel(ctx, courierLocationTsKey, courierID).Err()
}
