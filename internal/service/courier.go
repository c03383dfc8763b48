package service

import (
	"context"

	"courier/internal/domain"
	"courier/internal/redis"
	"courier/internal/repository"
)

// CourierService handles courier-side operations: location reports and
// availability toggles.
type CourierService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	courierRepo   repository.CourierRepository
}

// NewCourierService creates a new CourierService.
func NewCourierService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	courierRepo repository.CourierRepository,
) *CourierService {
	return &CourierService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		courierRepo:   courierRepo,
	}
}

// UpdateLocationRequest contains the parameters for a location report.
type UpdateLocationRequest struct {
	CourierID string
	Lat       float64
	Lng       float64
}

// UpdateLocation upserts the courier's location record and marks the
// courier available: reporting a position is how couriers come on shift.
func (s *CourierService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.CourierID == "" {
		return ErrInvalidCourierID
	}

	if !domain.ValidCoordinate(req.Lat, req.Lng) {
		return ErrInvalidLocation
	}

	if err := s.locationStore.UpdateLocation(ctx, req.CourierID, req.Lat, req.Lng); err != nil {
		return err
	}

	err := s.courierRepo.SetAvailability(ctx, req.CourierID, true)
	if err != nil && err != repository.ErrNotFound {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.AddAvailableCourier(ctx, req.CourierID)

		courier, err := s.courierRepo.GetByID(ctx, req.CourierID)
		if err == nil {
			_ = s.cacheStore.SetCourier(ctx, cachedFromCourier(courier))
		}
	}

	return nil
}

// SetUnavailable takes a courier off shift: clears the availability flag,
// drops the location record and invalidates cached state.
func (s *CourierService) SetUnavailable(ctx context.Context, courierID string) error {
	if courierID == "" {
		return ErrInvalidCourierID
	}

	if err := s.courierRepo.SetAvailability(ctx, courierID, false); err != nil {
		return err
	}

	if err := s.locationStore.RemoveLocation(ctx, courierID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateCourier(ctx, courierID)
		_ = s.cacheStore.RemoveAvailableCourier(ctx, courierID)
	}

	return nil
}

// LastKnownLocation returns the courier's last reported location, or nil if
// the courier never reported one.
func (s *CourierService) LastKnownLocation(ctx context.Context, courierID string) (*redis.CourierLocation, error) {
	if courierID == "" {
		return nil, ErrInvalidCourierID
	}

	return s.locationStore.LastKnown(ctx, courierID)
}

// cachedFromCourier converts a domain courier to its cached snapshot.
func cachedFromCourier(courier *domain.Courier) *redis.CachedCourier {
	roles := make([]string, len(courier.Roles))
	for i, r := range courier.Roles {
		roles[i] = string(r)
	}
	return &redis.CachedCourier{
		ID:        courier.ID,
		Name:      courier.Name,
		Phone:     courier.Phone,
		Enabled:   courier.Enabled,
		Available: courier.Available,
		Roles:     roles,
	}
}
