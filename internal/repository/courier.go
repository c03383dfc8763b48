package repository

import (
	"context"

	"courier/internal/domain"
)

// CourierRepository defines the persistence operations for couriers.
type CourierRepository interface {
	// Create adds a new courier.
	Create(ctx context.Context, courier *domain.Courier) error

	// GetByID retrieves a courier by ID.
	GetByID(ctx context.Context, id string) (*domain.Courier, error)

	// GetByPhone retrieves a courier by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Courier, error)

	// GetAll retrieves all couriers.
	GetAll(ctx context.Context) ([]*domain.Courier, error)

	// GetAvailable retrieves couriers that are enabled, marked available
	// and hold the delivery role, ordered by ID ascending.
	GetAvailable(ctx context.Context) ([]*domain.Courier, error)

	// SetAvailability updates the availability flag of a courier.
	SetAvailability(ctx context.Context, id string, available bool) error
}
