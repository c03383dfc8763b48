package repository

import (
	"context"

	"courier/internal/domain"
)

// MissionRepository defines the persistence operations for missions.
type MissionRepository interface {
	// Create persists a new mission.
	Create(ctx context.Context, mission *domain.Mission) error

	// GetByID retrieves a mission by ID.
	GetByID(ctx context.Context, id string) (*domain.Mission, error)

	// GetAll retrieves all missions.
	GetAll(ctx context.Context) ([]*domain.Mission, error)

	// Update updates an existing mission.
	Update(ctx context.Context, mission *domain.Mission) error

	// GetActiveByDeliveryID retrieves the non-terminal mission for a
	// delivery. Returns nil if no active mission exists.
	GetActiveByDeliveryID(ctx context.Context, deliveryID string) (*domain.Mission, error)
}
