package repository

import (
	"context"
	"time"

	"courier/internal/domain"
)

// DeliveryRepository defines the persistence operations for deliveries.
type DeliveryRepository interface {
	// Create persists a new delivery.
	Create(ctx context.Context, delivery *domain.Delivery) error

	// GetByID retrieves a delivery by ID.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)

	// GetAll retrieves all deliveries.
	GetAll(ctx context.Context) ([]*domain.Delivery, error)

	// GetPendingUnassigned retrieves deliveries still waiting for a courier.
	GetPendingUnassigned(ctx context.Context) ([]*domain.Delivery, error)

	// Update updates an existing delivery.
	Update(ctx context.Context, delivery *domain.Delivery) error

	// UpdateIfStatus writes the delivery only while its stored status
	// still equals expected. Returns ErrConflict when a concurrent
	// writer moved the delivery between the caller's read and this
	// write, so status changes never clobber each other.
	UpdateIfStatus(ctx context.Context, delivery *domain.Delivery, expected domain.DeliveryStatus) error

	// Bind assigns a courier to a delivery with a compare-and-set on the
	// current status: the write succeeds only if the delivery is still
	// PENDING with no courier bound. Returns ErrConflict when the
	// delivery was assigned or cancelled by a concurrent writer.
	Bind(ctx context.Context, deliveryID, courierID string, assignedAt time.Time) error
}
