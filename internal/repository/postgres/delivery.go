package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"courier/internal/domain"
	"courier/internal/repository"
)

// DeliveryRepository is a PostgreSQL implementation of repository.DeliveryRepository.
type DeliveryRepository struct {
	q Querier
}

// NewDeliveryRepository creates a new PostgreSQL delivery repository.
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{q: db}
}

// NewDeliveryRepositoryWithTx creates a delivery repository using a transaction.
func NewDeliveryRepositoryWithTx(tx *sql.Tx) *DeliveryRepository {
	return &DeliveryRepository{q: tx}
}

const deliveryColumns = `id, sender_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, package_weight, status, courier_id, created_at, assigned_at, started_at, delivered_at, cancelled_at, cancel_reason`

// Create persists a new delivery.
func (r *DeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		delivery.ID,
		delivery.SenderID,
		delivery.PickupLat,
		delivery.PickupLng,
		delivery.DropoffLat,
		delivery.DropoffLng,
		delivery.PackageWeight,
		delivery.Status,
		nullString(delivery.CourierID),
		delivery.CreatedAt,
		nullTime(delivery.AssignedAt),
		nullTime(delivery.StartedAt),
		nullTime(delivery.DeliveredAt),
		nullTime(delivery.CancelledAt),
		nullString(delivery.CancelReason),
	)

	return err
}

// GetByID retrieves a delivery by ID.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	delivery, err := scanDelivery(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return delivery, nil
}

// GetAll retrieves all deliveries.
func (r *DeliveryRepository) GetAll(ctx context.Context) ([]*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY created_at DESC LIMIT 100`
	return r.queryDeliveries(ctx, query)
}

// GetPendingUnassigned retrieves deliveries still waiting for a courier,
// oldest first so the sweep drains the backlog in arrival order.
func (r *DeliveryRepository) GetPendingUnassigned(ctx context.Context) ([]*domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + ` FROM deliveries
		WHERE status = $1 AND courier_id IS NULL
		ORDER BY created_at ASC
	`
	return r.queryDeliveries(ctx, query, domain.DeliveryStatusPending)
}

func (r *DeliveryRepository) queryDeliveries(ctx context.Context, query string, args ...any) ([]*domain.Delivery, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// Update updates an existing delivery.
func (r *DeliveryRepository) Update(ctx context.Context, delivery *domain.Delivery) error {
	query := `
		UPDATE deliveries
		SET sender_id = $1, pickup_lat = $2, pickup_lng = $3, dropoff_lat = $4, dropoff_lng = $5, package_weight = $6, status = $7, courier_id = $8, assigned_at = $9, started_at = $10, delivered_at = $11, cancelled_at = $12, cancel_reason = $13
		WHERE id = $14
	`

	result, err := r.q.ExecContext(ctx, query,
		delivery.SenderID,
		delivery.PickupLat,
		delivery.PickupLng,
		delivery.DropoffLat,
		delivery.DropoffLng,
		delivery.PackageWeight,
		delivery.Status,
		nullString(delivery.CourierID),
		nullTime(delivery.AssignedAt),
		nullTime(delivery.StartedAt),
		nullTime(delivery.DeliveredAt),
		nullTime(delivery.CancelledAt),
		nullString(delivery.CancelReason),
		delivery.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateIfStatus updates a delivery with a compare-and-set on the status the
// caller last read. Zero rows affected means either the delivery vanished or
// another writer changed its status first; a follow-up read tells the two
// apart.
func (r *DeliveryRepository) UpdateIfStatus(ctx context.Context, delivery *domain.Delivery, expected domain.DeliveryStatus) error {
	query := `
		UPDATE deliveries
		SET sender_id = $1, pickup_lat = $2, pickup_lng = $3, dropoff_lat = $4, dropoff_lng = $5, package_weight = $6, status = $7, courier_id = $8, assigned_at = $9, started_at = $10, delivered_at = $11, cancelled_at = $12, cancel_reason = $13
		WHERE id = $14 AND status = $15
	`

	result, err := r.q.ExecContext(ctx, query,
		delivery.SenderID,
		delivery.PickupLat,
		delivery.PickupLng,
		delivery.DropoffLat,
		delivery.DropoffLng,
		delivery.PackageWeight,
		delivery.Status,
		nullString(delivery.CourierID),
		nullTime(delivery.AssignedAt),
		nullTime(delivery.StartedAt),
		nullTime(delivery.DeliveredAt),
		nullTime(delivery.CancelledAt),
		nullString(delivery.CancelReason),
		delivery.ID,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, delivery.ID); err != nil {
			return err
		}
		return repository.ErrConflict
	}

	return nil
}

// Bind assigns a courier to a delivery iff it is still PENDING and
// unassigned. The status check inside the UPDATE is the compare-and-set
// that keeps concurrent matchers from both binding the same delivery.
func (r *DeliveryRepository) Bind(ctx context.Context, deliveryID, courierID string, assignedAt time.Time) error {
	query := `
		UPDATE deliveries
		SET status = $1, courier_id = $2, assigned_at = $3
		WHERE id = $4 AND status = $5 AND courier_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.DeliveryStatusApproved,
		courierID,
		assignedAt,
		deliveryID,
		domain.DeliveryStatusPending,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing delivery from a lost race.
		if _, err := r.GetByID(ctx, deliveryID); err != nil {
			return err
		}
		return repository.ErrConflict
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var delivery domain.Delivery
	var courierID sql.NullString
	var assignedAt, startedAt, deliveredAt, cancelledAt sql.NullTime
	var cancelReason sql.NullString

	err := row.Scan(
		&delivery.ID,
		&delivery.SenderID,
		&delivery.PickupLat,
		&delivery.PickupLng,
		&delivery.DropoffLat,
		&delivery.DropoffLng,
		&delivery.PackageWeight,
		&delivery.Status,
		&courierID,
		&delivery.CreatedAt,
		&assignedAt,
		&startedAt,
		&deliveredAt,
		&cancelledAt,
		&cancelReason,
	)
	if err != nil {
		return nil, err
	}

	if courierID.Valid {
		delivery.CourierID = courierID.String
	}
	if assignedAt.Valid {
		delivery.AssignedAt = assignedAt.Time
	}
	if startedAt.Valid {
		delivery.StartedAt = startedAt.Time
	}
	if deliveredAt.Valid {
		delivery.DeliveredAt = deliveredAt.Time
	}
	if cancelledAt.Valid {
		delivery.CancelledAt = cancelledAt.Time
	}
	if cancelReason.Valid {
		delivery.CancelReason = cancelReason.String
	}

	return &delivery, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// Ensure DeliveryRepository implements repository.DeliveryRepository.
var _ repository.DeliveryRepository = (*DeliveryRepository)(nil)
