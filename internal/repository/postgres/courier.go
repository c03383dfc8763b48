package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"courier/internal/domain"
	"courier/internal/repository"
)

// CourierRepository is a PostgreSQL implementation of repository.CourierRepository.
type CourierRepository struct {
	q Querier
}

// NewCourierRepository creates a new PostgreSQL courier repository.
func NewCourierRepository(db *sql.DB) *CourierRepository {
	return &CourierRepository{q: db}
}

// NewCourierRepositoryWithTx creates a courier repository using a transaction.
func NewCourierRepositoryWithTx(tx *sql.Tx) *CourierRepository {
	return &CourierRepository{q: tx}
}

// Create adds a new courier.
func (r *CourierRepository) Create(ctx context.Context, courier *domain.Courier) error {
	query := `INSERT INTO couriers (id, name, phone, enabled, available, roles) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		courier.ID,
		courier.Name,
		courier.Phone,
		courier.Enabled,
		courier.Available,
		pq.Array(rolesToStrings(courier.Roles)),
	)
	return err
}

// GetByID retrieves a courier by ID.
func (r *CourierRepository) GetByID(ctx context.Context, id string) (*domain.Courier, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), enabled, available, roles FROM couriers WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByPhone retrieves a courier by phone number.
func (r *CourierRepository) GetByPhone(ctx context.Context, phone string) (*domain.Courier, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), enabled, available, roles FROM couriers WHERE phone = $1`
	return r.getOne(ctx, query, phone)
}

func (r *CourierRepository) getOne(ctx context.Context, query string, arg any) (*domain.Courier, error) {
	var courier domain.Courier
	var roles []string
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&courier.ID,
		&courier.Name,
		&courier.Phone,
		&courier.Enabled,
		&courier.Available,
		pq.Array(&roles),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	courier.Roles = rolesFromStrings(roles)
	return &courier, nil
}

// GetAll retrieves all couriers.
func (r *CourierRepository) GetAll(ctx context.Context) ([]*domain.Courier, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), enabled, available, roles FROM couriers ORDER BY id`
	return r.queryCouriers(ctx, query)
}

// GetAvailable retrieves couriers eligible for assignment. Ordering by ID
// keeps the matcher's tie-breaking deterministic.
func (r *CourierRepository) GetAvailable(ctx context.Context) ([]*domain.Courier, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(phone, ''), enabled, available, roles
		FROM couriers
		WHERE enabled = TRUE AND available = TRUE AND $1 = ANY(roles)
		ORDER BY id
	`
	return r.queryCouriers(ctx, query, string(domain.RoleDeliveryPerson))
}

func (r *CourierRepository) queryCouriers(ctx context.Context, query string, args ...any) ([]*domain.Courier, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var couriers []*domain.Courier
	for rows.Next() {
		var courier domain.Courier
		var roles []string
		if err := rows.Scan(
			&courier.ID,
			&courier.Name,
			&courier.Phone,
			&courier.Enabled,
			&courier.Available,
			pq.Array(&roles),
		); err != nil {
			return nil, err
		}
		courier.Roles = rolesFromStrings(roles)
		couriers = append(couriers, &courier)
	}
	return couriers, rows.Err()
}

// SetAvailability updates the availability flag of a courier.
func (r *CourierRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	query := `UPDATE couriers SET available = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, available, id)
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

func rolesToStrings(roles []domain.CourierRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(roles []string) []domain.CourierRole {
	out := make([]domain.CourierRole, len(roles))
	for i, r := range roles {
		out[i] = domain.CourierRole(r)
	}
	return out
}

// Ensure CourierRepository implements repository.CourierRepository.
var _ repository.CourierRepository = (*CourierRepository)(nil)
