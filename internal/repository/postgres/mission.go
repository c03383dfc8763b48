package postgres

import (
	"context"
	"database/sql"
	"errors"

	"courier/internal/domain"
	"courier/internal/repository"
)

// MissionRepository is a PostgreSQL implementation of repository.MissionRepository.
type MissionRepository struct {
	q Querier
}

// NewMissionRepository creates a new PostgreSQL mission repository.
func NewMissionRepository(db *sql.DB) *MissionRepository {
	return &MissionRepository{q: db}
}

// NewMissionRepositoryWithTx creates a mission repository using a transaction.
func NewMissionRepositoryWithTx(tx *sql.Tx) *MissionRepository {
	return &MissionRepository{q: tx}
}

const missionColumns = `id, delivery_id, courier_id, status, notes, created_at, started_at, completed_at`

// Create persists a new mission.
func (r *MissionRepository) Create(ctx context.Context, mission *domain.Mission) error {
	query := `
		INSERT INTO missions (` + missionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		mission.ID,
		mission.DeliveryID,
		mission.CourierID,
		mission.Status,
		nullString(mission.Notes),
		mission.CreatedAt,
		nullTime(mission.StartedAt),
		nullTime(mission.CompletedAt),
	)

	return err
}

// GetByID retrieves a mission by ID.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*domain.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE id = $1`

	mission, err := scanMission(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return mission, nil
}

// GetAll retrieves all missions.
func (r *MissionRepository) GetAll(ctx context.Context) ([]*domain.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []*domain.Mission
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, mission)
	}
	return missions, rows.Err()
}

// Update updates an existing mission.
func (r *MissionRepository) Update(ctx context.Context, mission *domain.Mission) error {
	query := `
		UPDATE missions
		SET delivery_id = $1, courier_id = $2, status = $3, notes = $4, started_at = $5, completed_at = $6
		WHERE id = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		mission.DeliveryID,
		mission.CourierID,
		mission.Status,
		nullString(mission.Notes),
		nullTime(mission.StartedAt),
		nullTime(mission.CompletedAt),
		mission.ID,
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

// GetActiveByDeliveryID retrieves the non-terminal mission for a delivery.
// Returns nil if no active mission exists.
func (r *MissionRepository) GetActiveByDeliveryID(ctx context.Context, deliveryID string) (*domain.Mission, error) {
	query := `
		SELECT ` + missionColumns + ` FROM missions
		WHERE delivery_id = $1 AND status NOT IN ($2, $3)
		LIMIT 1
	`

	mission, err := scanMission(r.q.QueryRowContext(ctx, query, deliveryID,
		domain.MissionStatusCompleted, domain.MissionStatusCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return mission, nil
}

func scanMission(row rowScanner) (*domain.Mission, error) {
	var mission domain.Mission
	var notes sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&mission.ID,
		&mission.DeliveryID,
		&mission.CourierID,
		&mission.Status,
		&notes,
		&mission.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if notes.Valid {
		mission.Notes = notes.String
	}
	if startedAt.Valid {
		mission.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		mission.CompletedAt = completedAt.Time
	}

	return &mission, nil
}

// Ensure MissionRepository implements repository.MissionRepository.
var _ repository.MissionRepository = (*MissionRepository)(nil)
