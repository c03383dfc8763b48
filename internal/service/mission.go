package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/domain"
	"courier/internal/repository"
	"courier/internal/repository/postgres"
)

// MissionService handles mission creation and advancement. Every mission
// transition that changes work state mirrors into the bound delivery inside
// a single transaction, so the two records never drift apart.
type MissionService struct {
	db                  *sql.DB
	missionRepo         repository.MissionRepository
	deliveryRepo        repository.DeliveryRepository
	courierRepo         repository.CourierRepository
	notificationService *NotificationService
}

// NewMissionService creates a new MissionService.
func NewMissionService(
	db *sql.DB,
	missionRepo repository.MissionRepository,
	deliveryRepo repository.DeliveryRepository,
	courierRepo repository.CourierRepository,
	notificationService *NotificationService,
) *MissionService {
	return &MissionService{
		db:                  db,
		missionRepo:         missionRepo,
		deliveryRepo:        deliveryRepo,
		courierRepo:         courierRepo,
		notificationService: notificationService,
	}
}

// CreateMissionRequest contains the parameters for creating a mission.
type CreateMissionRequest struct {
	DeliveryID string
	CourierID  string
	Notes      string
}

// CreateMission creates a work record for a delivery that already has a
// courier bound. The delivery must be APPROVED and bound to the requesting
// courier, and no active mission may reference it yet.
func (s *MissionService) CreateMission(ctx context.Context, req CreateMissionRequest) (*domain.Mission, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	if req.CourierID == "" {
		return nil, ErrInvalidCourierID
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}

	if delivery.Status != domain.DeliveryStatusApproved {
		return nil, ErrDeliveryNotApproved
	}

	if delivery.CourierID != req.CourierID {
		return nil, ErrCourierNotAssigned
	}

	existing, err := s.missionRepo.GetActiveByDeliveryID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, ErrMissionAlreadyExists
	}

	mission := &domain.Mission{
		ID:         uuid.New().String(),
		DeliveryID: req.DeliveryID,
		CourierID:  req.CourierID,
		Status:     domain.MissionStatusPending,
		Notes:      req.Notes,
		CreatedAt:  time.Now(),
	}

	if err := s.missionRepo.Create(ctx, mission); err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyMissionAssigned(ctx, mission)
	}

	return mission, nil
}

// AdvanceMissionRequest contains the parameters for advancing a mission.
type AdvanceMissionRequest struct {
	MissionID string
	NewStatus domain.MissionStatus
	Notes     string
}

// AdvanceMission moves a mission along its lifecycle and drives the bound
// delivery in lockstep:
//
//	PENDING -> IN_PROGRESS   delivery APPROVED -> IN_TRANSIT, StartedAt on both
//	         -> COMPLETED    delivery -> DELIVERED, CompletedAt/DeliveredAt
//	         -> CANCELLED    delivery -> CANCELLED
//
// Both records are written in one transaction: either both change or neither.
func (s *MissionService) AdvanceMission(ctx context.Context, req AdvanceMissionRequest) (*domain.Mission, error) {
	if req.MissionID == "" {
		return nil, ErrInvalidMissionID
	}
	if !req.NewStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.NewStatus)
	}

	mission, err := s.missionRepo.GetByID(ctx, req.MissionID)
	if err != nil {
		return nil, err
	}

	if !mission.Status.CanTransition(req.NewStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, mission.Status, req.NewStatus)
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, mission.DeliveryID)
	if err != nil {
		return nil, err
	}

	deliveryTarget := mirroredDeliveryStatus(req.NewStatus)
	if !delivery.Status.CanTransition(deliveryTarget) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, delivery.Status, deliveryTarget)
	}

	now := time.Now()
	deliveryFrom := delivery.Status
	mission.Status = req.NewStatus
	if req.Notes != "" {
		mission.Notes = req.Notes
	}
	delivery.Status = deliveryTarget

	switch req.NewStatus {
	case domain.MissionStatusInProgress:
		if mission.StartedAt.IsZero() {
			mission.StartedAt = now
		}
		if delivery.StartedAt.IsZero() {
			delivery.StartedAt = now
		}
	case domain.MissionStatusCompleted:
		if mission.CompletedAt.IsZero() {
			mission.CompletedAt = now
		}
		if delivery.DeliveredAt.IsZero() {
			delivery.DeliveredAt = now
		}
	case domain.MissionStatusCancelled:
		if delivery.CancelledAt.IsZero() {
			delivery.CancelledAt = now
			delivery.CancelReason = "mission cancelled"
		}
		// A cancelled delivery carries no binding; the courier is freed
		// through the mission's own record.
		delivery.CourierID = ""
	}

	if err := s.applyMirroredUpdate(ctx, mission, delivery, deliveryFrom); err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		switch req.NewStatus {
		case domain.MissionStatusInProgress:
			_ = s.notificationService.NotifyDeliveryPickedUp(ctx, delivery)
		case domain.MissionStatusCompleted:
			_ = s.notificationService.NotifyDeliveryCompleted(ctx, delivery)
		case domain.MissionStatusCancelled:
			_ = s.notificationService.NotifyDeliveryCancelled(ctx, delivery, mission.CourierID, delivery.CancelReason)
		}
	}

	return mission, nil
}

// GetMission retrieves a mission by ID.
func (s *MissionService) GetMission(ctx context.Context, missionID string) (*domain.Mission, error) {
	if missionID == "" {
		return nil, ErrInvalidMissionID
	}

	return s.missionRepo.GetByID(ctx, missionID)
}

// GetAllMissions retrieves all missions.
func (s *MissionService) GetAllMissions(ctx context.Context) ([]*domain.Mission, error) {
	return s.missionRepo.GetAll(ctx)
}

// mirroredDeliveryStatus maps a mission status onto the delivery status it
// drives.
func mirroredDeliveryStatus(status domain.MissionStatus) domain.DeliveryStatus {
	switch status {
	case domain.MissionStatusInProgress:
		return domain.DeliveryStatusInTransit
	case domain.MissionStatusCompleted:
		return domain.DeliveryStatusDelivered
	case domain.MissionStatusCancelled:
		return domain.DeliveryStatusCancelled
	default:
		return domain.DeliveryStatusApproved
	}
}

// applyMirroredUpdate writes the mission and its delivery atomically,
// freeing the courier when the mission reached a terminal state. The
// delivery write is conditional on the status the caller read, so a
// concurrent writer surfaces as repository.ErrConflict.
func (s *MissionService) applyMirroredUpdate(ctx context.Context, mission *domain.Mission, delivery *domain.Delivery, expected domain.DeliveryStatus) error {
	if s.db == nil {
		// No transactional store wired; apply sequentially.
		if err := s.missionRepo.Update(ctx, mission); err != nil {
			return err
		}
		if err := s.deliveryRepo.UpdateIfStatus(ctx, delivery, expected); err != nil {
			return err
		}
		if mission.Status.IsTerminal() && mission.CourierID != "" {
			if err := s.courierRepo.SetAvailability(ctx, mission.CourierID, true); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txMissionRepo := postgres.NewMissionRepositoryWithTx(tx)
	txDeliveryRepo := postgres.NewDeliveryRepositoryWithTx(tx)

	if err = txMissionRepo.Update(ctx, mission); err != nil {
		return err
	}

	if err = txDeliveryRepo.UpdateIfStatus(ctx, delivery, expected); err != nil {
		return err
	}

	if mission.Status.IsTerminal() && mission.CourierID != "" {
		txCourierRepo := postgres.NewCourierRepositoryWithTx(tx)
		if err = txCourierRepo.SetAvailability(ctx, mission.CourierID, true); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			err = nil
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	return nil
}
