package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"courier/internal/domain"
	"courier/internal/repository"
	"courier/internal/repository/postgres"
)

// MatchingServiceInterface defines the matching service contract.
// This interface allows for testing with mock implementations.
type MatchingServiceInterface interface {
	Match(ctx context.Context, req MatchRequest) (*MatchResult, error)
}

// Ensure MatchingService implements MatchingServiceInterface.
var _ MatchingServiceInterface = (*MatchingService)(nil)

// DeliveryService handles delivery intake, status updates and cancellation.
type DeliveryService struct {
	db                  *sql.DB
	deliveryRepo        repository.DeliveryRepository
	courierRepo         repository.CourierRepository
	matchingService     MatchingServiceInterface
	notificationService *NotificationService
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(
	db *sql.DB,
	deliveryRepo repository.DeliveryRepository,
	courierRepo repository.CourierRepository,
	matchingService MatchingServiceInterface,
	notificationService *NotificationService,
) *DeliveryService {
	return &DeliveryService{
		db:                  db,
		deliveryRepo:        deliveryRepo,
		courierRepo:         courierRepo,
		matchingService:     matchingService,
		notificationService: notificationService,
	}
}

// CreateDeliveryRequest contains the parameters for creating a delivery.
type CreateDeliveryRequest struct {
	SenderID      string
	PickupLat     float64
	PickupLng     float64
	DropoffLat    float64
	DropoffLng    float64
	PackageWeight float64
}

// CreateDeliveryResponse contains the result of creating a delivery.
type CreateDeliveryResponse struct {
	Delivery        *domain.Delivery
	CourierAssigned bool
	CourierID       string
}

// CreateDelivery creates a new delivery in PENDING state and attempts an
// immediate assignment. A failed match is not an error to the caller: the
// delivery stays PENDING and the periodic sweep picks it up later.
func (s *DeliveryService) CreateDelivery(ctx context.Context, req CreateDeliveryRequest) (*CreateDeliveryResponse, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	delivery := &domain.Delivery{
		ID:            uuid.New().String(),
		SenderID:      req.SenderID,
		PickupLat:     req.PickupLat,
		PickupLng:     req.PickupLng,
		DropoffLat:    req.DropoffLat,
		DropoffLng:    req.DropoffLng,
		PackageWeight: req.PackageWeight,
		Status:        domain.DeliveryStatusPending,
		CreatedAt:     time.Now(),
	}

	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		return nil, err
	}

	matchResult, err := s.matchingService.Match(ctx, MatchRequest{DeliveryID: delivery.ID})
	if err != nil {
		// The delivery row is already committed; whatever went wrong in
		// the match, the caller gets the PENDING delivery and the sweep
		// retries the assignment.
		if !errors.Is(err, ErrNoCourierAvailable) && !errors.Is(err, ErrDeliveryAlreadyAssigned) {
			log.Printf("delivery %s: immediate match failed: %v", delivery.ID, err)
		}
		return &CreateDeliveryResponse{Delivery: delivery}, nil
	}

	return &CreateDeliveryResponse{
		Delivery:        matchResult.Delivery,
		CourierAssigned: true,
		CourierID:       matchResult.CourierID,
	}, nil
}

// GetDelivery retrieves the current state of a delivery.
func (s *DeliveryService) GetDelivery(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	if deliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}

	return s.deliveryRepo.GetByID(ctx, deliveryID)
}

// GetAllDeliveries retrieves all deliveries.
func (s *DeliveryService) GetAllDeliveries(ctx context.Context) ([]*domain.Delivery, error) {
	return s.deliveryRepo.GetAll(ctx)
}

// UpdateStatusRequest contains the parameters for a courier-driven status update.
type UpdateStatusRequest struct {
	DeliveryID string
	CallerID   string
	NewStatus  domain.DeliveryStatus
}

// UpdateStatus applies a courier-driven status transition. Only the bound
// courier may advance a delivery, and only along the allowed transition
// table. APPROVED is never reachable through this path: binding a courier
// is the matcher's job.
func (s *DeliveryService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.Delivery, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	if req.CallerID == "" {
		return nil, ErrInvalidCourierID
	}
	if !req.NewStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.NewStatus)
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}

	if req.NewStatus == domain.DeliveryStatusApproved {
		return nil, fmt.Errorf("%w: %s -> %s (assignment binds APPROVED)", ErrInvalidTransition, delivery.Status, req.NewStatus)
	}

	if !delivery.Status.CanTransition(req.NewStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, delivery.Status, req.NewStatus)
	}

	if delivery.CourierID != req.CallerID {
		return nil, ErrCourierNotAssigned
	}

	from := delivery.Status
	now := time.Now()
	delivery.Status = req.NewStatus

	// Each timestamp is written on its own transition and never rewritten.
	// A terminal transition frees the bound courier; cancellation also
	// drops the binding, since only APPROVED, IN_TRANSIT and DELIVERED
	// deliveries carry a courier.
	var freeCourierID string
	switch req.NewStatus {
	case domain.DeliveryStatusInTransit:
		if delivery.StartedAt.IsZero() {
			delivery.StartedAt = now
		}
	case domain.DeliveryStatusDelivered:
		if delivery.DeliveredAt.IsZero() {
			delivery.DeliveredAt = now
		}
		freeCourierID = delivery.CourierID
	case domain.DeliveryStatusCancelled:
		if delivery.CancelledAt.IsZero() {
			delivery.CancelledAt = now
		}
		freeCourierID = delivery.CourierID
		delivery.CourierID = ""
	}

	if err := s.applyStatusUpdate(ctx, delivery, from, freeCourierID); err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		switch req.NewStatus {
		case domain.DeliveryStatusInTransit:
			_ = s.notificationService.NotifyDeliveryPickedUp(ctx, delivery)
		case domain.DeliveryStatusDelivered:
			_ = s.notificationService.NotifyDeliveryCompleted(ctx, delivery)
		case domain.DeliveryStatusCancelled:
			_ = s.notificationService.NotifyDeliveryCancelled(ctx, delivery, req.CallerID, "")
		}
	}

	return delivery, nil
}

// applyStatusUpdate persists a delivery status change with a compare-and-set
// on the status the caller read, so a concurrent writer (the matcher's bind,
// another cancel) surfaces as repository.ErrConflict instead of being
// silently overwritten. When freeCourierID is set the courier is made
// available again in the same transaction.
func (s *DeliveryService) applyStatusUpdate(ctx context.Context, delivery *domain.Delivery, expected domain.DeliveryStatus, freeCourierID string) error {
	if s.db == nil {
		// No transactional store wired; apply sequentially.
		if err := s.deliveryRepo.UpdateIfStatus(ctx, delivery, expected); err != nil {
			return err
		}
		if freeCourierID == "" {
			return nil
		}
		if err := s.courierRepo.SetAvailability(ctx, freeCourierID, true); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
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

	txDeliveryRepo := postgres.NewDeliveryRepositoryWithTx(tx)

	if err = txDeliveryRepo.UpdateIfStatus(ctx, delivery, expected); err != nil {
		return err
	}

	if freeCourierID != "" {
		txCourierRepo := postgres.NewCourierRepositoryWithTx(tx)
		if err = txCourierRepo.SetAvailability(ctx, freeCourierID, true); err != nil {
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

// CancelDeliveryRequest contains the parameters for cancelling a delivery.
type CancelDeliveryRequest struct {
	DeliveryID  string
	CancelledBy string
	Reason      string
}

// CancelDelivery cancels a delivery from any non-terminal state. This is the
// client/admin path and does not require the caller to be the bound courier.
//
// The write is a compare-and-set against the status that was read, so a
// concurrent assignment is never silently erased: if the matcher binds the
// delivery between the read and the write, the cancel re-reads the fresh
// state (now carrying the courier) and re-evaluates.
func (s *DeliveryService) CancelDelivery(ctx context.Context, req CancelDeliveryRequest) (*domain.Delivery, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}

	for attempt := 0; attempt < 3; attempt++ {
		delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
		if err != nil {
			return nil, err
		}

		if delivery.Status == domain.DeliveryStatusCancelled {
			return nil, ErrDeliveryAlreadyCancelled
		}

		if !delivery.Status.CanTransition(domain.DeliveryStatusCancelled) {
			return nil, ErrDeliveryCannotBeCancelled
		}

		from := delivery.Status
		boundCourierID := delivery.CourierID

		delivery.Status = domain.DeliveryStatusCancelled
		delivery.CancelledAt = time.Now()
		delivery.CancelReason = req.Reason
		delivery.CourierID = ""

		err = s.applyStatusUpdate(ctx, delivery, from, boundCourierID)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.notificationService != nil {
			// Notify with the binding still visible so the courier who
			// just lost the job hears about it.
			notified := *delivery
			notified.CourierID = boundCourierID
			_ = s.notificationService.NotifyDeliveryCancelled(ctx, &notified, req.CancelledBy, req.Reason)
		}

		return delivery, nil
	}

	return nil, repository.ErrConflict
}

func (s *DeliveryService) validateCreateRequest(req CreateDeliveryRequest) error {
	if req.SenderID == "" {
		return ErrInvalidSenderID
	}

	if !domain.ValidCoordinate(req.PickupLat, req.PickupLng) {
		return ErrInvalidPickupLocation
	}

	if !domain.ValidCoordinate(req.DropoffLat, req.DropoffLng) {
		return ErrInvalidDropoffLocation
	}

	if req.PackageWeight <= 0 {
		return ErrInvalidPackageWeight
	}

	return nil
}
