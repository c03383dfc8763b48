package service

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"time"

	"courier/internal/domain"
	"courier/internal/redis"
	"courier/internal/repository"
	"courier/internal/repository/postgres"
)

const (
	defaultCourierLockTTL  = 10 * time.Second
	defaultDeliveryLockTTL = 30 * time.Second // Lock delivery during matching
)

// MatchingService selects the nearest qualifying courier for a delivery and
// binds it with a compare-and-set on the delivery's status.
type MatchingService struct {
	db                  *sql.DB
	locationStore       redis.LocationStoreInterface
	lockStore           redis.LockStoreInterface
	cacheStore          *redis.CacheStore
	courierRepo         repository.CourierRepository
	deliveryRepo        repository.DeliveryRepository
	notificationService *NotificationService
	courierLockTTL      time.Duration
	deliveryLockTTL     time.Duration
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	db *sql.DB,
	locationStore redis.LocationStoreInterface,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	courierRepo repository.CourierRepository,
	deliveryRepo repository.DeliveryRepository,
	notificationService *NotificationService,
) *MatchingService {
	return &MatchingService{
		db:                  db,
		locationStore:       locationStore,
		lockStore:           lockStore,
		cacheStore:          cacheStore,
		courierRepo:         courierRepo,
		deliveryRepo:        deliveryRepo,
		notificationService: notificationService,
		courierLockTTL:      defaultCourierLockTTL,
		deliveryLockTTL:     defaultDeliveryLockTTL,
	}
}

// SetLockTTLs overrides the default lock TTLs. Zero values keep the defaults.
func (s *MatchingService) SetLockTTLs(courierTTL, deliveryTTL time.Duration) {
	if courierTTL > 0 {
		s.courierLockTTL = courierTTL
	}
	if deliveryTTL > 0 {
		s.deliveryLockTTL = deliveryTTL
	}
}

// MatchRequest contains the parameters for matching a delivery.
type MatchRequest struct {
	DeliveryID string
}

// MatchResult contains the result of a successful match.
type MatchResult struct {
	CourierID  string
	Delivery   *domain.Delivery
	DistanceKm float64
}

// candidate pairs a courier with its distance to the pickup point.
type candidate struct {
	courier    *domain.Courier
	distanceKm float64
}

// Match finds the nearest available courier and assigns it to the delivery.
//
// Candidates with no location record are still matchable but rank behind
// every candidate with a known location. Binding re-validates the delivery
// status, so a cancellation or a competing assignment arriving mid-match
// wins over this one.
func (s *MatchingService) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}

	// Hold a per-delivery lock so the immediate path and the sweep never
	// run matching for the same delivery concurrently.
	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireDeliveryLock(ctx, req.DeliveryID, s.deliveryLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrDeliveryAlreadyAssigned
		}
		defer s.lockStore.ReleaseDeliveryLock(ctx, req.DeliveryID)
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}

	if delivery.Status != domain.DeliveryStatusPending {
		return nil, ErrDeliveryNotPending
	}

	pickup := delivery.Pickup()

	couriers, err := s.courierRepo.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}

	if len(couriers) == 0 {
		return nil, ErrNoCourierAvailable
	}

	candidates := s.rankByDistance(ctx, couriers, pickup)

	// Try candidates nearest first; fall through on lock contention or a
	// courier that went stale between the directory read and now.
	for _, cand := range candidates {
		courierID := cand.courier.ID

		// Cached snapshot is a cheap stale-availability filter; the
		// authoritative re-check against the DB happens under the lock.
		if s.cacheStore != nil {
			if cached, cacheErr := s.cacheStore.GetCourier(ctx, courierID); cacheErr == nil && cached != nil {
				if !cached.Enabled || !cached.Available {
					continue
				}
			}
		}

		locked, err := s.lockStore.AcquireCourierLock(ctx, courierID, s.courierLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			// Courier is being bound to another delivery.
			continue
		}

		fresh, err := s.courierRepo.GetByID(ctx, courierID)
		if err != nil {
			_ = s.lockStore.ReleaseCourierLock(ctx, courierID)
			if err == repository.ErrNotFound {
				continue
			}
			return nil, err
		}

		if !fresh.CanDeliver() {
			_ = s.lockStore.ReleaseCourierLock(ctx, courierID)
			s.invalidateCourierCache(ctx, courierID)
			continue
		}

		result, err := s.bindCourier(ctx, delivery, fresh)
		if err != nil {
			_ = s.lockStore.ReleaseCourierLock(ctx, courierID)
			return nil, err
		}
		result.DistanceKm = cand.distanceKm

		s.invalidateCourierCache(ctx, courierID)

		// Informing the courier is best-effort; the assignment stands
		// even if delivery of the notification fails.
		if s.notificationService != nil {
			_ = s.notificationService.NotifyCourierAssigned(ctx, result.Delivery, fresh)
		}

		// Courier lock expires via TTL.
		return result, nil
	}

	return nil, ErrNoCourierAvailable
}

// rankByDistance orders candidates by haversine distance to the pickup
// point, nearest first. A courier that never reported a location is ranked
// as maximally distant so it only wins when nobody else is locatable. Input
// order is ID-ascending, and the stable sort keeps ties deterministic.
func (s *MatchingService) rankByDistance(ctx context.Context, couriers []*domain.Courier, pickup domain.Coordinate) []candidate {
	candidates := make([]candidate, 0, len(couriers))

	for _, c := range couriers {
		cand := candidate{courier: c, distanceKm: math.MaxFloat64}

		loc, err := s.locationStore.LastKnown(ctx, c.ID)
		if err == nil && loc != nil {
			cand.distanceKm = domain.DistanceKm(pickup, domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng})
		}

		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distanceKm < candidates[j].distanceKm
	})

	return candidates
}

// bindCourier assigns a courier to a delivery using a transaction. The
// delivery write is conditional on it still being PENDING and unassigned;
// losing that race surfaces as ErrDeliveryAlreadyAssigned.
func (s *MatchingService) bindCourier(ctx context.Context, delivery *domain.Delivery, courier *domain.Courier) (*MatchResult, error) {
	assignedAt := time.Now()

	if s.db == nil {
		// No transactional store wired; bind through the plain repositories.
		if err := s.deliveryRepo.Bind(ctx, delivery.ID, courier.ID, assignedAt); err != nil {
			if err == repository.ErrConflict {
				return nil, ErrDeliveryAlreadyAssigned
			}
			return nil, err
		}
		if err := s.courierRepo.SetAvailability(ctx, courier.ID, false); err != nil && err != repository.ErrNotFound {
			return nil, err
		}

		delivery.Status = domain.DeliveryStatusApproved
		delivery.CourierID = courier.ID
		delivery.AssignedAt = assignedAt

		return &MatchResult{CourierID: courier.ID, Delivery: delivery}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txDeliveryRepo := postgres.NewDeliveryRepositoryWithTx(tx)
	txCourierRepo := postgres.NewCourierRepositoryWithTx(tx)

	if err = txDeliveryRepo.Bind(ctx, delivery.ID, courier.ID, assignedAt); err != nil {
		if err == repository.ErrConflict {
			err = ErrDeliveryAlreadyAssigned
		}
		return nil, err
	}

	if err = txCourierRepo.SetAvailability(ctx, courier.ID, false); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	delivery.Status = domain.DeliveryStatusApproved
	delivery.CourierID = courier.ID
	delivery.AssignedAt = assignedAt

	return &MatchResult{
		CourierID: courier.ID,
		Delivery:  delivery,
	}, nil
}

// invalidateCourierCache drops a courier's cached snapshot and removes it
// from the available set.
func (s *MatchingService) invalidateCourierCache(ctx context.Context, courierID string) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.InvalidateCourier(ctx, courierID)
	_ = s.cacheStore.RemoveAvailableCourier(ctx, courierID)
}
