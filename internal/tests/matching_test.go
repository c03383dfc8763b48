package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courier/internal/domain"
	"courier/internal/service"
)

func newMatchingFixture() (*service.MatchingService, *MockCourierRepository, *MockDeliveryRepository, *MockLocationStore, *MockLockStore) {
	courierRepo := NewMockCourierRepository()
	deliveryRepo := NewMockDeliveryRepository()
	locationStore := NewMockLocationStore()
	lockStore := NewMockLockStore()

	svc := service.NewMatchingService(nil, locationStore, lockStore, nil, courierRepo, deliveryRepo, nil)
	return svc, courierRepo, deliveryRepo, locationStore, lockStore
}

func availableCourier(id string) *domain.Courier {
	return &domain.Courier{
		ID:        id,
		Name:      "Courier " + id,
		Enabled:   true,
		Available: true,
		Roles:     []domain.CourierRole{domain.RoleDeliveryPerson},
	}
}

func pendingDelivery(id string, pickupLat, pickupLng float64) *domain.Delivery {
	return &domain.Delivery{
		ID:            id,
		SenderID:      "sender-1",
		PickupLat:     pickupLat,
		PickupLng:     pickupLng,
		DropoffLat:    pickupLat + 0.1,
		DropoffLng:    pickupLng + 0.1,
		PackageWeight: 2.5,
		Status:        domain.DeliveryStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestMatch_AssignsNearestCourier(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	courierRepo.AddCourier(availableCourier("courier-near"))
	courierRepo.AddCourier(availableCourier("courier-far"))

	// Pickup at the origin; one courier ~1.1 km away, the other ~111 km.
	locationStore.SetLocation("courier-near", 0, 0.01)
	locationStore.SetLocation("courier-far", 0, 1.0)

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	result, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CourierID != "courier-near" {
		t.Errorf("expected courier-near, got %s", result.CourierID)
	}
	if result.DistanceKm < 1.0 || result.DistanceKm > 1.3 {
		t.Errorf("expected distance around 1.1 km, got %f", result.DistanceKm)
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusApproved {
		t.Errorf("expected delivery APPROVED, got %s", stored.Status)
	}
	if stored.CourierID != "courier-near" {
		t.Errorf("expected courier-near bound, got %q", stored.CourierID)
	}
	if stored.AssignedAt.IsZero() {
		t.Error("expected AssignedAt to be set")
	}

	// The winning courier is taken off the availability directory.
	if courierRepo.GetCourier("courier-near").Available {
		t.Error("expected assigned courier to be unavailable")
	}
	if !courierRepo.GetCourier("courier-far").Available {
		t.Error("expected losing courier to stay available")
	}
}

func TestMatch_NoCouriersAvailable(t *testing.T) {
	ctx := context.Background()
	svc, _, deliveryRepo, _, _ := newMatchingFixture()

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	_, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if !errors.Is(err, service.ErrNoCourierAvailable) {
		t.Fatalf("expected ErrNoCourierAvailable, got %v", err)
	}

	// The delivery stays PENDING for the next sweep.
	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusPending {
		t.Errorf("expected delivery to stay PENDING, got %s", stored.Status)
	}
	if stored.CourierID != "" {
		t.Errorf("expected no courier bound, got %q", stored.CourierID)
	}
}

func TestMatch_DeliveryNotPending(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	courierRepo.AddCourier(availableCourier("courier-1"))
	locationStore.SetLocation("courier-1", 0, 0)

	delivery := pendingDelivery("delivery-1", 0, 0)
	delivery.Status = domain.DeliveryStatusDelivered
	deliveryRepo.AddDelivery(delivery)

	_, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if !errors.Is(err, service.ErrDeliveryNotPending) {
		t.Fatalf("expected ErrDeliveryNotPending, got %v", err)
	}
}

func TestMatch_UnknownLocationRanksLast(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	// courier-silent never reported a location; courier-far is 111 km out but
	// locatable, so it still wins.
	courierRepo.AddCourier(availableCourier("courier-silent"))
	courierRepo.AddCourier(availableCourier("courier-far"))
	locationStore.SetLocation("courier-far", 0, 1.0)

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	result, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CourierID != "courier-far" {
		t.Errorf("expected locatable courier-far to win, got %s", result.CourierID)
	}
}

func TestMatch_UnknownLocationStillMatchable(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, _, _ := newMatchingFixture()

	// The only candidate has no location record at all.
	courierRepo.AddCourier(availableCourier("courier-silent"))
	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	result, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CourierID != "courier-silent" {
		t.Errorf("expected courier-silent, got %s", result.CourierID)
	}
}

func TestMatch_TieBreaksDeterministically(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	// Two couriers at the identical position. The directory is ordered by ID
	// and the ranking sort is stable, so the lower ID wins every time.
	courierRepo.AddCourier(availableCourier("courier-a"))
	courierRepo.AddCourier(availableCourier("courier-b"))
	locationStore.SetLocation("courier-a", 0, 0.01)
	locationStore.SetLocation("courier-b", 0, 0.01)

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	result, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CourierID != "courier-a" {
		t.Errorf("expected courier-a on a tie, got %s", result.CourierID)
	}
}

func TestMatch_SkipsLockedCourier(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, lockStore := newMatchingFixture()

	courierRepo.AddCourier(availableCourier("courier-near"))
	courierRepo.AddCourier(availableCourier("courier-far"))
	locationStore.SetLocation("courier-near", 0, 0.01)
	locationStore.SetLocation("courier-far", 0, 1.0)

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	// The nearest courier is mid-assignment elsewhere.
	lockStore.AcquireCourierLock(ctx, "courier-near", 10*time.Second)

	result, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CourierID != "courier-far" {
		t.Errorf("expected courier-far (nearest was locked), got %s", result.CourierID)
	}
}

func TestMatch_ConcurrentSameDelivery_SingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	for _, id := range []string{"courier-1", "courier-2", "courier-3"} {
		courierRepo.AddCourier(availableCourier(id))
		locationStore.SetLocation(id, 0, 0.01)
	}
	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	numGoroutines := 10
	successCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("expected exactly 1 successful match, got %d", successCount)
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusApproved {
		t.Errorf("expected delivery APPROVED, got %s", stored.Status)
	}
	if stored.CourierID == "" {
		t.Error("expected a courier bound")
	}
}

func TestMatch_ConcurrentDeliveries_CourierBoundOnce(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	// One courier, many deliveries racing for it.
	courierRepo.AddCourier(availableCourier("courier-1"))
	locationStore.SetLocation("courier-1", 0, 0.01)

	numDeliveries := 8
	ids := make([]string, 0, numDeliveries)
	for i := 0; i < numDeliveries; i++ {
		id := "delivery-" + string(rune('a'+i))
		ids = append(ids, id)
		deliveryRepo.AddDelivery(pendingDelivery(id, 0, 0))
	}

	successCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(numDeliveries)
	for _, id := range ids {
		go func(deliveryID string) {
			defer wg.Done()
			_, err := svc.Match(ctx, service.MatchRequest{DeliveryID: deliveryID})
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("expected the courier to be bound exactly once, got %d wins", successCount)
	}

	bound := 0
	for _, id := range ids {
		if deliveryRepo.GetDelivery(id).CourierID == "courier-1" {
			bound++
		}
	}
	if bound != 1 {
		t.Errorf("expected exactly 1 delivery bound to courier-1, got %d", bound)
	}
}

func TestMatch_BindConflictSurfacesAsAlreadyAssigned(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, deliveryRepo, locationStore, _ := newMatchingFixture()

	courierRepo.AddCourier(availableCourier("courier-1"))
	locationStore.SetLocation("courier-1", 0, 0.01)

	delivery := pendingDelivery("delivery-1", 0, 0)
	deliveryRepo.AddDelivery(delivery)

	// A competing writer binds before our match starts.
	if err := deliveryRepo.Bind(ctx, "delivery-1", "courier-other", time.Now()); err != nil {
		t.Fatalf("setup bind failed: %v", err)
	}

	_, err := svc.Match(ctx, service.MatchRequest{DeliveryID: "delivery-1"})
	if !errors.Is(err, service.ErrDeliveryNotPending) {
		t.Fatalf("expected ErrDeliveryNotPending after losing the race, got %v", err)
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.CourierID != "courier-other" {
		t.Errorf("expected original winner to keep the delivery, got %q", stored.CourierID)
	}
}
