package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier/internal/domain"
	"courier/internal/service"
)

func newDeliveryFixture() (*service.DeliveryService, *MockDeliveryRepository, *MockCourierRepository, *MockLocationStore) {
	courierRepo := NewMockCourierRepository()
	deliveryRepo := NewMockDeliveryRepository()
	locationStore := NewMockLocationStore()
	lockStore := NewMockLockStore()

	matchingService := service.NewMatchingService(nil, locationStore, lockStore, nil, courierRepo, deliveryRepo, nil)
	deliveryService := service.NewDeliveryService(nil, deliveryRepo, courierRepo, matchingService, nil)
	return deliveryService, deliveryRepo, courierRepo, locationStore
}

func approvedDelivery(id, courierID string) *domain.Delivery {
	return &domain.Delivery{
		ID:            id,
		SenderID:      "sender-1",
		PickupLat:     0,
		PickupLng:     0,
		DropoffLat:    0.1,
		DropoffLng:    0.1,
		PackageWeight: 2.5,
		Status:        domain.DeliveryStatusApproved,
		CourierID:     courierID,
		CreatedAt:     time.Now(),
		AssignedAt:    time.Now(),
	}
}

func TestCreateDelivery_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newDeliveryFixture()

	cases := []struct {
		name    string
		req     service.CreateDeliveryRequest
		wantErr error
	}{
		{
			name:    "missing sender",
			req:     service.CreateDeliveryRequest{PickupLat: 0, PickupLng: 0, DropoffLat: 1, DropoffLng: 1, PackageWeight: 1},
			wantErr: service.ErrInvalidSenderID,
		},
		{
			name:    "pickup latitude out of range",
			req:     service.CreateDeliveryRequest{SenderID: "s", PickupLat: 91, PickupLng: 0, DropoffLat: 1, DropoffLng: 1, PackageWeight: 1},
			wantErr: service.ErrInvalidPickupLocation,
		},
		{
			name:    "dropoff longitude out of range",
			req:     service.CreateDeliveryRequest{SenderID: "s", PickupLat: 0, PickupLng: 0, DropoffLat: 1, DropoffLng: 181, PackageWeight: 1},
			wantErr: service.ErrInvalidDropoffLocation,
		},
		{
			name:    "zero weight",
			req:     service.CreateDeliveryRequest{SenderID: "s", PickupLat: 0, PickupLng: 0, DropoffLat: 1, DropoffLng: 1, PackageWeight: 0},
			wantErr: service.ErrInvalidPackageWeight,
		},
		{
			name:    "negative weight",
			req:     service.CreateDeliveryRequest{SenderID: "s", PickupLat: 0, PickupLng: 0, DropoffLat: 1, DropoffLng: 1, PackageWeight: -2},
			wantErr: service.ErrInvalidPackageWeight,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDelivery(ctx, tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateDelivery_StaysPendingWithoutCouriers(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	resp, err := svc.CreateDelivery(ctx, service.CreateDeliveryRequest{
		SenderID:      "sender-1",
		PickupLat:     0,
		PickupLng:     0,
		DropoffLat:    0.1,
		DropoffLng:    0.1,
		PackageWeight: 2.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.CourierAssigned {
		t.Error("expected no courier assigned")
	}
	if resp.Delivery.Status != domain.DeliveryStatusPending {
		t.Errorf("expected PENDING, got %s", resp.Delivery.Status)
	}
	if deliveryRepo.CountDeliveries() != 1 {
		t.Errorf("expected 1 delivery persisted, got %d", deliveryRepo.CountDeliveries())
	}
}

func TestCreateDelivery_ImmediateAssignment(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, courierRepo, locationStore := newDeliveryFixture()

	courierRepo.AddCourier(availableCourier("courier-1"))
	locationStore.SetLocation("courier-1", 0, 0.01)

	resp, err := svc.CreateDelivery(ctx, service.CreateDeliveryRequest{
		SenderID:      "sender-1",
		PickupLat:     0,
		PickupLng:     0,
		DropoffLat:    0.1,
		DropoffLng:    0.1,
		PackageWeight: 2.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.CourierAssigned {
		t.Fatal("expected immediate assignment")
	}
	if resp.CourierID != "courier-1" {
		t.Errorf("expected courier-1, got %s", resp.CourierID)
	}

	stored := deliveryRepo.GetDelivery(resp.Delivery.ID)
	if stored.Status != domain.DeliveryStatusApproved {
		t.Errorf("expected APPROVED, got %s", stored.Status)
	}
}

func TestUpdateStatus_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		from domain.DeliveryStatus
		to   domain.DeliveryStatus
	}{
		{"pending to in_transit", domain.DeliveryStatusPending, domain.DeliveryStatusInTransit},
		{"pending to delivered", domain.DeliveryStatusPending, domain.DeliveryStatusDelivered},
		{"approved to delivered", domain.DeliveryStatusApproved, domain.DeliveryStatusDelivered},
		{"delivered to in_transit", domain.DeliveryStatusDelivered, domain.DeliveryStatusInTransit},
		{"delivered to cancelled", domain.DeliveryStatusDelivered, domain.DeliveryStatusCancelled},
		{"cancelled to in_transit", domain.DeliveryStatusCancelled, domain.DeliveryStatusInTransit},
		{"in_transit to approved", domain.DeliveryStatusInTransit, domain.DeliveryStatusApproved},
		{"pending to approved", domain.DeliveryStatusPending, domain.DeliveryStatusApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, deliveryRepo, _, _ := newDeliveryFixture()

			delivery := approvedDelivery("delivery-1", "courier-1")
			delivery.Status = tc.from
			if tc.from == domain.DeliveryStatusPending {
				delivery.CourierID = ""
			}
			deliveryRepo.AddDelivery(delivery)

			_, err := svc.UpdateStatus(ctx, service.UpdateStatusRequest{
				DeliveryID: "delivery-1",
				CallerID:   "courier-1",
				NewStatus:  tc.to,
			})
			if !errors.Is(err, service.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	deliveryRepo.AddDelivery(approvedDelivery("delivery-1", "courier-1"))

	_, err := svc.UpdateStatus(ctx, service.UpdateStatusRequest{
		DeliveryID: "delivery-1",
		CallerID:   "courier-1",
		NewStatus:  domain.DeliveryStatus("TELEPORTED"),
	})
	if !errors.Is(err, service.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_OnlyBoundCourier(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	deliveryRepo.AddDelivery(approvedDelivery("delivery-1", "courier-1"))

	_, err := svc.UpdateStatus(ctx, service.UpdateStatusRequest{
		DeliveryID: "delivery-1",
		CallerID:   "courier-impostor",
		NewStatus:  domain.DeliveryStatusInTransit,
	})
	if !errors.Is(err, service.ErrCourierNotAssigned) {
		t.Errorf("expected ErrCourierNotAssigned, got %v", err)
	}

	// Nothing was written.
	if deliveryRepo.GetDelivery("delivery-1").Status != domain.DeliveryStatusApproved {
		t.Error("expected delivery to stay APPROVED")
	}
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	deliveryRepo.AddDelivery(approvedDelivery("delivery-1", "courier-1"))

	// APPROVED -> IN_TRANSIT.
	updated, err := svc.UpdateStatus(ctx, service.UpdateStatusRequest{
		DeliveryID: "delivery-1",
		CallerID:   "courier-1",
		NewStatus:  domain.DeliveryStatusInTransit,
	})
	if err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	if updated.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set on pickup")
	}

	// IN_TRANSIT -> DELIVERED.
	updated, err = svc.UpdateStatus(ctx, service.UpdateStatusRequest{
		DeliveryID: "delivery-1",
		CallerID:   "courier-1",
		NewStatus:  domain.DeliveryStatusDelivered,
	})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if updated.DeliveredAt.IsZero() {
		t.Error("expected DeliveredAt to be set on completion")
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusDelivered {
		t.Errorf("expected DELIVERED, got %s", stored.Status)
	}
	if !stored.Status.IsTerminal() {
		t.Error("expected terminal state")
	}
}

func TestCancelDelivery_PendingDelivery(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	cancelled, err := svc.CancelDelivery(ctx, service.CancelDeliveryRequest{
		DeliveryID:  "delivery-1",
		CancelledBy: "sender-1",
		Reason:      "ordered by mistake",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cancelled.Status != domain.DeliveryStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.CancelReason != "ordered by mistake" {
		t.Errorf("expected reason recorded, got %q", cancelled.CancelReason)
	}
	if cancelled.CancelledAt.IsZero() {
		t.Error("expected CancelledAt to be set")
	}
}

func TestCancelDelivery_ClearsAssignmentAndFreesCourier(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, courierRepo, _ := newDeliveryFixture()

	courier := availableCourier("courier-1")
	courier.Available = false // Bound to the delivery below.
	courierRepo.AddCourier(courier)

	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))
	if err := deliveryRepo.Bind(ctx, "delivery-1", "courier-1", time.Now()); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	cancelled, err := svc.CancelDelivery(ctx, service.CancelDeliveryRequest{
		DeliveryID:  "delivery-1",
		CancelledBy: "sender-1",
		Reason:      "recipient unreachable",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cancelled.CourierID != "" {
		t.Errorf("expected binding cleared, got courier %q", cancelled.CourierID)
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", stored.Status)
	}
	if stored.CourierID != "" {
		t.Errorf("expected stored binding cleared, got courier %q", stored.CourierID)
	}
	if !courierRepo.GetCourier("courier-1").Available {
		t.Error("expected courier to be freed")
	}
}

func TestUpdateStatus_CancelClearsAssignment(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, courierRepo, _ := newDeliveryFixture()

	courier := availableCourier("courier-1")
	courier.Available = false
	courierRepo.AddCourier(courier)

	deliveryRepo.AddDelivery(approvedDelivery("delivery-1", "courier-1"))

	updated, err := svc.UpdateStatus(ctx, service.UpdateStatusRequest{
		DeliveryID: "delivery-1",
		CallerID:   "courier-1",
		NewStatus:  domain.DeliveryStatusCancelled,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.CourierID != "" {
		t.Errorf("expected binding cleared, got courier %q", updated.CourierID)
	}
	if deliveryRepo.GetDelivery("delivery-1").CourierID != "" {
		t.Error("expected stored binding cleared")
	}
	if !courierRepo.GetCourier("courier-1").Available {
		t.Error("expected courier to be freed")
	}
}

func TestCancelDelivery_LostRaceWithMatcherRetries(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, courierRepo, _ := newDeliveryFixture()

	courierRepo.AddCourier(availableCourier("courier-1"))
	deliveryRepo.AddDelivery(pendingDelivery("delivery-1", 0, 0))

	// A matcher binds the delivery between the cancel's read and its
	// conditional write. The first write must fail and the retry must see
	// the binding, so the courier is freed instead of stranded.
	bound := false
	deliveryRepo.UpdateIfStatusHook = func() {
		if bound {
			return
		}
		bound = true
		if err := deliveryRepo.Bind(ctx, "delivery-1", "courier-1", time.Now()); err != nil {
			t.Errorf("bind failed: %v", err)
		}
		if err := courierRepo.SetAvailability(ctx, "courier-1", false); err != nil {
			t.Errorf("setting availability failed: %v", err)
		}
	}

	cancelled, err := svc.CancelDelivery(ctx, service.CancelDeliveryRequest{
		DeliveryID:  "delivery-1",
		CancelledBy: "sender-1",
		Reason:      "changed mind",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cancelled.Status != domain.DeliveryStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	stored := deliveryRepo.GetDelivery("delivery-1")
	if stored.Status != domain.DeliveryStatusCancelled {
		t.Errorf("expected stored CANCELLED, got %s", stored.Status)
	}
	if stored.CourierID != "" {
		t.Errorf("expected binding cleared, got courier %q", stored.CourierID)
	}
	if !courierRepo.GetCourier("courier-1").Available {
		t.Error("expected courier to be freed, not stranded unavailable")
	}
}

func TestCreateDelivery_MatchInfrastructureFailureStillCreates(t *testing.T) {
	ctx := context.Background()

	courierRepo := NewMockCourierRepository()
	deliveryRepo := NewMockDeliveryRepository()
	locationStore := NewMockLocationStore()
	lockStore := NewMockLockStore()

	matchingService := service.NewMatchingService(nil, locationStore, lockStore, nil, courierRepo, deliveryRepo, nil)
	svc := service.NewDeliveryService(nil, deliveryRepo, courierRepo, matchingService, nil)

	courierRepo.AddCourier(availableCourier("courier-1"))
	locationStore.SetLocation("courier-1", 0, 0.01)

	// The lock backend is down; the delivery must still be accepted and
	// left PENDING for the sweep.
	lockStore.AcquireError = ErrMockTimeout

	resp, err := svc.CreateDelivery(ctx, service.CreateDeliveryRequest{
		SenderID:      "sender-1",
		PickupLat:     0,
		PickupLng:     0,
		DropoffLat:    0.1,
		DropoffLng:    0.1,
		PackageWeight: 2.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.CourierAssigned {
		t.Error("expected no courier assigned")
	}

	stored := deliveryRepo.GetDelivery(resp.Delivery.ID)
	if stored == nil {
		t.Fatal("expected delivery persisted")
	}
	if stored.Status != domain.DeliveryStatusPending {
		t.Errorf("expected PENDING, got %s", stored.Status)
	}
}

func TestCancelDelivery_AlreadyCancelled(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	delivery := pendingDelivery("delivery-1", 0, 0)
	delivery.Status = domain.DeliveryStatusCancelled
	deliveryRepo.AddDelivery(delivery)

	_, err := svc.CancelDelivery(ctx, service.CancelDeliveryRequest{DeliveryID: "delivery-1"})
	if !errors.Is(err, service.ErrDeliveryAlreadyCancelled) {
		t.Errorf("expected ErrDeliveryAlreadyCancelled, got %v", err)
	}
}

func TestCancelDelivery_DeliveredCannotBeCancelled(t *testing.T) {
	ctx := context.Background()
	svc, deliveryRepo, _, _ := newDeliveryFixture()

	delivery := approvedDelivery("delivery-1", "courier-1")
	delivery.Status = domain.DeliveryStatusDelivered
	deliveryRepo.AddDelivery(delivery)

	_, err := svc.CancelDelivery(ctx, service.CancelDeliveryRequest{DeliveryID: "delivery-1"})
	if !errors.Is(err, service.ErrDeliveryCannotBeCancelled) {
		t.Errorf("expected ErrDeliveryCannotBeCancelled, got %v", err)
	}
}
