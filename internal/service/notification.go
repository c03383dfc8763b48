package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"courier/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationCourierAssigned   NotificationType = "COURIER_ASSIGNED"
	NotificationMissionAssigned   NotificationType = "MISSION_ASSIGNED"
	NotificationDeliveryPickedUp  NotificationType = "DELIVERY_PICKED_UP"
	NotificationDeliveryCompleted NotificationType = "DELIVERY_COMPLETED"
	NotificationDeliveryCancelled NotificationType = "DELIVERY_CANCELLED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService handles notification delivery. Callers treat it as
// fire-and-forget: a failed notification never rolls back the state change
// that triggered it.
type NotificationService struct {
	// In a real system, this would have:
	// - Push notification client (FCM, APNS)
	// - SMS client (Twilio)
	// - Email client (SendGrid)
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyCourierAssigned notifies the courier about a new assignment.
func (s *NotificationService) NotifyCourierAssigned(ctx context.Context, delivery *domain.Delivery, courier *domain.Courier) error {
	notification := Notification{
		Type:        NotificationCourierAssigned,
		RecipientID: courier.ID,
		Title:       "New Delivery Assigned",
		Message:     fmt.Sprintf("Pickup at (%.4f, %.4f)", delivery.PickupLat, delivery.PickupLng),
		Data: map[string]interface{}{
			"delivery_id": delivery.ID,
			"pickup_lat":  delivery.PickupLat,
			"pickup_lng":  delivery.PickupLng,
			"dropoff_lat": delivery.DropoffLat,
			"dropoff_lng": delivery.DropoffLng,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyMissionAssigned notifies the courier that a work record was opened.
func (s *NotificationService) NotifyMissionAssigned(ctx context.Context, mission *domain.Mission) error {
	notification := Notification{
		Type:        NotificationMissionAssigned,
		RecipientID: mission.CourierID,
		Title:       "Mission Created",
		Message:     "A mission has been opened for your delivery.",
		Data: map[string]interface{}{
			"mission_id":  mission.ID,
			"delivery_id": mission.DeliveryID,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyDeliveryPickedUp notifies the sender that the package is on its way.
func (s *NotificationService) NotifyDeliveryPickedUp(ctx context.Context, delivery *domain.Delivery) error {
	notification := Notification{
		Type:        NotificationDeliveryPickedUp,
		RecipientID: delivery.SenderID,
		Title:       "Package Picked Up",
		Message:     "Your package is in transit.",
		Data: map[string]interface{}{
			"delivery_id": delivery.ID,
			"courier_id":  delivery.CourierID,
			"started_at":  delivery.StartedAt,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyDeliveryCompleted notifies the sender that the package arrived.
func (s *NotificationService) NotifyDeliveryCompleted(ctx context.Context, delivery *domain.Delivery) error {
	notification := Notification{
		Type:        NotificationDeliveryCompleted,
		RecipientID: delivery.SenderID,
		Title:       "Package Delivered",
		Message:     "Your package has been delivered.",
		Data: map[string]interface{}{
			"delivery_id":  delivery.ID,
			"delivered_at": delivery.DeliveredAt,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyDeliveryCancelled notifies the affected party about a cancellation.
func (s *NotificationService) NotifyDeliveryCancelled(ctx context.Context, delivery *domain.Delivery, cancelledBy string, reason string) error {
	// Notify the other party.
	var recipientID string
	var message string

	if cancelledBy == delivery.SenderID {
		recipientID = delivery.CourierID
		message = "The sender has cancelled the delivery"
	} else {
		recipientID = delivery.SenderID
		message = "The delivery has been cancelled"
	}

	if recipientID == "" {
		return nil // No one to notify.
	}

	notification := Notification{
		Type:        NotificationDeliveryCancelled,
		RecipientID: recipientID,
		Title:       "Delivery Cancelled",
		Message:     message,
		Data: map[string]interface{}{
			"delivery_id":  delivery.ID,
			"cancelled_by": cancelledBy,
			"reason":       reason,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// send delivers a notification (mock implementation).
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	// In a real implementation, this would:
	// 1. Store notification in database
	// 2. Send push notification via FCM/APNS
	// 3. Send SMS/email if enabled

	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	return nil
}
