package domain

import "time"

// DeliveryStatus represents the current status of a delivery request.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusApproved  DeliveryStatus = "APPROVED"
	DeliveryStatusInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
)

// deliveryTransitions is the allowed transition table for deliveries.
// DELIVERED and CANCELLED are terminal.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:   {DeliveryStatusApproved, DeliveryStatusCancelled},
	DeliveryStatusApproved:  {DeliveryStatusInTransit, DeliveryStatusCancelled},
	DeliveryStatusInTransit: {DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusDelivered: {},
	DeliveryStatusCancelled: {},
}

// CanTransition reports whether a delivery may move from one status to another.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Valid reports whether the status is one of the declared delivery statuses.
func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// Delivery represents a delivery request in the system.
//
// CourierID is set exactly once, by the matcher's binding step, and is
// non-empty iff Status is APPROVED, IN_TRANSIT or DELIVERED. A cancelled
// delivery that re-enters the queue starts over as a fresh PENDING record
// with the assignment cleared.
type Delivery struct {
	ID            string
	SenderID      string
	PickupLat     float64
	PickupLng     float64
	DropoffLat    float64
	DropoffLng    float64
	PackageWeight float64 // kilograms
	Status        DeliveryStatus
	CourierID     string
	CreatedAt     time.Time
	AssignedAt    time.Time
	StartedAt     time.Time
	DeliveredAt   time.Time
	CancelledAt   time.Time
	CancelReason  string
}

// Assigned reports whether a courier is bound to the delivery.
func (d *Delivery) Assigned() bool {
	return d.CourierID != ""
}

// Pickup returns the pickup coordinate.
func (d *Delivery) Pickup() Coordinate {
	return Coordinate{Lat: d.PickupLat, Lng: d.PickupLng}
}

// Dropoff returns the drop-off coordinate.
func (d *Delivery) Dropoff() Coordinate {
	return Coordinate{Lat: d.DropoffLat, Lng: d.DropoffLng}
}
