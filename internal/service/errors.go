package service

import "errors"

var (
	// ErrNoCourierAvailable is returned when no courier can be matched.
	ErrNoCourierAvailable = errors.New("no courier available")

	// ErrDeliveryNotPending is returned when trying to match a delivery not in PENDING state.
	ErrDeliveryNotPending = errors.New("delivery not in pending state")

	// ErrDeliveryAlreadyAssigned is returned when a binding attempt lost the
	// race: another matcher assigned the delivery first.
	ErrDeliveryAlreadyAssigned = errors.New("delivery already assigned")

	// ErrInvalidTransition is returned for a status move outside the allowed
	// table. Callers wrap it with the current and requested states.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCourierNotAssigned is returned when the caller is not the courier
	// bound to the delivery.
	ErrCourierNotAssigned = errors.New("courier not assigned to this delivery")

	// ErrDeliveryNotApproved is returned when creating a mission for a
	// delivery that has no courier bound yet.
	ErrDeliveryNotApproved = errors.New("delivery not approved")

	// ErrMissionAlreadyExists is returned when an active mission already
	// references the delivery.
	ErrMissionAlreadyExists = errors.New("active mission already exists for delivery")

	// ErrInvalidSenderID is returned when sender ID is empty.
	ErrInvalidSenderID = errors.New("invalid sender id")

	// ErrInvalidDeliveryID is returned when delivery ID is empty.
	ErrInvalidDeliveryID = errors.New("invalid delivery id")

	// ErrInvalidCourierID is returned when courier ID is empty.
	ErrInvalidCourierID = errors.New("invalid courier id")

	// ErrInvalidMissionID is returned when mission ID is empty.
	ErrInvalidMissionID = errors.New("invalid mission id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when drop-off coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidPackageWeight is returned when package weight is not positive.
	ErrInvalidPackageWeight = errors.New("invalid package weight")

	// ErrInvalidStatus is returned when a status value is not one of the
	// declared statuses.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrDeliveryAlreadyCancelled is returned when cancelling an already cancelled delivery.
	ErrDeliveryAlreadyCancelled = errors.New("delivery already cancelled")

	// ErrDeliveryCannotBeCancelled is returned when a delivery is in a
	// terminal state and cannot be cancelled.
	ErrDeliveryCannotBeCancelled = errors.New("delivery cannot be cancelled in current state")
)
