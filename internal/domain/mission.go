package domain

import "time"

// MissionStatus represents the current status of a mission.
type MissionStatus string

const (
	MissionStatusPending    MissionStatus = "PENDING"
	MissionStatusInProgress MissionStatus = "IN_PROGRESS"
	MissionStatusCompleted  MissionStatus = "COMPLETED"
	MissionStatusCancelled  MissionStatus = "CANCELLED"
)

// missionTransitions is the allowed transition table for missions.
// COMPLETED and CANCELLED are terminal.
var missionTransitions = map[MissionStatus][]MissionStatus{
	MissionStatusPending:    {MissionStatusInProgress, MissionStatusCancelled},
	MissionStatusInProgress: {MissionStatusCompleted, MissionStatusCancelled},
	MissionStatusCompleted:  {},
	MissionStatusCancelled:  {},
}

// CanTransition reports whether a mission may move from one status to another.
func (s MissionStatus) CanTransition(to MissionStatus) bool {
	for _, allowed := range missionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s MissionStatus) IsTerminal() bool {
	return s == MissionStatusCompleted || s == MissionStatusCancelled
}

// Valid reports whether the status is one of the declared mission statuses.
func (s MissionStatus) Valid() bool {
	_, ok := missionTransitions[s]
	return ok
}

// Mission is the per-assignment work record tracking a courier's execution
// of an already-matched delivery. At most one non-terminal mission may
// reference a given delivery at a time.
type Mission struct {
	ID          string
	DeliveryID  string
	CourierID   string
	Status      MissionStatus
	Notes       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}
