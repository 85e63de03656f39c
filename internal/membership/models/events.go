package models

import "time"

// EventKind names an applicant-facing lifecycle event.
type EventKind string

const (
	EventReceived EventKind = "received"
	EventAccepted EventKind = "accepted"
	EventRejected EventKind = "rejected"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventReceived, EventAccepted, EventRejected:
		return true
	default:
		return false
	}
}

// LifecycleEvent is emitted after a transition has been committed.
// Applicant is a snapshot taken at commit time.
type LifecycleEvent struct {
	Kind       EventKind  `json:"kind"`
	Applicant  *Applicant `json:"applicant"`
	Reason     string     `json:"reason,omitempty"`
	ActorID    string     `json:"actor_id,omitempty"`
	RequestID  string     `json:"request_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
