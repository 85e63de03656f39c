package models

import "strings"

// Status is the lifecycle state of an applicant record.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", false
	}
	return st, true
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine has an edge from s to target.
//
//	PENDING  -> ACCEPTED | REJECTED
//	ACCEPTED -> PENDING
//	REJECTED -> PENDING
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusAccepted || target == StatusRejected
	case StatusAccepted, StatusRejected:
		return target == StatusPending
	default:
		return false
	}
}
