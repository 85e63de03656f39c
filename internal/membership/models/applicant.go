package models

import (
	"time"

	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
)

// PersonalData is the applicant-supplied identity and contact information.
type PersonalData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth *Date  `json:"date_of_birth,omitempty"`
	PersonalNr  string `json:"personal_nr"`
	Address     string `json:"address,omitempty"`
	PostCode    string `json:"post_code,omitempty"`
	City        string `json:"city,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email"`
	Occupation  string `json:"occupation,omitempty"`
}

// Applicant is one membership application, and once accepted, one membership.
//
// Invariants:
//   - PENDING: HandledAt and DeleteAt are nil
//   - ACCEPTED: DeleteAt is nil
//   - REJECTED: DeleteAt is set and strictly after HandledAt
//   - CreatedAt is immutable after intake
//
// Status changes go through the Can*/Apply* pairs so the store's Execute
// callback can validate and mutate under the same lock.
type Applicant struct {
	ID id.ApplicantID `json:"id"`
	PersonalData

	PaymentReference string `json:"payment_reference"`
	PaymentAmount    int    `json:"payment_amount"`

	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	HandledAt *time.Time `json:"handled_at,omitempty"`
	DeleteAt  *time.Time `json:"delete_at,omitempty"`
}

// NewApplication builds a PENDING record at intake. The store assigns the ID.
func NewApplication(data PersonalData, paymentReference string, paymentAmount int, now time.Time) *Applicant {
	return &Applicant{
		PersonalData:     data,
		PaymentReference: paymentReference,
		PaymentAmount:    paymentAmount,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewMember builds an ACCEPTED record created directly by an administrator.
func NewMember(data PersonalData, paymentReference string, paymentAmount int, now time.Time) *Applicant {
	handled := now
	return &Applicant{
		PersonalData:     data,
		PaymentReference: paymentReference,
		PaymentAmount:    paymentAmount,
		Status:           StatusAccepted,
		CreatedAt:        now,
		UpdatedAt:        now,
		HandledAt:        &handled,
	}
}

func (a *Applicant) IsPending() bool  { return a.Status == StatusPending }
func (a *Applicant) IsAccepted() bool { return a.Status == StatusAccepted }
func (a *Applicant) IsRejected() bool { return a.Status == StatusRejected }

// CanAccept checks the PENDING -> ACCEPTED edge.
func (a *Applicant) CanAccept() error {
	if !a.Status.CanTransitionTo(StatusAccepted) {
		return dErrors.New(dErrors.CodeConflict, "only PENDING applications can be accepted")
	}
	return nil
}

// ApplyAccept marks the record ACCEPTED. Call CanAccept first.
func (a *Applicant) ApplyAccept(now time.Time) {
	handled := now
	a.Status = StatusAccepted
	a.HandledAt = &handled
	a.DeleteAt = nil
	a.UpdatedAt = now
}

// CanReject checks the PENDING -> REJECTED edge.
func (a *Applicant) CanReject() error {
	if !a.Status.CanTransitionTo(StatusRejected) {
		return dErrors.New(dErrors.CodeConflict, "only PENDING applications can be rejected")
	}
	return nil
}

// ApplyReject marks the record REJECTED with a deadline of now + retention.
// Retention must be positive. Call CanReject first.
func (a *Applicant) ApplyReject(now time.Time, retention time.Duration) {
	handled := now
	deleteAt := now.Add(retention)
	a.Status = StatusRejected
	a.HandledAt = &handled
	a.DeleteAt = &deleteAt
	a.UpdatedAt = now
}

// CanRevert checks the ACCEPTED|REJECTED -> PENDING edge.
func (a *Applicant) CanRevert() error {
	if !a.Status.CanTransitionTo(StatusPending) {
		return dErrors.New(dErrors.CodeConflict, "application is already PENDING")
	}
	return nil
}

// ApplyRevert returns the record to PENDING and clears review timestamps.
func (a *Applicant) ApplyRevert(now time.Time) {
	a.Status = StatusPending
	a.HandledAt = nil
	a.DeleteAt = nil
	a.UpdatedAt = now
}

// CanUpdateMember allows personal data edits only on ACCEPTED records.
func (a *Applicant) CanUpdateMember() error {
	if a.Status != StatusAccepted {
		return dErrors.New(dErrors.CodeConflict, "only ACCEPTED members can be updated")
	}
	return nil
}

// ApplyMemberUpdate replaces personal and payment data on a member record.
func (a *Applicant) ApplyMemberUpdate(data PersonalData, paymentReference string, paymentAmount int, now time.Time) {
	a.PersonalData = data
	a.PaymentReference = paymentReference
	a.PaymentAmount = paymentAmount
	a.UpdatedAt = now
}

// IsPurgeable reports whether the retention sweeper may delete the record at now.
func (a *Applicant) IsPurgeable(now time.Time) bool {
	return a.Status == StatusRejected && a.DeleteAt != nil && a.DeleteAt.Before(now)
}

// CheckInvariants verifies the status/timestamp relationships.
func (a *Applicant) CheckInvariants() error {
	switch a.Status {
	case StatusPending:
		if a.HandledAt != nil || a.DeleteAt != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "pending record must not carry handled_at or delete_at")
		}
	case StatusAccepted:
		if a.DeleteAt != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "accepted record must not carry delete_at")
		}
	case StatusRejected:
		if a.HandledAt == nil || a.DeleteAt == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "rejected record requires handled_at and delete_at")
		}
		if !a.DeleteAt.After(*a.HandledAt) {
			return dErrors.New(dErrors.CodeInvariantViolation, "delete_at must be after handled_at")
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown status")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (a *Applicant) Clone() *Applicant {
	if a == nil {
		return nil
	}
	c := *a
	if a.DateOfBirth != nil {
		dob := *a.DateOfBirth
		c.DateOfBirth = &dob
	}
	if a.HandledAt != nil {
		h := *a.HandledAt
		c.HandledAt = &h
	}
	if a.DeleteAt != nil {
		d := *a.DeleteAt
		c.DeleteAt = &d
	}
	return &c
}
