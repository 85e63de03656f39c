package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
)

// Apply validates an intake request, runs the duplicate checks and persists a
// PENDING record. The "received" notification is published after commit.
func (s *Service) Apply(ctx context.Context, req *models.ApplyRequest) (applicant *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "apply")
	defer func() { end(err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PaymentAmount != s.cfg.MembershipFee {
		return nil, dErrors.New(dErrors.CodeValidation, "payment_amount must equal the membership fee")
	}

	data := req.PersonalData()
	now := s.now(ctx)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.guard.CheckApplication(txCtx, data); err != nil {
			return err
		}
		a := models.NewApplication(data, req.PaymentReference, req.PaymentAmount, now)
		if err := s.store.Create(txCtx, a); err != nil {
			return wrapStoreErr(err, "create application")
		}
		applicant = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "membership_application_received",
		"applicant_id", applicant.ID.String())
	if s.metrics != nil {
		s.metrics.IncrementApplicationsReceived()
	}
	s.publish(ctx, models.EventReceived, applicant, "")
	return applicant, nil
}

// Accept moves a PENDING application to ACCEPTED.
//
// Uses the Execute callback pattern for atomic validate-then-mutate; two
// concurrent reviews of the same record see exactly one success.
func (s *Service) Accept(ctx context.Context, applicantID id.ApplicantID) (applicant *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "accept", attribute.String("applicant_id", applicantID.String()))
	defer func() { end(err) }()

	if err := requireApplicantID(applicantID); err != nil {
		return nil, err
	}

	now := s.now(ctx)
	applicant, err = s.store.Execute(ctx, applicantID,
		func(a *models.Applicant) error {
			return a.CanAccept()
		},
		func(a *models.Applicant) {
			a.ApplyAccept(now)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "accept application")
	}

	s.logAudit(ctx, "membership_application_accepted",
		"applicant_id", applicant.ID.String())
	s.incrementTransition(models.StatusAccepted)
	s.publish(ctx, models.EventAccepted, applicant, "")
	return applicant, nil
}

// Reject moves a PENDING application to REJECTED and schedules it for
// deletion. A nil or non-positive retentionDays uses the configured default.
func (s *Service) Reject(ctx context.Context, applicantID id.ApplicantID, req *models.RejectRequest) (applicant *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "reject", attribute.String("applicant_id", applicantID.String()))
	defer func() { end(err) }()

	if err := requireApplicantID(applicantID); err != nil {
		return nil, err
	}
	if req == nil {
		req = &models.RejectRequest{}
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	retention := s.retention(req.DaysToKeep)
	now := s.now(ctx)
	applicant, err = s.store.Execute(ctx, applicantID,
		func(a *models.Applicant) error {
			return a.CanReject()
		},
		func(a *models.Applicant) {
			a.ApplyReject(now, retention)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "reject application")
	}

	s.logAudit(ctx, "membership_application_rejected",
		"applicant_id", applicant.ID.String(),
		"delete_at", applicant.DeleteAt.UTC().Format(time.RFC3339))
	s.incrementTransition(models.StatusRejected)
	s.publish(ctx, models.EventRejected, applicant, req.Reason)
	return applicant, nil
}

// RevertToPending returns an ACCEPTED or REJECTED record to review.
// No applicant notification is sent.
func (s *Service) RevertToPending(ctx context.Context, applicantID id.ApplicantID) (applicant *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "revert", attribute.String("applicant_id", applicantID.String()))
	defer func() { end(err) }()

	if err := requireApplicantID(applicantID); err != nil {
		return nil, err
	}

	now := s.now(ctx)
	applicant, err = s.store.Execute(ctx, applicantID,
		func(a *models.Applicant) error {
			return a.CanRevert()
		},
		func(a *models.Applicant) {
			a.ApplyRevert(now)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "revert application")
	}

	s.logAudit(ctx, "membership_application_reverted",
		"applicant_id", applicant.ID.String())
	s.incrementTransition(models.StatusPending)
	return applicant, nil
}

// Delete removes a record of any status immediately.
func (s *Service) Delete(ctx context.Context, applicantID id.ApplicantID) (err error) {
	ctx, end := s.startSpan(ctx, "delete", attribute.String("applicant_id", applicantID.String()))
	defer func() { end(err) }()

	if err := requireApplicantID(applicantID); err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, applicantID); err != nil {
		return wrapStoreErr(err, "delete application")
	}

	s.logAudit(ctx, "membership_record_deleted",
		"applicant_id", applicantID.String())
	return nil
}

func (s *Service) retention(daysToKeep *int) time.Duration {
	days := s.cfg.DefaultRetentionDays
	if daysToKeep != nil && *daysToKeep > 0 {
		days = *daysToKeep
	}
	return time.Duration(days) * 24 * time.Hour
}
