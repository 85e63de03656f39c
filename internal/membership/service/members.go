package service

import (
	"context"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
)

// ListMembers lists ACCEPTED records, newest first.
func (s *Service) ListMembers(ctx context.Context, page models.Page) (*models.ApplicantPage, error) {
	return s.list(ctx, models.StatusAccepted, page)
}

// GetMember returns an ACCEPTED record. Records in any other status are
// reported as not found.
func (s *Service) GetMember(ctx context.Context, memberID id.ApplicantID) (*models.Applicant, error) {
	applicant, err := s.GetApplication(ctx, memberID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, err
	}
	if !applicant.IsAccepted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return applicant, nil
}

// CreateMember registers an ACCEPTED member directly, bypassing intake.
// Email and personal number must be unique among members.
func (s *Service) CreateMember(ctx context.Context, req *models.MemberRequest) (member *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "create_member")
	defer func() { end(err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data := req.PersonalData()
	now := s.now(ctx)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.guard.CheckMember(txCtx, data, nil); err != nil {
			return err
		}
		m := models.NewMember(data, req.PaymentReference, req.PaymentAmount, now)
		if err := s.store.Create(txCtx, m); err != nil {
			return wrapStoreErr(err, "create member")
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "membership_member_created",
		"applicant_id", member.ID.String())
	return member, nil
}

// UpdateMember replaces a member's personal data. Uniqueness checks exclude
// the member itself, so re-saving unchanged data succeeds.
func (s *Service) UpdateMember(ctx context.Context, memberID id.ApplicantID, req *models.MemberRequest) (member *models.Applicant, err error) {
	ctx, end := s.startSpan(ctx, "update_member")
	defer func() { end(err) }()

	if err := requireApplicantID(memberID); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data := req.PersonalData()
	now := s.now(ctx)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.guard.CheckMember(txCtx, data, &memberID); err != nil {
			return err
		}
		m, err := s.store.Execute(txCtx, memberID,
			func(a *models.Applicant) error {
				return a.CanUpdateMember()
			},
			func(a *models.Applicant) {
				a.ApplyMemberUpdate(data, req.PaymentReference, req.PaymentAmount, now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "update member")
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "membership_member_updated",
		"applicant_id", member.ID.String())
	return member, nil
}

// DeleteMember removes a member. It behaves like Delete.
func (s *Service) DeleteMember(ctx context.Context, memberID id.ApplicantID) error {
	return s.Delete(ctx, memberID)
}
