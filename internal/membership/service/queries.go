package service

import (
	"context"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
)

// GetApplication returns a record of any status.
func (s *Service) GetApplication(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error) {
	if err := requireApplicantID(applicantID); err != nil {
		return nil, err
	}
	applicant, err := s.store.FindByID(ctx, applicantID)
	if err != nil {
		return nil, wrapStoreErr(err, "load application")
	}
	return applicant, nil
}

// ListApplications lists records with the given status, newest first.
// The status is parsed case-insensitively.
func (s *Service) ListApplications(ctx context.Context, status string, page models.Page) (*models.ApplicantPage, error) {
	st, ok := models.ParseStatus(status)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be one of PENDING, ACCEPTED, REJECTED")
	}
	return s.list(ctx, st, page)
}

func (s *Service) list(ctx context.Context, status models.Status, page models.Page) (*models.ApplicantPage, error) {
	page = page.Normalize()
	items, total, err := s.store.ListByStatus(ctx, status, page)
	if err != nil {
		return nil, wrapStoreErr(err, "list applications")
	}
	if items == nil {
		items = []*models.Applicant{}
	}
	return &models.ApplicantPage{
		Items: items,
		Page:  page.Number,
		Size:  page.Size,
		Total: total,
	}, nil
}
