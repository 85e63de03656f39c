package service

import (
	"context"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
)

// GuardStore is the read side the duplicate guard needs.
type GuardStore interface {
	ExistsByEmailAndStatus(ctx context.Context, email string, status models.Status, exclude *id.ApplicantID) (bool, error)
	ExistsByPersonalNrAndStatus(ctx context.Context, personalNr string, status models.Status, exclude *id.ApplicantID) (bool, error)
}

// DuplicateGuard answers whether a conflicting identity already exists.
// Email comparison is case-insensitive; personal numbers compare exactly.
// Checks are advisory: the store's uniqueness constraints close the race
// between a check and the following write.
type DuplicateGuard struct {
	store GuardStore
}

func NewDuplicateGuard(store GuardStore) *DuplicateGuard {
	return &DuplicateGuard{store: store}
}

func (g *DuplicateGuard) ExistsAccepted(ctx context.Context, email string, exclude *id.ApplicantID) (bool, error) {
	return g.store.ExistsByEmailAndStatus(ctx, email, models.StatusAccepted, exclude)
}

func (g *DuplicateGuard) ExistsAcceptedPersonalNr(ctx context.Context, personalNr string, exclude *id.ApplicantID) (bool, error) {
	return g.store.ExistsByPersonalNrAndStatus(ctx, personalNr, models.StatusAccepted, exclude)
}

func (g *DuplicateGuard) ExistsPending(ctx context.Context, email string, exclude *id.ApplicantID) (bool, error) {
	return g.store.ExistsByEmailAndStatus(ctx, email, models.StatusPending, exclude)
}

// ExistsRejectedUnpurged reports a REJECTED record that the sweeper has not
// yet removed, whether or not its deadline has passed.
func (g *DuplicateGuard) ExistsRejectedUnpurged(ctx context.Context, email string, exclude *id.ApplicantID) (bool, error) {
	return g.store.ExistsByEmailAndStatus(ctx, email, models.StatusRejected, exclude)
}

// CheckApplication runs the intake checks in order: accepted email, accepted
// personal number, pending email, rejected email.
func (g *DuplicateGuard) CheckApplication(ctx context.Context, data models.PersonalData) error {
	checks := []struct {
		exists func() (bool, error)
		msg    string
	}{
		{func() (bool, error) { return g.ExistsAccepted(ctx, data.Email, nil) }, "a member with this email already exists"},
		{func() (bool, error) { return g.ExistsAcceptedPersonalNr(ctx, data.PersonalNr, nil) }, "a member with this personal number already exists"},
		{func() (bool, error) { return g.ExistsPending(ctx, data.Email, nil) }, "an application with this email is already pending"},
		{func() (bool, error) { return g.ExistsRejectedUnpurged(ctx, data.Email, nil) }, "an application with this email was rejected"},
	}
	for _, c := range checks {
		exists, err := c.exists()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicates")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, c.msg)
		}
	}
	return nil
}

// CheckMember runs the uniqueness checks among ACCEPTED records, excluding
// the member being edited.
func (g *DuplicateGuard) CheckMember(ctx context.Context, data models.PersonalData, exclude *id.ApplicantID) error {
	exists, err := g.ExistsAccepted(ctx, data.Email, exclude)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicates")
	}
	if exists {
		return dErrors.New(dErrors.CodeConflict, "a member with this email already exists")
	}
	exists, err = g.ExistsAcceptedPersonalNr(ctx, data.PersonalNr, exclude)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicates")
	}
	if exists {
		return dErrors.New(dErrors.CodeConflict, "a member with this personal number already exists")
	}
	return nil
}
