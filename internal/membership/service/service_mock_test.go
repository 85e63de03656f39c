package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,StoreTx,EventSink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"orgapi/internal/membership/models"
	"orgapi/internal/membership/service/mocks"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
	"orgapi/pkg/platform/sentinel"
)

// =============================================================================
// Store Error Mapping Test Suite
// =============================================================================
// Justification for unit tests: store failures must surface as coded domain
// errors, and no notification may leave the engine for a write that failed.
// A real store cannot easily be made to fail on demand.

type ServiceMockSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	mockTx    *mocks.MockStoreTx
	mockSink  *mocks.MockEventSink
	service   *Service
	now       time.Time
}

func TestServiceMockSuite(t *testing.T) {
	suite.Run(t, new(ServiceMockSuite))
}

func (s *ServiceMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockTx = mocks.NewMockStoreTx(s.ctrl)
	s.mockSink = mocks.NewMockEventSink(s.ctrl)
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	s.mockTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(s.mockStore, Config{MembershipFee: 300, DefaultRetentionDays: 365},
		WithLogger(logger),
		WithStoreTx(s.mockTx),
		WithEventSink(s.mockSink),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceMockSuite) validApply() *models.ApplyRequest {
	return &models.ApplyRequest{
		FirstName:        "Ola",
		LastName:         "Nordmann",
		PersonalNr:       "123",
		Email:            "ola@x.com",
		PaymentReference: "ref",
		PaymentAmount:    300,
	}
}

func (s *ServiceMockSuite) expectNoDuplicates() {
	s.mockStore.EXPECT().ExistsByEmailAndStatus(gomock.Any(), "ola@x.com", gomock.Any(), nil).Return(false, nil).Times(3)
	s.mockStore.EXPECT().ExistsByPersonalNrAndStatus(gomock.Any(), "123", models.StatusAccepted, nil).Return(false, nil)
}

// =============================================================================
// Apply
// =============================================================================

func (s *ServiceMockSuite) TestApplyStoreErrors() {
	s.Run("unique violation on create maps to conflict without notification", func() {
		s.expectNoDuplicates()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("insert: %w", sentinel.ErrConflict))

		_, err := s.service.Apply(context.Background(), s.validApply())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unexpected create failure maps to internal", func() {
		s.expectNoDuplicates()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.Apply(context.Background(), s.validApply())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("duplicate lookup failure maps to internal", func() {
		s.mockStore.EXPECT().ExistsByEmailAndStatus(gomock.Any(), gomock.Any(), models.StatusAccepted, nil).
			Return(false, errors.New("db down"))

		_, err := s.service.Apply(context.Background(), s.validApply())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("timeout maps to timeout", func() {
		s.expectNoDuplicates()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)

		_, err := s.service.Apply(context.Background(), s.validApply())
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("successful create publishes exactly one received event", func() {
		s.expectNoDuplicates()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a *models.Applicant) error {
				a.ID = id.NewApplicantID()
				return nil
			})
		s.mockSink.EXPECT().Publish(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, event models.LifecycleEvent) {
				s.Equal(models.EventReceived, event.Kind)
				s.Equal("ola@x.com", event.Applicant.Email)
			}).Times(1)

		_, err := s.service.Apply(context.Background(), s.validApply())
		s.NoError(err)
	})
}

// =============================================================================
// Transitions
// =============================================================================

func (s *ServiceMockSuite) TestTransitionStoreErrors() {
	applicantID := id.NewApplicantID()

	s.Run("not found", func() {
		s.mockStore.EXPECT().Execute(gomock.Any(), applicantID, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Accept(context.Background(), applicantID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("validate callback error passes through", func() {
		s.mockStore.EXPECT().Execute(gomock.Any(), applicantID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.ApplicantID, validate func(*models.Applicant) error, _ func(*models.Applicant)) (*models.Applicant, error) {
				return nil, validate(&models.Applicant{ID: applicantID, Status: models.StatusAccepted})
			})

		_, err := s.service.Reject(context.Background(), applicantID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("check constraint breach maps to invariant violation without notification", func() {
		s.mockStore.EXPECT().Execute(gomock.Any(), applicantID, gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("update applicant: %w", sentinel.ErrInvariantViolation))

		_, err := s.service.Reject(context.Background(), applicantID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("generic failure maps to internal", func() {
		s.mockStore.EXPECT().Execute(gomock.Any(), applicantID, gomock.Any(), gomock.Any()).
			Return(nil, errors.New("boom"))

		_, err := s.service.RevertToPending(context.Background(), applicantID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("reject publishes reason after commit", func() {
		days := 7
		s.mockStore.EXPECT().Execute(gomock.Any(), applicantID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.ApplicantID, validate func(*models.Applicant) error, mutate func(*models.Applicant)) (*models.Applicant, error) {
				a := &models.Applicant{ID: applicantID, Status: models.StatusPending}
				a.Email = "ola@x.com"
				if err := validate(a); err != nil {
					return nil, err
				}
				mutate(a)
				return a, nil
			})
		s.mockSink.EXPECT().Publish(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, event models.LifecycleEvent) {
				s.Equal(models.EventRejected, event.Kind)
				s.Equal("incomplete", event.Reason)
				s.Equal(s.now.Add(7*24*time.Hour), *event.Applicant.DeleteAt)
			})

		_, err := s.service.Reject(context.Background(), applicantID, &models.RejectRequest{DaysToKeep: &days, Reason: " incomplete "})
		s.NoError(err)
	})
}

func (s *ServiceMockSuite) TestQueryStoreErrors() {
	s.Run("list failure maps to internal", func() {
		s.mockStore.EXPECT().ListByStatus(gomock.Any(), models.StatusPending, gomock.Any()).
			Return(nil, 0, errors.New("boom"))

		_, err := s.service.ListApplications(context.Background(), "PENDING", models.Page{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("list normalizes page", func() {
		s.mockStore.EXPECT().ListByStatus(gomock.Any(), models.StatusAccepted, models.Page{Number: 0, Size: models.MaxPageSize}).
			Return(nil, 0, nil)

		page, err := s.service.ListMembers(context.Background(), models.Page{Number: -3, Size: 10_000})
		s.Require().NoError(err)
		s.NotNil(page.Items)
		s.Empty(page.Items)
	})

	s.Run("delete failure maps to internal", func() {
		applicantID := id.NewApplicantID()
		s.mockStore.EXPECT().DeleteByID(gomock.Any(), applicantID).Return(errors.New("boom"))

		err := s.service.Delete(context.Background(), applicantID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
