package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	membershipmetrics "orgapi/internal/membership/metrics"
	"orgapi/internal/membership/models"
	"orgapi/pkg/attrs"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
	"orgapi/pkg/platform/sentinel"
	"orgapi/pkg/requestcontext"
)

// Store persists applicant records. Implementations must serialize Execute per
// record and enforce the status-scoped uniqueness constraints on write,
// reporting violations as sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, applicant *models.Applicant) error
	FindByID(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error)
	Execute(ctx context.Context, applicantID id.ApplicantID, validate func(*models.Applicant) error, mutate func(*models.Applicant)) (*models.Applicant, error)
	DeleteByID(ctx context.Context, applicantID id.ApplicantID) error
	ExistsByEmailAndStatus(ctx context.Context, email string, status models.Status, exclude *id.ApplicantID) (bool, error)
	ExistsByPersonalNrAndStatus(ctx context.Context, personalNr string, status models.Status, exclude *id.ApplicantID) (bool, error)
	ListByStatus(ctx context.Context, status models.Status, page models.Page) ([]*models.Applicant, int, error)
}

// StoreTx groups store calls into one transaction. Stores read the
// transaction from the context passed to fn.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventSink receives lifecycle events after the transition has committed.
// It must not block the caller on delivery and has no way to fail it.
type EventSink interface {
	Publish(ctx context.Context, event models.LifecycleEvent)
}

// Clock returns the current time.
type Clock func() time.Time

// Config holds the business constants the engine is built with.
type Config struct {
	MembershipFee        int
	DefaultRetentionDays int
}

func (c Config) validate() error {
	if c.MembershipFee <= 0 {
		return errors.New("membership fee must be positive")
	}
	if c.DefaultRetentionDays <= 0 {
		return errors.New("default retention days must be positive")
	}
	if c.DefaultRetentionDays > models.MaxRetentionDays {
		return fmt.Errorf("default retention days must be at most %d", models.MaxRetentionDays)
	}
	return nil
}

// Service is the membership lifecycle engine: intake, review transitions and
// administrative member management.
type Service struct {
	store   Store
	guard   *DuplicateGuard
	tx      StoreTx
	events  EventSink
	cfg     Config
	logger  *slog.Logger
	metrics *membershipmetrics.Metrics
	clock   Clock
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *membershipmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.events = sink
	}
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithClock overrides the request-scoped time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New constructs a Service.
func New(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:  store,
		guard:  NewDuplicateGuard(store),
		cfg:    cfg,
		tracer: otel.Tracer("orgapi/membership"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s, nil
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func (s *Service) startSpan(ctx context.Context, operation string, kv ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := s.tracer.Start(ctx, "membership."+operation, trace.WithAttributes(kv...))
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
				s.metrics.IncrementConflict(operation)
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, start)
		}
		span.End()
	}
}

// publish hands a committed transition to the sink. Called only after the
// store write has returned successfully.
func (s *Service) publish(ctx context.Context, kind models.EventKind, applicant *models.Applicant, reason string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.LifecycleEvent{
		Kind:       kind,
		Applicant:  applicant.Clone(),
		Reason:     reason,
		ActorID:    requestcontext.ActorID(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: s.now(ctx),
	})
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	attributes = attrs.SetDefault(attributes, "request_id", requestcontext.RequestID(ctx))
	attributes = attrs.SetDefault(attributes, "actor_id", requestcontext.ActorID(ctx))
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func (s *Service) incrementTransition(to models.Status) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(to))
	}
}

func requireApplicantID(applicantID id.ApplicantID) error {
	if applicantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "applicant id required")
	}
	return nil
}

// wrapStoreErr maps store facts to domain errors. Coded errors returned from
// Execute validate callbacks pass through unchanged.
func wrapStoreErr(err error, action string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "an application or member with this identity already exists")
	case errors.Is(err, sentinel.ErrInvariantViolation):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "record would break lifecycle invariants")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
