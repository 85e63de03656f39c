package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	membershipmetrics "orgapi/internal/membership/metrics"
	"orgapi/internal/membership/models"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher turns committed lifecycle events into notifier calls. It
// satisfies the engine's EventSink. Sends are synchronous unless a queue is
// configured, in which case Run must be started to drain it.
type Dispatcher struct {
	notifier    Notifier
	logger      *slog.Logger
	metrics     *membershipmetrics.Metrics
	queue       chan queued
	sendTimeout time.Duration
}

type queued struct {
	ctx   context.Context
	event models.LifecycleEvent
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *membershipmetrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithQueue makes Publish enqueue events for Run instead of sending inline.
// Events published while the queue is full are dropped and counted as
// failures.
func WithQueue(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan queued, size)
		}
	}
}

func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

func NewDispatcher(notifier Notifier, opts ...DispatcherOption) (*Dispatcher, error) {
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	d := &Dispatcher{
		notifier:    notifier,
		logger:      slog.Default(),
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Publish never blocks on the queue and never returns an error.
func (d *Dispatcher) Publish(ctx context.Context, event models.LifecycleEvent) {
	ctx = context.WithoutCancel(ctx)
	if d.queue == nil {
		d.dispatch(ctx, event)
		return
	}
	select {
	case d.queue <- queued{ctx: ctx, event: event}:
	default:
		d.logger.WarnContext(ctx, "notification queue full, dropping notification",
			"kind", string(event.Kind),
			"applicant_id", applicantID(event),
		)
		d.failed(event.Kind)
	}
}

// Run drains the queue until ctx is done, then delivers what is already
// queued. It returns nil on shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.queue == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case item := <-d.queue:
			d.dispatch(item.ctx, item.event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case item := <-d.queue:
			d.dispatch(item.ctx, item.event)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.LifecycleEvent) {
	if !event.Kind.IsValid() || event.Applicant == nil {
		d.logger.WarnContext(ctx, "ignoring malformed lifecycle event", "kind", string(event.Kind))
		return
	}
	to := strings.TrimSpace(event.Applicant.Email)
	if to == "" {
		d.logger.WarnContext(ctx, "applicant has no email address, skipping notification",
			"kind", string(event.Kind),
			"applicant_id", applicantID(event),
		)
		return
	}

	extra := map[string]string{}
	if event.Reason != "" {
		extra[ExtraReason] = event.Reason
	}
	if event.RequestID != "" {
		extra[ExtraRequestID] = event.RequestID
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.notifier.Send(sendCtx, to, event.Kind, event.Applicant, extra); err != nil {
		d.logger.ErrorContext(ctx, "failed to send membership notification",
			"kind", string(event.Kind),
			"applicant_id", applicantID(event),
			"request_id", event.RequestID,
			"error", err,
		)
		d.failed(event.Kind)
		return
	}
	if d.metrics != nil {
		d.metrics.IncrementNotificationSent(string(event.Kind))
	}
}

func (d *Dispatcher) failed(kind models.EventKind) {
	if d.metrics != nil {
		d.metrics.IncrementNotificationFailure(string(kind))
	}
}

func applicantID(event models.LifecycleEvent) string {
	if event.Applicant == nil {
		return ""
	}
	return event.Applicant.ID.String()
}
