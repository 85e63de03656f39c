// Package notify delivers applicant notifications for committed lifecycle
// transitions. Delivery is best effort: failures are logged and counted and
// never reach the caller of the transition.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"orgapi/internal/membership/models"
)

// Extra keys passed to notifiers.
const (
	ExtraReason    = "reason"
	ExtraRequestID = "request_id"
)

// Notifier sends one notification of the given kind to the applicant.
type Notifier interface {
	Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, to, kind, applicant, extra); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the log. Used in development and as
// the fallback while a provider circuit is open.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error {
	n.logger.InfoContext(ctx, "membership notification",
		"kind", string(kind),
		"to", to,
		"applicant_id", applicant.ID.String(),
		"reason", extra[ExtraReason],
	)
	return nil
}
