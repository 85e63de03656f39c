package notify

import (
	"context"
	"log/slog"

	"orgapi/internal/membership/models"
	"orgapi/pkg/platform/circuit"
)

// Guarded wraps a provider notifier with a circuit breaker. The primary is
// always attempted; while the circuit is open a failed send is handed to the
// fallback instead of being reported.
type Guarded struct {
	primary  Notifier
	fallback Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewGuarded(primary, fallback Notifier, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *Guarded) Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error {
	err := g.primary.Send(ctx, to, kind, applicant, extra)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "notification circuit closed", "circuit", g.breaker.Name())
		}
		return nil
	}

	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "notification circuit opened", "circuit", g.breaker.Name(), "error", err)
	}
	if useFallback && g.fallback != nil {
		return g.fallback.Send(ctx, to, kind, applicant, extra)
	}
	return err
}
