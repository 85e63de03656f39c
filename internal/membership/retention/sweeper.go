// Package retention purges REJECTED records whose retention deadline has passed.
package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	membershipmetrics "orgapi/internal/membership/metrics"
	dErrors "orgapi/pkg/domain-errors"
)

// ErrSweepInProgress is returned when a purge is requested while another is
// still running, in this process or on another replica holding the lock.
var ErrSweepInProgress = dErrors.New(dErrors.CodeConflict, "retention sweep already in progress")

// Store deletes REJECTED records with delete_at strictly before now. The
// predicate must be evaluated at delete time so a record reverted since the
// last read is never removed.
type Store interface {
	DeleteExpiredRejected(ctx context.Context, now time.Time) (int, error)
}

// Locker extends the in-process guard across replicas. TryLock reports
// whether the lock was acquired; release must be called when ok is true.
type Locker interface {
	TryLock(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// Sweeper runs retention purges. At most one purge runs at a time.
type Sweeper struct {
	store   Store
	locker  Locker
	logger  *slog.Logger
	metrics *membershipmetrics.Metrics
	clock   func() time.Time
	running atomic.Bool
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *membershipmetrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithLocker adds a distributed lock taken for the duration of each purge.
func WithLocker(locker Locker) Option {
	return func(s *Sweeper) {
		s.locker = locker
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

func New(store Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("retention store is required")
	}
	s := &Sweeper{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PurgeExpired deletes every REJECTED record whose deadline is before now and
// returns how many were removed. Running it twice with the same now removes
// nothing the second time.
func (s *Sweeper) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped(ctx, "in_process")
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire retention lock")
		}
		if !ok {
			s.skipped(ctx, "lock_held")
			return 0, ErrSweepInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "failed to release retention lock", "error", err)
			}
		}()
	}

	start := time.Now()
	purged, err := s.store.DeleteExpiredRejected(ctx, now)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge expired applications")
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(purged, start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "retention sweep completed",
			"purged", purged,
			"cutoff", now.UTC().Format(time.RFC3339),
			"event", "membership_retention_sweep",
			"log_type", "audit",
		)
	}
	return purged, nil
}

// Purge runs PurgeExpired with the sweeper's clock.
func (s *Sweeper) Purge(ctx context.Context) (int, error) {
	return s.PurgeExpired(ctx, s.clock())
}

// Run purges once per interval until ctx is done. A failed or skipped purge
// is logged and retried at the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("retention interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Purge(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) && s.logger != nil {
				s.logger.WarnContext(ctx, "scheduled retention sweep failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) skipped(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementSweepSkipped()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "retention sweep skipped", "reason", reason)
	}
}
