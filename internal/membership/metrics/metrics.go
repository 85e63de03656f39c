package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the membership module.
// Tracks intake, review transitions, retention sweeps and notification delivery.
type Metrics struct {
	ApplicationsReceived prometheus.Counter
	Transitions          *prometheus.CounterVec
	Conflicts            *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	RecordsPurged        prometheus.Counter
	SweepDuration        prometheus.Histogram
	SweepsSkipped        prometheus.Counter
	NotificationsSent    *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
}

// New registers the membership metrics with reg. A nil registerer creates
// unregistered collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "orgapi_membership_applications_received_total",
			Help: "Total number of membership applications accepted for review",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgapi_membership_transitions_total",
			Help: "Total number of committed status transitions",
		}, []string{"to"}),
		Conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgapi_membership_conflicts_total",
			Help: "Total number of operations refused with a conflict",
		}, []string{"operation"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orgapi_membership_operation_duration_seconds",
			Help:    "Duration of membership lifecycle operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		RecordsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "orgapi_membership_records_purged_total",
			Help: "Total number of expired rejected records deleted by the retention sweeper",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orgapi_membership_sweep_duration_seconds",
			Help:    "Duration of retention sweeps",
			Buckets: durationBuckets,
		}),
		SweepsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "orgapi_membership_sweeps_skipped_total",
			Help: "Total number of sweeps skipped because another sweep held the lock",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgapi_membership_notifications_sent_total",
			Help: "Total number of applicant notifications delivered",
		}, []string{"kind"}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgapi_membership_notification_failures_total",
			Help: "Total number of applicant notifications that failed to send",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementApplicationsReceived() {
	m.ApplicationsReceived.Inc()
}

func (m *Metrics) IncrementTransition(to string) {
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementConflict(operation string) {
	m.Conflicts.WithLabelValues(operation).Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveSweep(purged int, start time.Time) {
	m.RecordsPurged.Add(float64(purged))
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementSweepSkipped() {
	m.SweepsSkipped.Inc()
}

func (m *Metrics) IncrementNotificationSent(kind string) {
	m.NotificationsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementNotificationFailure(kind string) {
	m.NotificationFailures.WithLabelValues(kind).Inc()
}
