package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sla"

// Metrics holds the Prometheus collectors shared by the API and worker.
// All methods are safe on a nil receiver.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	jobsScheduled   *prometheus.CounterVec
	jobsEvaluated   *prometheus.CounterVec
	breaches        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	escalations     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		jobsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_scheduled_total",
			Help:      "Deferred SLA job submissions by type and outcome (enqueued, deduped, failed).",
		}, []string{"job_type", "outcome"}),
		jobsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_evaluated_total",
			Help:      "Fired SLA jobs by type, outcome and skip reason.",
		}, []string{"job_type", "outcome", "reason"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaches_total",
			Help:      "Recorded SLA breaches by deadline type and priority.",
		}, []string{"job_type", "priority"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by channel and status.",
		}, []string{"channel", "status"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m
	}
	m.requests = register(reg, m.requests)
	m.requestDuration = register(reg, m.requestDuration)
	m.errors = register(reg, m.errors)
	m.jobsScheduled = register(reg, m.jobsScheduled)
	m.jobsEvaluated = register(reg, m.jobsEvaluated)
	m.breaches = register(reg, m.breaches)
	m.notifications = register(reg, m.notifications)
	m.escalations = register(reg, m.escalations)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordJobScheduled counts a job submission.
func (m *Metrics) RecordJobScheduled(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobsScheduled.WithLabelValues(jobType, outcome).Inc()
}

// RecordJobEvaluated counts a handled job. reason is empty for non-skips.
func (m *Metrics) RecordJobEvaluated(jobType, outcome, reason string) {
	if m == nil {
		return
	}
	m.jobsEvaluated.WithLabelValues(jobType, outcome, reason).Inc()
}

// RecordBreach counts a recorded breach.
func (m *Metrics) RecordBreach(jobType, priority string) {
	if m == nil {
		return
	}
	m.breaches.WithLabelValues(jobType, priority).Inc()
}

// RecordNotification counts a notification send.
func (m *Metrics) RecordNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// RecordEscalation counts an escalation attempt.
func (m *Metrics) RecordEscalation(outcome string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(outcome).Inc()
}
