package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsSubmitted      *prometheus.CounterVec
	StatusTransitions      *prometheus.CounterVec
	Uploads                *prometheus.CounterVec
	PaymentReconciliations *prometheus.CounterVec
	AccountsCreated        *prometheus.CounterVec
	CacheLookups           *prometheus.CounterVec
	EventsPublished        *prometheus.CounterVec
	RateLimited            *prometheus.CounterVec
	HTTPLatency            *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_requests_submitted_total",
			Help: "Total number of citizen requests submitted, by request type",
		}, []string{"type"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_status_transitions_total",
			Help: "Total number of request status transitions, by request type and target status",
		}, []string{"type", "to"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_uploads_total",
			Help: "File attachment attempts by outcome",
		}, []string{"outcome"}),
		PaymentReconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_payment_reconciliations_total",
			Help: "Payment status checks by source and outcome",
		}, []string{"source", "outcome"}),
		AccountsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_accounts_created_total",
			Help: "Accounts created, by role",
		}, []string{"role"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_cache_lookups_total",
			Help: "Response cache lookups by result (hit, stale, miss)",
		}, []string{"result"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_events_published_total",
			Help: "Workflow events delivered to subscribers, by subscriber and outcome",
		}, []string{"subscriber", "outcome"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint class",
		}, []string{"class"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etatcivil_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncRequestSubmitted(requestType string) {
	if m == nil {
		return
	}
	m.RequestsSubmitted.WithLabelValues(requestType).Inc()
}

func (m *Metrics) IncStatusTransition(requestType, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(requestType, to).Inc()
}

func (m *Metrics) IncUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPaymentReconciliation(source, outcome string) {
	if m == nil {
		return
	}
	m.PaymentReconciliations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncAccountCreated(role string) {
	if m == nil {
		return
	}
	m.AccountsCreated.WithLabelValues(role).Inc()
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncEventPublished(subscriber, outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(subscriber, outcome).Inc()
}

func (m *Metrics) IncRateLimited(class string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveHTTPLatency(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}
