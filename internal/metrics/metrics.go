// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tontine"

// Metrics holds the HTTP and ledger collectors.
type Metrics struct {
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
	SessionsCreated        prometheus.Counter
	Enrollments            prometheus.Counter
	ContributionsGenerated prometheus.Counter
	PaymentsRecorded       prometheus.Counter
	ContributionsPaid      prometheus.Counter
	WinnersAssigned        prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "contribution sessions created",
		}),
		Enrollments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "users enrolled into sessions",
		}),
		ContributionsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_generated_total",
			Help:      "contributions created by schedule generation",
		}),
		PaymentsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "ledger entries marked paid",
		}),
		ContributionsPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_paid_total",
			Help:      "contributions that became PAID after their last payment",
		}),
		WinnersAssigned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_assigned_total",
			Help:      "winner designations",
		}),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Noop returns collectors registered on a throwaway registry, for tests.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}
