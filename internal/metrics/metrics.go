// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_applications_created_total",
			Help: "Total number of job applications created",
		},
	)

	DuplicateApplications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_applications_duplicate_total",
			Help: "Total number of rejected duplicate applications",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_application_status_transitions_total",
			Help: "Total number of application status changes",
		},
		[]string{"from", "to"},
	)

	StatsDriftCorrected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_stats_drift_corrected_total",
			Help: "Number of student stats counters corrected by reconciliation",
		},
		[]string{"field"},
	)

	EmailsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_emails_queued_total",
			Help: "Total number of emails queued",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_emails_sent_total",
			Help: "Total number of emails handed to the provider, by outcome",
		},
		[]string{"outcome"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_application_streams_active",
			Help: "Number of open application watch streams",
		},
	)
)
