// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth flow outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics contains the todopad Prometheus collectors.
type Metrics struct {
	AuthAttempts    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	SessionsSwept   prometheus.Counter
	MailHandoffFail *prometheus.CounterVec
}

// NewMetrics creates and registers the todopad metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todopad_auth_attempts_total",
				Help: "Total number of auth flow attempts by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todopad_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todopad_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "todopad_sessions_swept_total",
				Help: "Total number of expired sessions deleted by the sweeper",
			},
		),
		MailHandoffFail: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todopad_mail_handoff_failures_total",
				Help: "Total number of failed mail hand-offs by purpose",
			},
			[]string{"purpose"},
		),
	}

	reg.MustRegister(m.AuthAttempts, m.HTTPRequests, m.HTTPDuration, m.SessionsSwept, m.MailHandoffFail)
	return m
}

// RecordAuth counts one auth flow attempt. A nil receiver is a no-op.
func (m *Metrics) RecordAuth(flow, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

// RecordRequest counts one HTTP request. A nil receiver is a no-op.
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSwept adds n deleted sessions. A nil receiver is a no-op.
func (m *Metrics) RecordSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

// RecordMailFailure counts a failed hand-off. A nil receiver is a no-op.
func (m *Metrics) RecordMailFailure(purpose string) {
	if m == nil {
		return
	}
	m.MailHandoffFail.WithLabelValues(purpose).Inc()
}
