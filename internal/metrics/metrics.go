// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "expense_tracker"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	otpIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued, split by whether the identity was new.",
		},
		[]string{"new_user"},
	)

	otpVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "Verification attempts by outcome.",
		},
		[]string{"outcome"},
	)

	otpDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_deliveries_total",
			Help:      "SMS deliveries attempted by the delivery worker, by outcome.",
		},
		[]string{"outcome"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_rate_limited_total",
			Help:      "Code requests rejected by the rate limiter.",
		},
	)

	gateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_gate_rejections_total",
			Help:      "Requests rejected by the access gate, by reason.",
		},
		[]string{"reason"},
	)
)

// RecordHTTPRequest counts a finished request and observes its latency.
func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordOTPIssued counts an issued code, split by whether the user is new.
func RecordOTPIssued(newUser bool) {
	otpIssuedTotal.WithLabelValues(strconv.FormatBool(newUser)).Inc()
}

// RecordOTPVerification outcome is one of "success", "invalid", "unknown_user".
func RecordOTPVerification(outcome string) {
	otpVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordOTPDelivery counts a delivery attempt as sent or failed.
func RecordOTPDelivery(ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	otpDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimited counts a code request refused by the rate limiter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// RecordGateRejection counts a request refused by the auth gate.
func RecordGateRejection(reason string) {
	gateRejectionsTotal.WithLabelValues(reason).Inc()
}
