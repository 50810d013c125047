// Package metrics declares the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skillforge",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	ExamsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Name:      "exams_submitted_total",
		Help:      "Graded exam submissions by difficulty and pass/fail.",
	}, []string{"difficulty", "result"})

	CertificatesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skillforge",
		Name:      "certificates_issued_total",
		Help:      "Certificates generated.",
	})

	LeaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Name:      "leaderboard_cache_total",
		Help:      "Leaderboard cache lookups by outcome.",
	}, []string{"outcome"})

	ExpiredRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Name:      "expired_rows_total",
		Help:      "Rows moved to expired by the expiry job.",
	}, []string{"kind"})
)

// PassLabel maps a score to the result label of ExamsSubmitted.
func PassLabel(score, passing int) string {
	if score >= passing {
		return "pass"
	}
	return "fail"
}
