package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "document_transitions_total", Help: "Document history events recorded, by resulting status."},
		[]string{"status"},
	)
	ArchiveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docflow", Name: "archive_failures_total", Help: "Terminal documents that could not be archived."},
	)
	UserCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "user_cache_lookups_total", Help: "User reference cache lookups by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentTransitions)
	reg.MustRegister(ArchiveFailures)
	reg.MustRegister(UserCacheLookups)
}
