package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignupAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_attempts_total",
			Help: "Total number of signup attempts",
		},
		[]string{"result"}, // success, rate_limited, bot_trap, disposable_email, ...
	)

	VerifierResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_verifier_results_total",
			Help: "Total email verifier results",
		},
		[]string{"provider", "result"}, // valid, invalid, error
	)

	SignupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signup_duration_seconds",
			Help:    "Duration of signup processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	TempDomainChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "temp_domain_checks_total",
			Help: "Total disposable-domain lookups",
		},
		[]string{"result"}, // temporary, permanent
	)

	TempDomainCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "temp_domains",
			Help: "Number of domains currently tracked as disposable",
		},
	)

	TempDomainRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "temp_domain_refreshes_total",
			Help: "Refresh cycles of the disposable-domain list",
		},
		[]string{"trigger", "result"}, // trigger: init, scheduled, manual; result: ok, partial, failed
	)

	TempDomainRefreshSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "temp_domain_refresh_skipped_total",
			Help: "Scheduled refreshes skipped because one was already running",
		},
	)

	TempDomainSourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "temp_domain_source_fetches_total",
			Help: "Remote domain list fetches per source",
		},
		[]string{"source", "result"}, // ok, error
	)

	TempDomainPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "temp_domain_persist_failures_total",
			Help: "Failed writes of the disposable-domain snapshot",
		},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SignupAttempts,
			VerifierResults,
			SignupDuration,
			TempDomainChecks,
			TempDomainCount,
			TempDomainRefreshes,
			TempDomainRefreshSkipped,
			TempDomainSourceFetches,
			TempDomainPersistFailures,
		)
	})
}
