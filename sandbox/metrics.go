package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var sessionBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqljudge_sandbox_sessions_total",
			Help: "Sandbox sessions by problem kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqljudge_sandbox_session_duration_seconds",
			Help:    "Sandbox session duration",
			Buckets: sessionBuckets,
		},
		[]string{"kind"},
	)

	poolWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqljudge_admin_pool_wait_seconds",
			Help:    "Time spent waiting for an admin connection",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the sandbox collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(sessionsTotal, sessionDuration, poolWait)
}

func observeSession(kind string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		if e, ok := AsError(err); ok {
			outcome = e.Kind.String()
		} else {
			outcome = "error"
		}
	}
	sessionsTotal.WithLabelValues(kind, outcome).Inc()
	sessionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
