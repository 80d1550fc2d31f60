package judge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqljudge_reviews_total",
			Help: "Reviewed submissions by resulting status.",
		},
		[]string{"status"},
	)

	reviewDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqljudge_review_duration_seconds",
			Help:    "Time spent reviewing one submission.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(reviewsTotal, reviewDuration)
}

func observeReview(status int, elapsed time.Duration) {
	reviewsTotal.WithLabelValues(StatusName(status)).Inc()
	reviewDuration.Observe(elapsed.Seconds())
}
