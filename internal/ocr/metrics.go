package ocr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goodsreceipt",
		Name:      "ocr_attempts_total",
		Help:      "Cascade strategy attempts by outcome (ok, short, failed).",
	}, []string{"strategy", "outcome"})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "goodsreceipt",
		Name:      "ocr_duration_seconds",
		Help:      "Wall time spent per cascade strategy.",
		Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 45, 90},
	}, []string{"strategy"})
)

func observeAttempt(strategy string, ok, failed bool, elapsed time.Duration) {
	outcome := "short"
	switch {
	case ok:
		outcome = "ok"
	case failed:
		outcome = "failed"
	}
	attemptsTotal.WithLabelValues(strategy, outcome).Inc()
	attemptDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
