package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goodsreceipt",
		Name:      "documents_total",
		Help:      "Documents processed, by resulting status.",
	}, []string{"status"})

	processSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goodsreceipt",
		Name:      "process_duration_seconds",
		Help:      "End-to-end processing time of one document.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
