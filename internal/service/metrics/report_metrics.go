package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReportLatency tracks reporting endpoint latency by endpoint name.
	ReportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smsent",
			Subsystem: "reports",
			Name:      "latency_seconds",
			Help:      "Latency of reporting endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// ReportErrors counts reporting endpoint failures by endpoint name.
	ReportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsent",
			Subsystem: "reports",
			Name:      "errors_total",
			Help:      "Errors by reporting endpoint",
		},
		[]string{"endpoint"},
	)

	// ReportCacheHits counts byte-cache hits on cached endpoints.
	ReportCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsent",
			Subsystem: "reports",
			Name:      "cache_hits_total",
			Help:      "Response cache hits by reporting endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ReportLatency, ReportErrors, ReportCacheHits)
	})
}
