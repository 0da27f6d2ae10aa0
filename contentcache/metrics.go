package contentcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubframe",
		Subsystem: "contentcache",
		Name:      "requests_total",
		Help:      "Proxied content requests, by cache result.",
	}, []string{"result"})
	metricUpstreamSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hubframe",
		Subsystem: "contentcache",
		Name:      "upstream_duration_seconds",
		Help:      "Latency of requests to the content repository.",
		Buckets:   prometheus.DefBuckets,
	})
)
