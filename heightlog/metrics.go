package heightlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubframe",
		Subsystem: "heightlog",
		Name:      "reports_total",
		Help:      "Height reports received, by outcome.",
	}, []string{"result"})
	metricHeight = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hubframe",
		Subsystem: "heightlog",
		Name:      "report_height_pixels",
		Help:      "Reported widget document heights.",
		Buckets:   prometheus.ExponentialBuckets(250, 2, 8),
	})
	metricStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hubframe",
		Subsystem: "heightlog",
		Name:      "stream_clients",
		Help:      "Connected live stream clients.",
	})
	metricStreamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hubframe",
		Subsystem: "heightlog",
		Name:      "stream_drops_total",
		Help:      "Reports dropped for slow stream clients.",
	})
	metricPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hubframe",
		Subsystem: "heightlog",
		Name:      "purged_total",
		Help:      "Reports deleted by retention.",
	})
)
