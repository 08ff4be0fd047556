package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for ingestion and fan-out.
type Metrics struct {
	ReportsCreated      prometheus.Counter
	ReportRejections    *prometheus.CounterVec // labels: reason={validation,storage,image}
	DonationsCreated    prometheus.Counter
	NotifyDropped       prometheus.Counter
	BroadcastDropped    prometheus.Counter
	RealtimeSubscribers prometheus.Gauge
	ImageUploadDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "reports_created_total",
			Help:      "Disaster reports persisted.",
		}),
		ReportRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "report_rejections_total",
			Help:      "Report submissions that were not persisted, by reason.",
		}, []string{"reason"}),
		DonationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "donations_created_total",
			Help:      "Donations recorded.",
		}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "notify_dropped_total",
			Help:      "New-report notifications dropped because the dispatch queue was full.",
		}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "broadcast_dropped_total",
			Help:      "Events skipped for slow real-time subscribers.",
		}),
		RealtimeSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relief",
			Name:      "realtime_subscribers",
			Help:      "Currently connected real-time subscribers.",
		}),
		ImageUploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relief",
			Name:      "image_upload_duration_seconds",
			Help:      "Time spent writing an uploaded image.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.ReportsCreated,
		m.ReportRejections,
		m.DonationsCreated,
		m.NotifyDropped,
		m.BroadcastDropped,
		m.RealtimeSubscribers,
		m.ImageUploadDuration,
	)

	return m
}

// NewMetricsForTesting registers against a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
