package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for fetching
// upstream data and building reports.
type Metrics struct {
	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	FetchCache    *prometheus.CounterVec   // labels: provider, result={hit,miss}
	FetchDuration *prometheus.HistogramVec // labels: provider

	// Report metrics.
	ReportsBuilt       prometheus.Counter
	FiguresBuilt       prometheus.Counter
	FiguresSkipped     *prometheus.CounterVec // labels: reason
	BuildDuration      prometheus.Histogram
	ReportsWritten     *prometheus.CounterVec // labels: sink, outcome={written,unchanged,error}
	SchedulerRunning   prometheus.Gauge
	LastBuildTimestamp prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchCache,
		m.FetchDuration,
		m.ReportsBuilt,
		m.FiguresBuilt,
		m.FiguresSkipped,
		m.BuildDuration,
		m.ReportsWritten,
		m.SchedulerRunning,
		m.LastBuildTimestamp,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "fetch_requests_total",
			Help:      "Upstream CSV downloads by provider and outcome.",
		}, []string{"provider", "outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "fetch_cache_total",
			Help:      "Hourly on-disk cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream CSV download duration in seconds, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		ReportsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "reports_built_total",
			Help:      "Total completed report builds.",
		}),
		FiguresBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "figures_built_total",
			Help:      "Total metric/window figures produced.",
		}),
		FiguresSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "figures_skipped_total",
			Help:      "Figures skipped because data was unavailable, by reason.",
		}, []string{"reason"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covid_etl",
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete report build.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ReportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "reports_written_total",
			Help:      "Report deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_etl",
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when stopped.",
		}),
		LastBuildTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_etl",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time of the last successful report build.",
		}),
	}
}
