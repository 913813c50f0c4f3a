package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ecosystem_analysis"

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis service.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: outcome={complete,invalid}
	AnalysesInFlight prometheus.Gauge
	AnalysisDuration prometheus.Histogram

	// Per-variable pipeline metrics.
	VariableOutcomes *prometheus.CounterVec // labels: variable, status={ok,partial,unavailable,failed,timeout}
	ZonalReductions  *prometheus.CounterVec // labels: outcome={ok,no_data,error}
	ZonalCoarsened   prometheus.Counter

	// Raster platform metrics.
	PlatformCallDuration *prometheus.HistogramVec // labels: operation
	PlatformErrors       *prometheus.CounterVec   // labels: operation

	// Report publishing.
	ReportsPublished *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge
}

var (
	analysisBuckets = []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	platformBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}
	geocodeBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

func newMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis requests by outcome.",
		}, []string{"outcome"}),
		AnalysesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a complete analysis including all variable pipelines.",
			Buckets:   analysisBuckets,
		}),
		VariableOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variable_outcomes_total",
			Help:      "Variable results by variable and status.",
		}, []string{"variable", "status"}),
		ZonalReductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zonal_reductions_total",
			Help:      "Zonal reductions by outcome.",
		}, []string{"outcome"}),
		ZonalCoarsened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zonal_coarsened_total",
			Help:      "Zonal reductions run at a coarser scale to stay under the sample cap.",
		}),
		PlatformCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "platform_call_duration_seconds",
			Help:      "Raster platform call duration by operation.",
			Buckets:   platformBuckets,
		}, []string{"operation"}),
		PlatformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_errors_total",
			Help:      "Failed raster platform calls by operation.",
		}, []string{"operation"}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports written to the report topic by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   geocodeBuckets,
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place-name enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AnalysesTotal,
		m.AnalysesInFlight,
		m.AnalysisDuration,
		m.VariableOutcomes,
		m.ZonalReductions,
		m.ZonalCoarsened,
		m.PlatformCallDuration,
		m.PlatformErrors,
		m.ReportsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
