package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// warehouse pipeline.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration prometheus.Histogram
	RunActive   prometheus.Gauge

	ObservationsFetched   prometheus.Counter
	ObservationsLanded    prometheus.Counter
	MalformedObservations prometheus.Counter
	DuplicatesDiscarded   prometheus.Counter

	DimensionInserts prometheus.Counter
	DimensionCloses  prometheus.Counter
	UnchangedReads   prometheus.Counter
	OutOfOrderReads  prometheus.Counter
	IntegrityFaults  prometheus.Counter

	QualityFailures *prometheus.CounterVec // labels: check

	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunActive,
		m.ObservationsFetched,
		m.ObservationsLanded,
		m.MalformedObservations,
		m.DuplicatesDiscarded,
		m.DimensionInserts,
		m.DimensionCloses,
		m.UnchangedReads,
		m.OutOfOrderReads,
		m.IntegrityFaults,
		m.QualityFailures,
		m.FetchRequests,
		m.FetchDuration,
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
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-land-reconcile-aggregate run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "run_active",
			Help:      "1 while a pipeline run is in progress.",
		}),
		ObservationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "observations_fetched_total",
			Help:      "Observations fetched from the upstream API.",
		}),
		ObservationsLanded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "observations_landed_total",
			Help:      "Observations written to the raw landing table.",
		}),
		MalformedObservations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "malformed_observations_total",
			Help:      "Rows rejected during deduplication for missing required fields.",
		}),
		DuplicatesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "duplicates_discarded_total",
			Help:      "Rows discarded as (city, timestamp) duplicates.",
		}),
		DimensionInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "dimension_inserts_total",
			Help:      "New dimension versions inserted.",
		}),
		DimensionCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "dimension_closes_total",
			Help:      "Open dimension rows closed by a superseding version.",
		}),
		UnchangedReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "unchanged_observations_total",
			Help:      "Observations whose content hash matched the open dimension row.",
		}),
		OutOfOrderReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "out_of_order_observations_total",
			Help:      "Hash-differing observations rejected for arriving older than the open row.",
		}),
		IntegrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "integrity_faults_total",
			Help:      "Cities found with more than one current dimension row at run start.",
		}),
		QualityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "quality_check_failures_total",
			Help:      "Data-quality contract check failures by check name.",
		}, []string{"check"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_requests_total",
			Help:      "Upstream API requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
