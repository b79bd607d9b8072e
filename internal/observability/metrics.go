package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// accuracy service.
type Metrics struct {
	RecordsConsumed  prometheus.Counter
	ParseErrors      prometheus.Counter
	ReportsPublished prometheus.Counter

	AnalysisRuns     prometheus.Counter
	AnalysisDuration prometheus.Histogram
	AnalysisRunning  prometheus.Gauge

	// Per-source accuracy gauges, refreshed on every analysis run.
	CandidatesStored  *prometheus.GaugeVec // labels: source
	MatchedFacilities *prometheus.GaugeVec // labels: source
	RecallPct         *prometheus.GaugeVec // labels: source
	MedianDistanceM   *prometheus.GaugeVec // labels: source

	// ExcludedRecords tallies records dropped from aggregates by reason:
	// unmatchable, no_match, zero_denominator, missing_field, outlier.
	ExcludedRecords *prometheus.GaugeVec // labels: source, reason
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsConsumed,
		m.ParseErrors,
		m.ReportsPublished,
		m.AnalysisRuns,
		m.AnalysisDuration,
		m.AnalysisRunning,
		m.CandidatesStored,
		m.MatchedFacilities,
		m.RecallPct,
		m.MedianDistanceM,
		m.ExcludedRecords,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	const namespace = "facility_accuracy"
	return &Metrics{
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_consumed_total",
			Help:      "Total vendor records read from the source topic.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total vendor records rejected at parse time.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Total accuracy reports written to the sink topic.",
		}),
		AnalysisRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Total completed matching and comparison runs.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete match-compare-report cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		AnalysisRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_running",
			Help:      "1 while an analysis run is in progress.",
		}),
		CandidatesStored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates_stored",
			Help:      "Candidate records currently held per source.",
		}, []string{"source"}),
		MatchedFacilities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched_facilities",
			Help:      "Canonical facilities matched per source in the last run.",
		}, []string{"source"}),
		RecallPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recall_pct",
			Help:      "Overall recall percentage per source in the last run.",
		}, []string{"source"}),
		MedianDistanceM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "median_distance_m",
			Help:      "Median match distance in meters per source in the last run.",
		}, []string{"source"}),
		ExcludedRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_records",
			Help:      "Records excluded from aggregates in the last run, by reason.",
		}, []string{"source", "reason"}),
	}
}
