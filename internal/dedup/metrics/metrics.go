package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"outletdedup/internal/dedup/models"
)

// Metrics provides observability for deduplication runs.
// Gauges describe the last completed run; counters accumulate across runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	PhaseDuration      *prometheus.HistogramVec
	RecordsProcessed   prometheus.Counter
	LookupMissesTotal  prometheus.Counter
	PublishFailures    prometheus.Counter
	LastRunRecords     prometheus.Gauge
	LastRunGroups      prometheus.Gauge
	LastRunLargest     prometheus.Gauge
	LastRunUpdated     prometheus.Gauge
	LastRunUnassigned  prometheus.Gauge
	LastRunCollisions  prometheus.Gauge
	LastRunCompletedAt prometheus.Gauge
}

// New registers all deduplication metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_runs_total",
			Help: "Total number of deduplication runs by outcome",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_run_duration_seconds",
			Help:    "Duration of complete deduplication runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dedup_phase_duration_seconds",
			Help:    "Duration of individual run phases (read, cluster, persist, resolve, update)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"phase"}),
		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dedup_records_processed_total",
			Help: "Total number of source records clustered",
		}),
		LookupMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dedup_canonical_lookup_misses_total",
			Help: "Total number of groups whose representative was not found in the canonical table",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dedup_summary_publish_failures_total",
			Help: "Total number of run summaries that could not be published",
		}),
		LastRunRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_records",
			Help: "Input records of the last completed run",
		}),
		LastRunGroups: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_groups",
			Help: "Distinct groups of the last completed run",
		}),
		LastRunLargest: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_largest_group",
			Help: "Member count of the largest group of the last completed run",
		}),
		LastRunUpdated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_records_updated",
			Help: "Records updated with a canonical id in the last completed run",
		}),
		LastRunUnassigned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_unassigned_records",
			Help: "Records left without a canonical id in the last completed run",
		}),
		LastRunCollisions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_truncation_collisions",
			Help: "Groups sharing a truncated representative in the last completed run",
		}),
		LastRunCompletedAt: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_last_run_completed_timestamp_seconds",
			Help: "Unix time the last run completed",
		}),
	}
}

// ObservePhase records how long a run phase took.
// Call with time.Now() at the start of the phase.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	m.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// RecordFailure counts a run that aborted.
func (m *Metrics) RecordFailure() {
	m.RunsTotal.WithLabelValues("failed").Inc()
}

// RecordRejected counts a run refused because another run held the lock.
func (m *Metrics) RecordRejected() {
	m.RunsTotal.WithLabelValues("rejected").Inc()
}

// IncrementPublishFailures counts a summary that could not be published.
func (m *Metrics) IncrementPublishFailures() {
	m.PublishFailures.Inc()
}

// RecordSummary updates counters and last-run gauges from a completed run.
func (m *Metrics) RecordSummary(s models.Summary) {
	m.RunsTotal.WithLabelValues("completed").Inc()
	m.RunDuration.Observe(s.Duration.Seconds())
	m.RecordsProcessed.Add(float64(s.TotalRecords))
	m.LookupMissesTotal.Add(float64(s.LookupMisses))
	m.LastRunRecords.Set(float64(s.TotalRecords))
	m.LastRunGroups.Set(float64(s.Groups))
	m.LastRunLargest.Set(float64(s.LargestGroup))
	m.LastRunUpdated.Set(float64(s.RecordsUpdated))
	m.LastRunUnassigned.Set(float64(s.Unassigned))
	m.LastRunCollisions.Set(float64(s.Collisions))
	m.LastRunCompletedAt.Set(float64(s.StartedAt.Add(s.Duration).Unix()))
}
