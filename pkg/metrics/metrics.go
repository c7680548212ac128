package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the pipeline's own registry, exposed on /metrics by the report
// server. A dedicated registry keeps the default Go collectors out.
var Registry = prometheus.NewRegistry()

var (
	RunsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpuboard_runs_collected_total",
			Help: "Valid runs collected from the tracking service",
		},
		[]string{"team"},
	)
	TransportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpuboard_transport_errors_total",
			Help: "Recoverable transport errors while listing projects or paginating runs",
		},
		[]string{"scope"},
	)
	MetricsFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpuboard_metrics_fetch_failures_total",
			Help: "Runs whose metrics fetch exhausted all retry attempts",
		},
		[]string{"team"},
	)
	HistoryRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpuboard_history_rows",
			Help: "Rows in the persisted usage history after the last merge",
		},
	)
	PipelineDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpuboard_pipeline_duration_seconds",
			Help: "Wall-clock duration of the last pipeline invocation",
		},
	)
	PipelineLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpuboard_pipeline_last_success_timestamp_seconds",
			Help: "Completion time of the last successful pipeline invocation",
		},
	)
)

//nolint:gochecknoinits // Single registration point for the pipeline registry.
func init() {
	Registry.MustRegister(
		RunsCollected,
		TransportErrors,
		MetricsFetchFailures,
		HistoryRows,
		PipelineDuration,
		PipelineLastSuccess,
	)
}
