package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// ProvisionCounter counts provisioning requests by final outcome
	ProvisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_provision_total",
			Help: "Total number of store provisioning requests",
		},
		[]string{"outcome"}, // "success", or the error kind: "validation", "conflict", "io", ...
	)

	// CompensationCounter counts compensating actions run after a failed stage
	CompensationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_compensations_total",
			Help: "Total number of compensating actions by state and result",
		},
		[]string{"state", "result"},
	)

	// FilesMovedCounter counts uploaded files moved into permanent storage
	FilesMovedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_files_moved_total",
			Help: "Total number of uploaded files moved to the store asset tree",
		},
		[]string{"kind"},
	)

	// ImageAssignmentCounter counts product image assignments by source
	ImageAssignmentCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_image_assignments_total",
			Help: "Total number of product image assignments by source",
		},
		[]string{"source"}, // exact, pool, leftover, borrowed, default
	)

	// DuplicatesReclaimedCounter counts duplicate assets deleted by the reclaimer
	DuplicatesReclaimedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_duplicates_reclaimed_total",
			Help: "Total number of byte-identical asset files removed",
		},
	)

	// CleanupWarningCounter counts non-fatal cleanup failures
	CleanupWarningCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cleanup_warnings_total",
			Help: "Total number of non-fatal cleanup failures",
		},
		[]string{"task"},
	)
)

// Histogram metrics
var (
	// StageDuration records how long each pipeline stage takes
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_stage_duration_seconds",
			Help:    "Duration of provisioning pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// DBOperationDuration records database operation durations
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // precheck, commit, purge, query
	)
)

func init() {
	prometheus.MustRegister(ProvisionCounter)
	prometheus.MustRegister(CompensationCounter)
	prometheus.MustRegister(FilesMovedCounter)
	prometheus.MustRegister(ImageAssignmentCounter)
	prometheus.MustRegister(DuplicatesReclaimedCounter)
	prometheus.MustRegister(CleanupWarningCounter)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(DBOperationDuration)
}

// TrackStage measures a pipeline stage duration
func TrackStage(stage string) func(time.Time) {
	startTime := time.Now()
	return func(time.Time) {
		StageDuration.With(prometheus.Labels{"stage": stage}).Observe(time.Since(startTime).Seconds())
	}
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(time.Time) {
		DBOperationDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(startTime).Seconds())
	}
}

// RecordOutcome records the final outcome of one provisioning request
func RecordOutcome(outcome string) {
	ProvisionCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordCompensation records one compensating action
func RecordCompensation(state string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	CompensationCounter.With(prometheus.Labels{"state": state, "result": result}).Inc()
}

// RecordCleanupWarning records a non-fatal cleanup failure
func RecordCleanupWarning(task string) {
	CleanupWarningCounter.With(prometheus.Labels{"task": task}).Inc()
}
