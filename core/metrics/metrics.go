// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"mes.GO/core/events"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mes_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mes_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mes_job_runs_total",
			Help: "Scheduler job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mes_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"job"},
	)

	pipelineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mes_pipeline_events_total",
			Help: "Pipeline events by topic.",
		},
		[]string{"topic"},
	)

	reportsReallocatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mes_reports_reallocated_total",
			Help: "Reports whose allocated quantity changed.",
		},
	)

	databaseConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mes_database_connections_open",
			Help: "Open database connections.",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mes_database_connections_idle",
			Help: "Idle database connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(jobRunsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(pipelineEventsTotal)
	prometheus.MustRegister(reportsReallocatedTotal)
	prometheus.MustRegister(databaseConnectionsOpen)
	prometheus.MustRegister(databaseConnectionsIdle)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAPIRequest(method, path string, status int, seconds float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordJob counts one scheduler run.
func RecordJob(job string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	jobRunsTotal.WithLabelValues(job, result).Inc()
	jobDuration.WithLabelValues(job).Observe(seconds)
}

// Subscribe counts pipeline events published on bus.
func Subscribe(bus *events.Bus) {
	count := func(_ context.Context, ev events.Event) error {
		pipelineEventsTotal.WithLabelValues(ev.Topic()).Inc()
		if qa, ok := ev.(events.QuantityAllocated); ok {
			reportsReallocatedTotal.Add(float64(qa.ReportsChanged))
		}
		return nil
	}
	for _, topic := range []string{
		events.TopicReportApproved,
		events.TopicReportApprovalCancelled,
		events.TopicWorkOrderCompleted,
		events.TopicQuantityAllocated,
	} {
		bus.Subscribe(topic, count)
	}
}

func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	databaseConnectionsOpen.Set(float64(stats.OpenConnections))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}
