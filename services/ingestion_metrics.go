package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ingestionMetrics struct {
	rowsTotal    *prometheus.CounterVec
	jobsTotal    *prometheus.CounterVec
	upsertsTotal *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
}

var ingestionMetricsSingleton = sync.OnceValue(func() *ingestionMetrics {
	return &ingestionMetrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ngo_reports",
			Name:      "ingest_rows_total",
			Help:      "Rows handled by the CSV ingestion pipeline by result (success, invalid, error).",
		}, []string{"result"}),
		jobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ngo_reports",
			Name:      "ingest_jobs_total",
			Help:      "Bulk upload jobs that reached a terminal status.",
		}, []string{"status"}),
		upsertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ngo_reports",
			Name:      "report_upserts_total",
			Help:      "Report upserts by outcome (created, updated).",
		}, []string{"outcome"}),
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ngo_reports",
			Name:      "ingest_job_duration_seconds",
			Help:      "Wall time of bulk upload jobs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
	}
})

func getIngestionMetrics() *ingestionMetrics {
	return ingestionMetricsSingleton()
}

func (m *ingestionMetrics) observeRow(rowErr error) {
	result := "success"
	if rowErr != nil {
		result = string(RowErrorStore)
		if re, ok := rowErr.(*RowError); ok {
			result = string(re.Kind)
		}
	}
	m.rowsTotal.WithLabelValues(result).Inc()
}

func (m *ingestionMetrics) observeJob(status string, started time.Time) {
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

func (m *ingestionMetrics) observeUpsert(created bool) {
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.upsertsTotal.WithLabelValues(outcome).Inc()
}
