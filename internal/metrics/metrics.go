// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// Pipeline Metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_pipeline_runs_total",
			Help: "Total number of pipeline command runs",
		},
		[]string{"command", "status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retailrec_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}, // training can take minutes
		},
		[]string{"stage"},
	)

	PipelineLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retailrec_pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per command",
		},
		[]string{"command"},
	)

	RecordsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retailrec_records_read_total",
			Help: "Total number of raw transaction rows read",
		},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_records_dropped_total",
			Help: "Total number of raw transaction rows removed by cleaning",
		},
		[]string{"rule"},
	)

	// Matrix and Model Metrics
	MatrixUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_matrix_users",
			Help: "Rows (customers) in the interaction matrix",
		},
	)

	MatrixItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_matrix_items",
			Help: "Columns (items) in the interaction matrix",
		},
	)

	MatrixNonZero = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_matrix_nonzero",
			Help: "Non-zero cells in the interaction matrix",
		},
	)

	ModelRank = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_model_rank",
			Help: "Number of latent factors of the current model",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_model_version",
			Help: "Stored version of the current model",
		},
	)

	ModelRMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_model_rmse",
			Help: "In-sample reconstruction RMSE of the current model",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retailrec_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_predictions_total",
			Help: "Total number of point predictions",
		},
		[]string{"result"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailrec_recommendations_total",
			Help: "Total number of recommendation lists served",
		},
		[]string{"result", "cache"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retailrec_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retailrec_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStage records the duration of one pipeline stage.
func RecordStage(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRun records the outcome of a pipeline command.
func RecordRun(command string, err error) {
	if err != nil {
		PipelineRuns.WithLabelValues(command, StatusFailure).Inc()
		return
	}
	PipelineRuns.WithLabelValues(command, StatusSuccess).Inc()
	PipelineLastSuccess.WithLabelValues(command).Set(float64(time.Now().Unix()))
}

// RecordCleaning records rows read and rows dropped per cleaning rule.
func RecordCleaning(read int, dropped map[string]int) {
	RecordsRead.Add(float64(read))
	for rule, n := range dropped {
		RecordsDropped.WithLabelValues(rule).Add(float64(n))
	}
}

// RecordMatrix records the interaction matrix shape.
func RecordMatrix(users, items, nonZero int) {
	MatrixUsers.Set(float64(users))
	MatrixItems.Set(float64(items))
	MatrixNonZero.Set(float64(nonZero))
}

// RecordModel records the trained model's rank, stored version and RMSE.
func RecordModel(rank, version int, rmse float64) {
	ModelRank.Set(float64(rank))
	ModelVersion.Set(float64(version))
	ModelRMSE.Set(rmse)
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rejected request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordPrediction records one point prediction.
func RecordPrediction(coldStart bool) {
	Predictions.WithLabelValues(resultLabel(coldStart)).Inc()
}

// RecordRecommendation records one recommendation list.
func RecordRecommendation(coldStart, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	Recommendations.WithLabelValues(resultLabel(coldStart), cache).Inc()
}

func resultLabel(coldStart bool) string {
	if coldStart {
		return "cold_start"
	}
	return "known"
}

// SetAppInfo publishes build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// WriteToTextfile writes every registered metric to path in the Prometheus
// text format. The file is replaced atomically.
func WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
