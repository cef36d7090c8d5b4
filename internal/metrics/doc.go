// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

/*
Package metrics provides Prometheus metrics for the batch pipeline and the
inference API.

# Batch Commands

preprocess and train are short-lived, so their metrics are not scraped.
When metrics.textfile_path is configured the command writes the default
registry with WriteToTextfile on exit, in the format read by the
node_exporter textfile collector.

Pipeline metrics:
  - retailrec_pipeline_runs_total: Runs by command and status (counter)
  - retailrec_pipeline_stage_duration_seconds: Stage latency (histogram)
    Labels: stage
  - retailrec_pipeline_last_success_timestamp_seconds: Last success (gauge)
    Labels: command
  - retailrec_records_read_total: Raw transaction rows read (counter)
  - retailrec_records_dropped_total: Rows removed by cleaning (counter)
    Labels: rule
  - retailrec_matrix_users, retailrec_matrix_items, retailrec_matrix_nonzero (gauges)
  - retailrec_model_rank, retailrec_model_version (gauges)
  - retailrec_model_rmse: In-sample reconstruction RMSE (gauge)

# Inference API

Metrics are exposed at /metrics by the serve command:

	curl http://localhost:8089/metrics

API metrics:
  - retailrec_api_requests_total: Requests (counter)
    Labels: method, endpoint, status_code
  - retailrec_api_request_duration_seconds: Latency (histogram)
    Labels: method, endpoint
  - retailrec_api_active_requests: In-flight requests (gauge)
  - retailrec_api_rate_limit_hits_total: Rate limit rejections (counter)
  - retailrec_predictions_total: Point predictions (counter)
    Labels: result (known, cold_start)
  - retailrec_recommendations_total: Recommendation lists served (counter)
    Labels: result (known, cold_start), cache (hit, miss)

System:
  - retailrec_app_info: Version and Go version (gauge, always 1)
  - retailrec_app_uptime_seconds (gauge)
*/
package metrics
