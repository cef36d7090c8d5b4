// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

/*
Package middleware provides the HTTP middleware used by the inference API.

Key Components:

  - RequestID: propagates or generates an X-Request-ID and stores it in the
    logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation
  - RequestLogger: one structured log line per request, at warn level when a
    request exceeds the slow threshold

All three take and return http.HandlerFunc. The api package adapts them to
chi's func(http.Handler) http.Handler.

Usage Example:

	handler := middleware.RequestID(
	    middleware.PrometheusMetrics(
	        middleware.RequestLogger(logger, time.Second)(h),
	    ),
	)

Metric Labels:

PrometheusMetrics labels requests with the chi route pattern when one is
available (for example /api/v1/users/{userID}/recommendations) so that
customer ids in the path do not create a series per customer. Requests
outside a chi route fall back to the raw URL path.
*/
package middleware
