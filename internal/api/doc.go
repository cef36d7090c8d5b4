// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

/*
Package api serves the read-only inference HTTP API over a persisted model.

Endpoints:

	GET /health                                   liveness and served model version
	GET /api/v1/predict?user_id=&item_id=         point prediction
	GET /api/v1/users/{userID}/recommendations?n= top-N items
	GET /api/v1/model                             served model metadata
	GET /api/v1/runs?limit=                       training run history
	GET /metrics                                  Prometheus exposition

Success bodies are the bare JSON object for the endpoint. Errors use one
shape across endpoints:

	{"error": {"code": "INVALID_USER_ID", "message": "user_id must be an integer"}}

A customer or item the model has never seen is not an error: predict scores
it 0 and recommendations returns an empty list with status 200.

Middleware Stack:

Applied to every route, in order: request id, real ip, panic recovery and
CORS. The /api/v1 group adds rate limiting (go-chi/httprate), Prometheus
request metrics and request logging.
*/
package api
