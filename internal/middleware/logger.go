// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/logging"
)

// RequestLogger writes one log line per request. Requests slower than slow
// are logged at warn level; the rest at debug. A zero slow disables the
// warning.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func RequestLogger(logger zerolog.Logger, slow time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := newStatusRecorder(w)
			next(wrapper, r)
			duration := time.Since(start)

			log := logging.Ctx(r.Context(), logger)
			ev := log.Debug()
			msg := "request"
			if slow > 0 && duration > slow {
				ev = log.Warn().Int64("threshold_ms", slow.Milliseconds())
				msg = "slow request detected"
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapper.statusCode).
				Int64("duration_ms", duration.Milliseconds()).
				Msg(msg)
		}
	}
}
