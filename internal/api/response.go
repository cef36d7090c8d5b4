// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/validation"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidUserID    = "INVALID_USER_ID"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeHistoryDisabled  = "HISTORY_DISABLED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorBody is the error payload of every failed request.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// sanitizeLogValue escapes control characters so request data cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes an ErrorResponse. Server-side failures are logged.
func respondError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody, err error) {
	if err != nil {
		log := logging.Ctx(r.Context(), logging.Logger())
		var ev *zerolog.Event
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else {
			ev = log.Debug()
		}
		ev.Str("code", body.Code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, status, ErrorResponse{Error: body})
}

// validateRequest runs struct validation and converts failures to an ErrorBody.
func validateRequest(v interface{}) *ErrorBody {
	err := validation.ValidateStruct(v)
	if err == nil {
		return nil
	}

	body := &ErrorBody{Code: CodeValidation, Message: err.Error()}
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		body.Details = verrs.Details()
	}
	return body
}
