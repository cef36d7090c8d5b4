// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/history"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/recommend"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

const (
	defaultRunsLimit = 20
	queryTimeout     = 10 * time.Second
)

// RunLister lists training runs, newest first. *history.Ledger implements it.
type RunLister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelVersion int    `json:"model_version"`
}

// PredictResponse is the body of GET /api/v1/predict.
type PredictResponse struct {
	UserID int64   `json:"user_id"`
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// RecommendationsResponse is the body of GET /api/v1/users/{userID}/recommendations.
type RecommendationsResponse struct {
	UserID       int64                  `json:"user_id"`
	Items        []recommend.ScoredItem `json:"items"`
	ColdStart    bool                   `json:"cold_start"`
	ModelVersion int                    `json:"model_version"`
}

// ModelResponse is the body of GET /api/v1/model.
type ModelResponse struct {
	Engine   recommend.Status       `json:"engine"`
	Metadata *storage.ModelMetadata `json:"metadata,omitempty"`
}

// RunsResponse is the body of GET /api/v1/runs.
type RunsResponse struct {
	Runs  []history.Record `json:"runs"`
	Count int              `json:"count"`
}

// PredictRequest holds the validated predict query.
type PredictRequest struct {
	UserID int64
	ItemID string `validate:"itemcode,max=64"`
}

// RunsRequest holds the validated runs query.
type RunsRequest struct {
	Limit int `validate:"gte=1,lte=1000"`
}

// Handler serves the inference endpoints.
type Handler struct {
	engine    *recommend.Engine
	store     *storage.Store
	runs      RunLister
	modelName string
	logger    zerolog.Logger
}

// NewHandler creates a handler. runs may be nil when history is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(engine *recommend.Engine, store *storage.Store, runs RunLister, modelName string, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		store:     store,
		runs:      runs,
		modelName: modelName,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Health handles GET /health. It answers 503 until a model is installed.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	st := h.engine.Status()
	if !st.Ready {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "no_model"})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", ModelVersion: st.ModelVersion})
}

// Predict handles GET /api/v1/predict?user_id=&item_id=.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := parseUserID(q.Get("user_id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeInvalidUserID, Message: "user_id must be an integer"}, err)
		return
	}

	req := PredictRequest{UserID: userID, ItemID: q.Get("item_id")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, *apiErr, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	score, err := h.engine.Predict(ctx, req.UserID, req.ItemID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PredictResponse{UserID: req.UserID, ItemID: req.ItemID, Score: score})
}

// Recommendations handles GET /api/v1/users/{userID}/recommendations?n=.
// n defaults to the engine's default and is capped at its maximum.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeInvalidUserID, Message: "userID must be an integer"}, err)
		return
	}

	req := recommend.Request{UserID: userID}
	if s := r.URL.Query().Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: "n must be an integer"}, err)
			return
		}
		req.N = n
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, *apiErr, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	resp, err := h.engine.Recommend(ctx, req)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	items := resp.Items
	if items == nil {
		items = []recommend.ScoredItem{}
	}
	respondJSON(w, http.StatusOK, RecommendationsResponse{
		UserID:       resp.UserID,
		Items:        items,
		ColdStart:    resp.ColdStart,
		ModelVersion: resp.ModelVersion,
	})
}

// Model handles GET /api/v1/model.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	if !st.Ready {
		respondError(w, r, http.StatusServiceUnavailable, ErrorBody{Code: CodeModelUnavailable, Message: "no model loaded"}, nil)
		return
	}

	resp := ModelResponse{Engine: st}
	meta, err := h.store.Metadata(r.Context(), st.ModelName, st.ModelVersion)
	switch {
	case err == nil:
		resp.Metadata = meta
	case errors.Is(err, storage.ErrModelNotFound):
		// pruned after it was loaded
		log := logging.Ctx(r.Context(), h.logger)
		log.Debug().Int("version", st.ModelVersion).Msg("served model no longer on disk")
	default:
		respondError(w, r, http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "failed to read model metadata"}, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Runs handles GET /api/v1/runs?limit=.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, r, http.StatusNotFound, ErrorBody{Code: CodeHistoryDisabled, Message: "run history is disabled"}, nil)
		return
	}

	req := RunsRequest{Limit: defaultRunsLimit}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: "limit must be an integer"}, err)
			return
		}
		req.Limit = limit
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, *apiErr, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	runs, err := h.runs.List(ctx, req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "failed to list runs"}, err)
		return
	}
	if runs == nil {
		runs = []history.Record{}
	}
	respondJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

func (h *Handler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, recommend.ErrNoModel) {
		respondError(w, r, http.StatusServiceUnavailable, ErrorBody{Code: CodeModelUnavailable, Message: "no model loaded"}, err)
		return
	}
	respondError(w, r, http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "query failed"}, err)
}

func parseUserID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
