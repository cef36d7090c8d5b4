// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/history"
	"github.com/tomtom215/retailrec/internal/middleware"
	"github.com/tomtom215/retailrec/internal/recommend"
	"github.com/tomtom215/retailrec/internal/recommend/algorithms"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

// testState scores customer 12346 as A=6, C=4, B=2, "BANK CHARGES"=1.
func testState() *recommend.ModelState {
	return &recommend.ModelState{
		Rank:           1,
		UserIDs:        []int64{12346, 12347},
		ItemIDs:        []string{"A", "B", "BANK CHARGES", "C"},
		UserFactors:    []float64{2, 1},
		ItemFactors:    []float64{3, 1, 0.5, 2},
		SingularValues: []float64{1},
	}
}

type testEnv struct {
	handler http.Handler
	engine  *recommend.Engine
	store   *storage.Store
}

type envOptions struct {
	noModel bool
	runs    RunLister
	mw      *ChiMiddlewareConfig
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	engine, err := recommend.NewEngine(recommend.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if !opts.noModel {
		state := testState()
		meta, err := store.Save(context.Background(), "svd_model", 1, state, storage.ModelMetadata{RMSE: 0.5})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		model := algorithms.NewLatentFactorModel(algorithms.SVDConfig{Rank: 1})
		if err := model.LoadState(state); err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if err := engine.SetModel(model, meta.Name, meta.Version); err != nil {
			t.Fatalf("SetModel() error = %v", err)
		}
	}

	mwCfg := opts.mw
	if mwCfg == nil {
		mwCfg = DefaultChiMiddlewareConfig()
		mwCfg.RateLimitDisabled = true
	}
	handler := NewHandler(engine, store, opts.runs, "svd_model", zerolog.Nop())
	router := NewRouter(handler, NewChiMiddleware(mwCfg), zerolog.Nop(), time.Second)
	return &testEnv{handler: router.SetupChi(), engine: engine, store: store}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		noModel     bool
		wantStatus  int
		wantBody    string
		wantVersion int
	}{
		{name: "model loaded", wantStatus: http.StatusOK, wantBody: "ok", wantVersion: 1},
		{name: "no model", noModel: true, wantStatus: http.StatusServiceUnavailable, wantBody: "no_model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{noModel: tt.noModel})
			rec := env.get(t, "/health")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got HealthResponse
			decode(t, rec, &got)
			if got.Status != tt.wantBody || got.ModelVersion != tt.wantVersion {
				t.Errorf("Health() = %+v, want status %q version %d", got, tt.wantBody, tt.wantVersion)
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("response has no request id header")
			}
		})
	}
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantScore  float64
		wantCode   string
	}{
		{name: "known pair", query: "user_id=12346&item_id=A", wantStatus: http.StatusOK, wantScore: 6},
		{name: "unknown customer scores zero", query: "user_id=99999&item_id=A", wantStatus: http.StatusOK},
		{name: "unknown item scores zero", query: "user_id=12346&item_id=ZZZ", wantStatus: http.StatusOK},
		{name: "non-numeric user", query: "user_id=abc&item_id=A", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidUserID},
		{name: "missing user", query: "item_id=A", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidUserID},
		{name: "missing item", query: "user_id=12346", wantStatus: http.StatusBadRequest, wantCode: CodeValidation},
		{name: "item code with a space", query: "user_id=12346&item_id=BANK%20CHARGES", wantStatus: http.StatusOK, wantScore: 1},
		{name: "blank item", query: "user_id=12346&item_id=%20%20", wantStatus: http.StatusBadRequest, wantCode: CodeValidation},
		{name: "zero user scores zero", query: "user_id=0&item_id=A", wantStatus: http.StatusOK},
		{name: "negative user scores zero", query: "user_id=-7&item_id=A", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, "/api/v1/predict?"+tt.query)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				var got ErrorResponse
				decode(t, rec, &got)
				if got.Error.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", got.Error.Code, tt.wantCode)
				}
				return
			}
			var got PredictResponse
			decode(t, rec, &got)
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
		})
	}
}

func TestPredict_NoModel(t *testing.T) {
	env := newTestEnv(t, envOptions{noModel: true})
	rec := env.get(t, "/api/v1/predict?user_id=12346&item_id=A")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var got ErrorResponse
	decode(t, rec, &got)
	if got.Error.Code != CodeModelUnavailable {
		t.Errorf("error code = %q, want %q", got.Error.Code, CodeModelUnavailable)
	}
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantItems  []string
		wantCold   bool
	}{
		{name: "top two", path: "/api/v1/users/12346/recommendations?n=2", wantStatus: http.StatusOK, wantItems: []string{"A", "C"}},
		{name: "default n covers catalog", path: "/api/v1/users/12346/recommendations", wantStatus: http.StatusOK, wantItems: []string{"A", "C", "B", "BANK CHARGES"}},
		{name: "unseen customer", path: "/api/v1/users/99999/recommendations?n=5", wantStatus: http.StatusOK, wantItems: []string{}, wantCold: true},
		{name: "non-positive customer", path: "/api/v1/users/0/recommendations", wantStatus: http.StatusOK, wantItems: []string{}, wantCold: true},
		{name: "non-numeric customer", path: "/api/v1/users/abc/recommendations", wantStatus: http.StatusBadRequest},
		{name: "non-numeric n", path: "/api/v1/users/12346/recommendations?n=ten", wantStatus: http.StatusBadRequest},
		{name: "negative n", path: "/api/v1/users/12346/recommendations?n=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantItems == nil {
				return
			}

			var got RecommendationsResponse
			decode(t, rec, &got)
			if got.ColdStart != tt.wantCold {
				t.Errorf("cold_start = %v, want %v", got.ColdStart, tt.wantCold)
			}
			if len(got.Items) != len(tt.wantItems) {
				t.Fatalf("items = %+v, want %v", got.Items, tt.wantItems)
			}
			for i, want := range tt.wantItems {
				if got.Items[i].ItemID != want {
					t.Errorf("items[%d] = %q, want %q", i, got.Items[i].ItemID, want)
				}
			}
			if len(tt.wantItems) == 0 && !strings.Contains(rec.Body.String(), `"items":[]`) {
				t.Errorf("body %s does not encode an empty items list", rec.Body.String())
			}
		})
	}
}

func TestModel(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.get(t, "/api/v1/model")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got ModelResponse
		decode(t, rec, &got)
		if !got.Engine.Ready || got.Engine.ModelName != "svd_model" {
			t.Errorf("engine = %+v", got.Engine)
		}
		if got.Metadata == nil || got.Metadata.Version != 1 || got.Metadata.Rank != 1 || got.Metadata.RMSE != 0.5 {
			t.Errorf("metadata = %+v, want version 1 rank 1 rmse 0.5", got.Metadata)
		}
	})

	t.Run("pruned after load", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		if err := env.store.Delete(context.Background(), "svd_model", 1); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		rec := env.get(t, "/api/v1/model")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got ModelResponse
		decode(t, rec, &got)
		if got.Metadata != nil {
			t.Errorf("metadata = %+v, want nil", got.Metadata)
		}
	})

	t.Run("no model", func(t *testing.T) {
		env := newTestEnv(t, envOptions{noModel: true})
		if rec := env.get(t, "/api/v1/model"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestRuns(t *testing.T) {
	ledger, err := history.OpenInMemory(zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []string{history.StatusSuccess, history.StatusFailure, history.StatusSuccess} {
		if err := ledger.Append(context.Background(), &history.Record{
			RunID:     "run-" + string(rune('a'+i)),
			Command:   "train",
			Status:    status,
			StartedAt: start.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	env := newTestEnv(t, envOptions{runs: ledger})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
		wantFirst  string
	}{
		{name: "default limit", query: "", wantStatus: http.StatusOK, wantCount: 3, wantFirst: "run-c"},
		{name: "limited", query: "?limit=1", wantStatus: http.StatusOK, wantCount: 1, wantFirst: "run-c"},
		{name: "zero limit", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "non-numeric limit", query: "?limit=all", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, "/api/v1/runs"+tt.query)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got RunsResponse
			decode(t, rec, &got)
			if got.Count != tt.wantCount || len(got.Runs) != tt.wantCount {
				t.Fatalf("count = %d (%d runs), want %d", got.Count, len(got.Runs), tt.wantCount)
			}
			if got.Runs[0].RunID != tt.wantFirst {
				t.Errorf("runs[0] = %q, want %q", got.Runs[0].RunID, tt.wantFirst)
			}
		})
	}
}

func TestRuns_HistoryDisabled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.get(t, "/api/v1/runs")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var got ErrorResponse
	decode(t, rec, &got)
	if got.Error.Code != CodeHistoryDisabled {
		t.Errorf("error code = %q, want %q", got.Error.Code, CodeHistoryDisabled)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	env := newTestEnv(t, envOptions{mw: cfg})

	for i := 0; i < 2; i++ {
		if rec := env.get(t, "/api/v1/predict?user_id=12346&item_id=A"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := env.get(t, "/api/v1/predict?user_id=12346&item_id=A")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var got ErrorResponse
	decode(t, rec, &got)
	if got.Error.Code != CodeRateLimited {
		t.Errorf("error code = %q, want %q", got.Error.Code, CodeRateLimited)
	}

	// health is outside the limited group
	if rec := env.get(t, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.get(t, "/api/v1/predict?user_id=12346&item_id=A")

	rec := env.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "retailrec_api_requests_total") {
		t.Error("/metrics does not expose retailrec_api_requests_total")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\there", `tab\x09here`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
