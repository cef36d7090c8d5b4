// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package recommend

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/cache"
	"github.com/tomtom215/retailrec/internal/metrics"
)

// Engine serves queries against the currently installed model. A new model
// can be swapped in at any time; in-flight queries finish on the model they
// started with. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger

	mu         sync.RWMutex
	model      Model
	modelName  string
	generation int
	loadedAt   time.Time

	// nil when caching is disabled
	cache *cache.LRU[cacheKey, Response]

	requestCount atomic.Int64
	coldStarts   atomic.Int64
	errorCount   atomic.Int64
	cacheHits    atomic.Int64
}

// cacheKey includes the model version so a response computed on a
// replaced model is never served.
type cacheKey struct {
	userID  int64
	n       int
	version int
}

// NewEngine creates a serving engine with no model installed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		config: cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
	if cfg.Cache.Enabled {
		e.cache = cache.NewLRU[cacheKey, Response](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}
	return e, nil
}

// SetModel installs a trained model under the given artifact name and
// version. The response cache is cleared.
func (e *Engine) SetModel(m Model, name string, version int) error {
	if m == nil || !m.IsTrained() {
		return ErrNotTrained
	}

	e.mu.Lock()
	e.model = m
	e.modelName = name
	e.generation = version
	e.loadedAt = time.Now()
	e.mu.Unlock()

	if e.cache != nil {
		e.cache.Clear()
	}

	e.logger.Info().
		Str("model", name).
		Int("version", version).
		Msg("model installed")
	return nil
}

func (e *Engine) current() (Model, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model, e.generation
}

// Predict returns the score for a (customer, item) pair. Unknown ids score 0.
func (e *Engine) Predict(ctx context.Context, userID int64, itemID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.requestCount.Add(1)

	m, _ := e.current()
	if m == nil {
		e.errorCount.Add(1)
		return 0, ErrNoModel
	}
	cold := !m.HasUser(userID) || !m.HasItem(itemID)
	if cold {
		e.coldStarts.Add(1)
	}

	score, err := m.Predict(userID, itemID)
	if err != nil {
		e.errorCount.Add(1)
		return 0, fmt.Errorf("predict: %w", err)
	}
	metrics.RecordPrediction(cold)
	return score, nil
}

// Recommend returns the top items for req.UserID. N of 0 means
// Limits.DefaultK and N is capped at Limits.MaxK.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.requestCount.Add(1)
	req = e.prepareRequest(req)

	m, version := e.current()
	if m == nil {
		e.errorCount.Add(1)
		return nil, ErrNoModel
	}

	key := cacheKey{userID: req.UserID, n: req.N, version: version}
	if resp, ok := e.checkCache(key); ok {
		e.cacheHits.Add(1)
		resp.CacheHit = true
		resp.LatencyMS = time.Since(start).Milliseconds()
		metrics.RecordRecommendation(resp.ColdStart, true)
		return &resp, nil
	}

	items, err := m.Recommend(req.UserID, req.N)
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("recommend: %w", err)
	}

	resp := Response{
		UserID:       req.UserID,
		Items:        items,
		ColdStart:    !m.HasUser(req.UserID),
		ModelVersion: version,
		LatencyMS:    time.Since(start).Milliseconds(),
	}
	if resp.ColdStart {
		e.coldStarts.Add(1)
	}
	metrics.RecordRecommendation(resp.ColdStart, false)
	e.storeCache(key, resp)

	e.logger.Debug().
		Int64("user_id", req.UserID).
		Int("n", req.N).
		Int("returned", len(items)).
		Bool("cold_start", resp.ColdStart).
		Msg("recommendation complete")

	return &resp, nil
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.N <= 0 {
		req.N = e.config.Limits.DefaultK
	}
	if req.N > e.config.Limits.MaxK {
		req.N = e.config.Limits.MaxK
	}
	return req
}

func (e *Engine) checkCache(key cacheKey) (Response, bool) {
	if e.cache == nil {
		return Response{}, false
	}
	resp, ok := e.cache.Get(key)
	if ok {
		resp.Items = slices.Clone(resp.Items)
	}
	return resp, ok
}

//nolint:gocritic // hugeParam: values copied into the cache on purpose
func (e *Engine) storeCache(key cacheKey, resp Response) {
	if e.cache == nil {
		return
	}
	resp.Items = slices.Clone(resp.Items)
	e.cache.Add(key, resp)
}

// Status reports the served model and request counters.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Status{
		Ready:        e.model != nil,
		ModelName:    e.modelName,
		ModelVersion: e.generation,
		LoadedAt:     e.loadedAt,
		Requests:     e.requestCount.Load(),
		ColdStarts:   e.coldStarts.Load(),
		Errors:       e.errorCount.Load(),
	}
}

// CacheHits returns how many Recommend calls were answered from cache.
func (e *Engine) CacheHits() int64 {
	return e.cacheHits.Load()
}
