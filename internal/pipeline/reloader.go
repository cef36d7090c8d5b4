// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/metrics"
	"github.com/tomtom215/retailrec/internal/recommend"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

// ModelReloader installs the newest persisted version of a model into an
// Engine. It is safe for concurrent use.
type ModelReloader struct {
	store  *storage.Store
	engine *recommend.Engine
	name   string
	logger zerolog.Logger

	mu      sync.Mutex
	current int
}

// NewModelReloader creates a reloader for the model called name.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelReloader(store *storage.Store, engine *recommend.Engine, name string, logger zerolog.Logger) *ModelReloader {
	return &ModelReloader{
		store:  store,
		engine: engine,
		name:   name,
		logger: logger.With().Str("component", "reloader").Logger(),
	}
}

// Load installs a specific version; 0 means the latest.
func (r *ModelReloader) Load(ctx context.Context, version int) (*storage.ModelMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, version)
}

// Reload installs the latest version when it differs from the one serving.
func (r *ModelReloader) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// pick up versions written by other processes
	if err := r.store.Refresh(); err != nil {
		return false, err
	}
	latest, ok := r.store.GetLatestVersion(r.name)
	if !ok || latest == r.current {
		return false, nil
	}
	if _, err := r.load(ctx, latest); err != nil {
		return false, err
	}
	return true, nil
}

// Version returns the installed version, or 0 before the first load.
func (r *ModelReloader) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *ModelReloader) load(ctx context.Context, version int) (*storage.ModelMetadata, error) {
	model, meta, err := LoadModel(ctx, r.store, r.name, version)
	if err != nil {
		return nil, err
	}
	if err := r.engine.SetModel(model, meta.Name, meta.Version); err != nil {
		return nil, err
	}
	r.current = meta.Version
	metrics.RecordModel(meta.Rank, meta.Version, meta.RMSE)

	r.logger.Info().
		Str("model", meta.Name).
		Int("version", meta.Version).
		Int("rank", meta.Rank).
		Int("users", meta.UserCount).
		Int("items", meta.ItemCount).
		Msg("model loaded")
	return meta, nil
}
