// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/retailrec/internal/recommend/algorithms"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

// LoadModel restores a persisted model for inference without retraining.
// Version 0 loads the latest.
func LoadModel(ctx context.Context, store *storage.Store, name string, version int) (*algorithms.LatentFactorModel, *storage.ModelMetadata, error) {
	state, meta, err := store.Load(ctx, name, version)
	if err != nil {
		return nil, nil, err
	}

	model := algorithms.NewLatentFactorModel(algorithms.SVDConfig{Rank: state.Rank})
	if err := model.LoadState(state); err != nil {
		return nil, nil, fmt.Errorf("restore %s v%d: %w", name, meta.Version, err)
	}
	return model, meta, nil
}
