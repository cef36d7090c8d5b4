// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package storage persists trained latent factor models.
//
// A model is written once per training run as a versioned artifact:
//
//	{model_dir}/{name}_v{version}.gob.gz   model file
//	{model_dir}/{name}_v{version}.json     manifest (metadata only)
//
// The model file is a gob-encoded storedFile holding the metadata and a gzip
// stream. The gzip stream decompresses to a gob-encoded payload that holds
// only data: the format version, the rank, the customer and item id orders,
// both factor matrices (row-major) and the singular values. Decoding never
// runs code from the file.
//
// The SHA-256 checksum of the uncompressed payload is stored in the metadata
// and verified on every Load.
//
// # Format Versions
//
// FormatVersion is 1. Load rejects any other value with ErrUnsupportedFormat.
// A change to the payload layout must bump FormatVersion.
//
// # Usage
//
//	store, err := storage.NewStore("data/models")
//	if err != nil {
//	    return err
//	}
//
//	state, _ := model.State()
//	meta, err := store.Save(ctx, "svd_model", store.NextVersion("svd_model"), state, storage.ModelMetadata{
//	    TrainedAt: model.LastTrainedAt(),
//	    RMSE:      rmse,
//	})
//
//	// version 0 loads the latest
//	state, meta, err := store.Load(ctx, "svd_model", 0)
//
// # Thread Safety
//
// A Store serializes its own writes with a mutex. Files are written to a
// temporary name and renamed into place, so readers in other processes never
// observe a partial model.
package storage
