// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package config loads RetailRec configuration.
//
// Configuration is layered with Koanf v2:
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML file (CONFIG_PATH, retailrec.yaml, config.yaml)
//  3. Environment variables: explicit mappings such as RETAILREC_RANK -> train.rank
//
// The result is checked with struct tags (go-playground/validator) and a few
// cross-field rules in Validate.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Cleaning CleaningConfig `koanf:"cleaning"`
	Train    TrainConfig    `koanf:"train"`
	DuckDB   DuckDBConfig   `koanf:"duckdb"`
	History  HistoryConfig  `koanf:"history"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DataConfig locates the pipeline's files.
type DataConfig struct {
	// RawPaths are the raw transaction files. Each file is one segment; for
	// .xlsx files every sheet in RawSheets is a segment. Segments are
	// concatenated in order.
	RawPaths []string `koanf:"raw_paths" validate:"min=1,dive,required"`

	// RawSheets are the worksheet names read from .xlsx sources.
	RawSheets []string `koanf:"raw_sheets"`

	// MatrixPath is the interaction matrix CSV written by preprocess and read by train.
	MatrixPath string `koanf:"matrix_path" validate:"required"`

	// ModelDir holds persisted model versions.
	ModelDir string `koanf:"model_dir" validate:"required"`

	// ModelName is the file name prefix of persisted models.
	ModelName string `koanf:"model_name" validate:"required"`
}

// CleaningConfig toggles the transaction cleaning rules.
type CleaningConfig struct {
	DropMissingCustomer bool `koanf:"drop_missing_customer"`
	DropCancelled       bool `koanf:"drop_cancelled"`
	DropNonPositive     bool `koanf:"drop_non_positive"`
}

// TrainConfig controls the latent factor model fit.
type TrainConfig struct {
	// Rank is the number of latent factors k.
	Rank int `koanf:"rank" validate:"gte=1"`

	// Algorithm selects the truncated SVD solver: randomized or exact.
	Algorithm string `koanf:"algorithm" validate:"oneof=randomized exact"`

	// Oversamples and PowerIterations tune the randomized solver.
	Oversamples     int `koanf:"oversamples" validate:"gte=0"`
	PowerIterations int `koanf:"power_iterations" validate:"gte=0"`

	// Seed makes the randomized solver reproducible.
	Seed int64 `koanf:"seed"`

	// SampleRecommendations is the list length produced by the post-train sanity check.
	SampleRecommendations int `koanf:"sample_recommendations" validate:"gte=1"`

	// KeepVersions is how many model versions survive pruning. 0 disables pruning.
	KeepVersions int `koanf:"keep_versions" validate:"gte=0"`
}

// DuckDBConfig tunes the embedded DuckDB used to read raw transactions.
type DuckDBConfig struct {
	MemoryLimit string `koanf:"memory_limit"`
	Threads     int    `koanf:"threads" validate:"gte=0"`
}

// HistoryConfig controls the training run ledger.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
}

// MetricsConfig controls metric export for batch commands.
type MetricsConfig struct {
	// TextfilePath, when set, receives the Prometheus text exposition of the
	// run's metrics (node_exporter textfile collector format).
	TextfilePath string `koanf:"textfile_path"`
}

// ServerConfig configures the inference API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// ReloadInterval is how often serve checks for a newer model version. 0 disables reloading.
	ReloadInterval time.Duration `koanf:"reload_interval"`

	// SlowRequest is the latency above which a request is logged at warn level.
	SlowRequest time.Duration `koanf:"slow_request"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}
