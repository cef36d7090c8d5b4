// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"retailrec.yaml",
	"retailrec.yml",
	"config.yaml",
	"config.yml",
	"/etc/retailrec/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			RawPaths:   []string{"data/raw/online_retail_II.xlsx"},
			RawSheets:  []string{"Year 2009-2010", "Year 2010-2011"},
			MatrixPath: "data/processed/user_item_matrix.csv",
			ModelDir:   "data/models",
			ModelName:  "svd_model",
		},
		Cleaning: CleaningConfig{
			DropMissingCustomer: true,
			DropCancelled:       true,
			DropNonPositive:     true,
		},
		Train: TrainConfig{
			Rank:                  50,
			Algorithm:             "randomized",
			Oversamples:           10,
			PowerIterations:       5,
			Seed:                  42,
			SampleRecommendations: 3,
			KeepVersions:          5,
		},
		DuckDB: DuckDBConfig{
			MemoryLimit: "2GB",
			Threads:     0, // 0 = DuckDB default (all cores)
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/history",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8089,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			ReloadInterval:  time.Minute,
			SlowRequest:     time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration from the first config file found by
// findConfigFile. See LoadFrom.
func LoadWithKoanf() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration with layered sources:
//  1. Defaults
//  2. Config file: path, or the first of CONFIG_PATH / DefaultConfigPaths when path is empty
//  3. Environment variables (highest priority)
//
// An explicitly given path must exist.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// RETAILREC_RANK -> train.rank, LOG_LEVEL -> logging.level
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"data.raw_paths",
	"data.raw_sheets",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings, YAML lists arrive as slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Data layout
	"retailrec_raw_paths":   "data.raw_paths",
	"retailrec_raw_sheets":  "data.raw_sheets",
	"retailrec_matrix_path": "data.matrix_path",
	"retailrec_model_dir":   "data.model_dir",
	"retailrec_model_name":  "data.model_name",

	// Cleaning rules
	"retailrec_drop_missing_customer": "cleaning.drop_missing_customer",
	"retailrec_drop_cancelled":        "cleaning.drop_cancelled",
	"retailrec_drop_non_positive":     "cleaning.drop_non_positive",

	// Training
	"retailrec_rank":                   "train.rank",
	"retailrec_svd_algorithm":          "train.algorithm",
	"retailrec_svd_oversamples":        "train.oversamples",
	"retailrec_svd_power_iterations":   "train.power_iterations",
	"retailrec_seed":                   "train.seed",
	"retailrec_sample_recommendations": "train.sample_recommendations",
	"retailrec_keep_versions":          "train.keep_versions",

	// DuckDB
	"duckdb_memory_limit": "duckdb.memory_limit",
	"duckdb_threads":      "duckdb.threads",

	// Run history
	"retailrec_history_enabled": "history.enabled",
	"retailrec_history_path":    "history.path",

	// Metrics
	"retailrec_metrics_textfile": "metrics.textfile_path",

	// Inference API
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"rate_limit_disabled":   "server.rate_limit_disabled",
	"model_reload_interval": "server.reload_interval",
	"slow_request":          "server.slow_request",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so unrelated environment
// variables never leak into the configuration.
//
// Examples:
//   - RETAILREC_RANK -> train.rank
//   - DUCKDB_THREADS -> duckdb.threads
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
