// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tomtom215/retailrec/internal/validation"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks struct tags first, then the rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateData(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateData checks the pipeline file layout.
func (c *Config) validateData() error {
	if strings.ContainsAny(c.Data.ModelName, `/\`) {
		return fmt.Errorf("RETAILREC_MODEL_NAME must not contain path separators, got %q", c.Data.ModelName)
	}

	hasXLSX := false
	for _, p := range c.Data.RawPaths {
		ext := strings.ToLower(filepath.Ext(p))
		switch ext {
		case ".xlsx":
			hasXLSX = true
		case ".csv", ".parquet":
		default:
			return fmt.Errorf("RETAILREC_RAW_PATHS: unsupported file type %q (want .xlsx, .csv or .parquet)", p)
		}
	}
	if hasXLSX && len(c.Data.RawSheets) == 0 {
		return fmt.Errorf("RETAILREC_RAW_SHEETS is required when an .xlsx source is configured")
	}

	if filepath.Clean(c.Data.MatrixPath) == filepath.Clean(c.Data.ModelDir) {
		return fmt.Errorf("RETAILREC_MATRIX_PATH and RETAILREC_MODEL_DIR must differ")
	}
	return nil
}

// validateServer validates inference API settings.
func (c *Config) validateServer() error {
	if c.Server.Timeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative")
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	if c.Server.ReloadInterval < 0 {
		return fmt.Errorf("MODEL_RELOAD_INTERVAL must not be negative")
	}
	return nil
}

// validateLogging validates logging configuration.
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
