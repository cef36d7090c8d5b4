// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package recommend

import (
	"fmt"
	"time"
)

// Config configures the serving Engine.
type Config struct {
	// Limits bounds recommendation list sizes.
	Limits LimitsConfig `json:"limits"`

	// Cache controls the per-(user, n) response cache.
	Cache CacheConfig `json:"cache"`
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	// DefaultK is used when a request asks for 0 items.
	DefaultK int `json:"default_k"`

	// MaxK caps any request.
	MaxK int `json:"max_k"`
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled    bool          `json:"enabled"`
	TTL        time.Duration `json:"ttl"`
	MaxEntries int           `json:"max_entries"`
}

// DefaultConfig returns the serving defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			DefaultK: 10,
			MaxK:     500,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Limits.DefaultK < 1 {
		return fmt.Errorf("limits.default_k must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k, got %d < %d", c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when caching is enabled, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache.max_entries must be positive when caching is enabled, got %d", c.Cache.MaxEntries)
		}
	}
	return nil
}
