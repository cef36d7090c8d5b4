// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ModelReloader installs the newest persisted model version if it is not
// already serving. It reports whether a new version was installed.
type ModelReloader interface {
	Reload(ctx context.Context) (bool, error)
}

// ModelReloadService polls a ModelReloader so that a model trained by a
// separate train run is picked up without restarting the server.
//
// Each tick:
//
//  1. Asks the reloader for the newest version on disk
//  2. Installs it when it differs from the serving version
//  3. Logs and keeps the current model when loading fails
//
// The service runs in the model layer of the tree, so a panic here never
// restarts the HTTP server. It is not added when serve pins a version.
//
// Example usage:
//
//	reloader := pipeline.NewModelReloader(store, engine, cfg.Data.ModelName, logger)
//	tree.AddModelService(services.NewModelReloadService(reloader, time.Minute, logger))
type ModelReloadService struct {
	reloader ModelReloader
	interval time.Duration
	logger   zerolog.Logger
}

// NewModelReloadService polls every interval. A non-positive interval means
// one minute.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelReloadService(reloader ModelReloader, interval time.Duration, logger zerolog.Logger) *ModelReloadService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ModelReloadService{
		reloader: reloader,
		interval: interval,
		logger:   logger.With().Str("service", "model-reload").Logger(),
	}
}

// Serve implements suture.Service. Reload errors are logged and retried on
// the next tick; the serving model is left in place.
func (s *ModelReloadService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug().Dur("interval", s.interval).Msg("model reload service running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reloaded, err := s.reloader.Reload(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("model reload failed")
				continue
			}
			if reloaded {
				s.logger.Info().Msg("new model version installed")
			}
		}
	}
}

func (s *ModelReloadService) String() string {
	return "model-reload"
}
