// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/retailrec/internal/api"
	"github.com/tomtom215/retailrec/internal/history"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/pipeline"
	"github.com/tomtom215/retailrec/internal/recommend"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
	"github.com/tomtom215/retailrec/internal/supervisor"
	"github.com/tomtom215/retailrec/internal/supervisor/services"
)

const shutdownTimeout = 10 * time.Second

// runServe serves the latest persisted model until ctx is canceled.
//
// The process tree is:
//
//	retailrec
//	├── model-layer
//	│   └── model-reload (when server.reload_interval > 0 and no -version)
//	└── api-layer
//	    └── http-server
func runServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("serve", e)
	version := fs.Int("version", 0, "model version to serve, 0 for the latest")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg := e.cfg

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), e.logger)
	if err != nil {
		return err
	}
	store, err := storage.NewStore(cfg.Data.ModelDir)
	if err != nil {
		return err
	}

	reloader := pipeline.NewModelReloader(store, engine, cfg.Data.ModelName, e.logger)
	if _, err := reloader.Load(ctx, *version); err != nil {
		if !errors.Is(err, storage.ErrModelNotFound) {
			return fmt.Errorf("load model: %w", err)
		}
		logging.Warn().
			Str("model_dir", cfg.Data.ModelDir).
			Str("model", cfg.Data.ModelName).
			Msg("No persisted model yet, serving 503 until one is trained")
	}

	var runs api.RunLister
	if cfg.History.Enabled {
		runs = history.NewDirLister(cfg.History.Path, e.logger)
	}

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (server.rate_limit_disabled=true)")
	}

	handler := api.NewHandler(engine, store, runs, cfg.Data.ModelName, e.logger)
	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg), e.logger, cfg.Server.SlowRequest)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(e.logger), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, shutdownTimeout, e.logger))
	switch {
	case *version != 0:
		logging.Info().Int("version", *version).Msg("Model version pinned, reloading disabled")
	case cfg.Server.ReloadInterval > 0:
		tree.AddModelService(services.NewModelReloadService(reloader, cfg.Server.ReloadInterval, e.logger))
	default:
		logging.Info().Msg("Model reloading disabled (server.reload_interval=0)")
	}
	logging.Info().
		Str("addr", server.Addr).
		Int("model_version", reloader.Version()).
		Dur("reload_interval", cfg.Server.ReloadInterval).
		Msg("Starting inference API")

	serveErr := tree.Serve(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if serveErr != nil {
		return fmt.Errorf("supervisor: %w", serveErr)
	}
	logging.Info().Msg("Inference API stopped")
	return nil
}
