// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package services adapts the serve command's components to suture.Service.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HTTPServerService runs an *http.Server as a supervised service.
//
// It bridges http.Server's blocking Serve and suture's context-aware Serve:
//
//  1. Binds the listener itself, so a port conflict surfaces as an error
//     from Serve instead of from a background goroutine
//  2. Serves on that listener until the server fails or ctx is canceled
//  3. On cancellation, calls Shutdown bounded by the shutdown timeout
//
// Example usage:
//
//	server := &http.Server{Addr: ":8080", Handler: router.SetupChi()}
//	svc := services.NewHTTPServerService(server, 10*time.Second, logger)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	// bound listener address, set once listening
	addr atomic.Pointer[string]
}

// NewHTTPServerService wraps server.
//
// shutdownTimeout is how long in-flight requests get to finish once the
// tree stops. A non-positive value means 10s.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPServerService(server *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Addr returns the address the server is listening on, or "" before the
// listener is bound. With port 0 this is the port the kernel picked.
func (h *HTTPServerService) Addr() string {
	if p := h.addr.Load(); p != nil {
		return *p
	}
	return ""
}

// Serve implements suture.Service.
//
// A bind failure is returned immediately so the supervisor can back off and
// retry. http.ErrServerClosed is treated as a clean stop. After a graceful
// shutdown Serve returns ctx.Err(), which suture reads as "do not restart".
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", h.server.Addr, err)
	}
	bound := ln.Addr().String()
	h.addr.Store(&bound)
	h.logger.Info().Str("addr", bound).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- h.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		start := time.Now()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.logger.Info().Dur("took", time.Since(start)).Msg("HTTP server stopped")
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
