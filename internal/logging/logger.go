// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package logging provides the process-wide zerolog logger for RetailRec.
//
// The batch commands (preprocess, train, inspect) and the inference server
// all log through this package so that output format and level are driven
// by a single configuration block.
//
//	logging.Init(logging.Config{Level: "info", Format: "console"})
//	logging.Info().Int("users", n).Msg("Matrix built")
//
// Components take a zerolog.Logger in their constructors and derive a child
// logger with a "component" field:
//
//	logger := logging.WithComponent("trainer")
//
// Run and request ids travel in the context; see Ctx.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error or disabled.
	Level string

	// Format is json or console.
	Format string

	// Caller adds file:line to every event.
	Caller bool

	// Timestamp adds a "time" field in RFC 3339.
	Timestamp bool

	// Version, when set, is added to every event as "version".
	Version string

	// Output defaults to os.Stderr. Batch commands keep stdout for results.
	Output io.Writer
}

// DefaultConfig returns JSON at info level on stderr with timestamps.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging works before Init is called
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	Init(DefaultConfig())
}

// Init builds a logger from cfg and installs it as the global logger. It may
// be called again to reconfigure. An unknown level falls back to info.
func Init(cfg Config) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	l := ctx.Logger()
	global.Store(&l)
	return l
}

// ParseLevel converts a level name, case-insensitively. "warning" is
// accepted for warn and an empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	default:
		l, err := zerolog.ParseLevel(s)
		if err != nil || l == zerolog.NoLevel {
			return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
		}
		return l, nil
	}
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// WithComponent returns a child of the global logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// Debug starts a debug event on the global logger.
func Debug() *zerolog.Event {
	return global.Load().Debug()
}

// Info starts an info event on the global logger.
func Info() *zerolog.Event {
	return global.Load().Info()
}

// Warn starts a warn event on the global logger.
func Warn() *zerolog.Event {
	return global.Load().Warn()
}

// Error starts an error event on the global logger.
func Error() *zerolog.Event {
	return global.Load().Error()
}

// NewTestLogger creates a JSON logger that writes to w.
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
