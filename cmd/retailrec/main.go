// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package main is the entry point for the retailrec command.
//
// retailrec builds purchase recommendations from retail transaction history.
// The batch commands run the pipeline stages and exit; serve answers
// predictions and recommendations over HTTP from the latest persisted model.
//
// # Commands
//
//	retailrec [-config path] <command> [flags]
//
//	preprocess   read and clean raw transactions, write the interaction matrix
//	train        fit the latent factor model and persist a new version
//	predict      score one customer/item pair (-user, -item, -version)
//	recommend    top-N items for a customer (-user, -n, -version)
//	inspect      describe the interaction matrix file
//	models       list persisted model versions
//	history      list recorded pipeline runs (-limit)
//	serve        run the inference API
//	version      print build information
//
// Results are written to stdout as JSON. Logs go to stderr.
//
// # Configuration
//
// Configuration is loaded with Koanf v2 from built-in defaults, an optional
// YAML file (-config, CONFIG_PATH, retailrec.yaml or config.yaml) and
// environment variables, in increasing priority. See package config.
//
// # Exit Codes
//
//	0  success
//	1  the command failed
//	2  usage error
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/config"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/metrics"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	// errUsage marks errors caused by bad arguments.
	errUsage = errors.New("usage error")

	// errBadFlags is a usage error the flag package has already reported.
	errBadFlags = fmt.Errorf("%w: invalid flags", errUsage)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env is what every command receives.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	// batch commands export metrics to the textfile collector when configured
	batch bool
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"preprocess": {summary: "read and clean raw transactions, write the interaction matrix", batch: true, run: runPreprocess},
	"train":      {summary: "fit the latent factor model and persist a new version", batch: true, run: runTrain},
	"predict":    {summary: "score one customer/item pair", run: runPredict},
	"recommend":  {summary: "top-N items for a customer", run: runRecommend},
	"inspect":    {summary: "describe the interaction matrix file", run: runInspect},
	"models":     {summary: "list persisted model versions", run: runModels},
	"history":    {summary: "list recorded pipeline runs", run: runHistory},
	"serve":      {summary: "run the inference API", run: runServe},
	"version":    {summary: "print build information", run: runVersion},
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("retailrec", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to a YAML config file")
	global.Usage = func() { printUsage(stderr, global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return exitUsage
	}
	name := rest[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", name)
		printUsage(stderr, global)
		return exitUsage
	}

	if name == "version" {
		return exitCode(cmd.run(context.Background(), &env{stdout: stdout, stderr: stderr}, rest[1:]), stderr)
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	logger := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Version:   version,
		Output:    stderr,
	})
	metrics.SetAppInfo(version, runtime.Version())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}
	err = cmd.run(ctx, e, rest[1:])

	if cmd.batch && cfg.Metrics.TextfilePath != "" {
		if werr := metrics.WriteToTextfile(cfg.Metrics.TextfilePath); werr != nil {
			logging.Warn().Err(werr).Str("path", cfg.Metrics.TextfilePath).Msg("Failed to write metrics textfile")
		}
	}

	if err != nil && !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
		logging.Error().Err(err).Str("command", name).Msg("Command failed")
	}
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errBadFlags):
		return exitUsage
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: retailrec [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.PrintDefaults()
}
