// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/tomtom215/retailrec/internal/history"
	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/pipeline"
	"github.com/tomtom215/retailrec/internal/recommend"
	"github.com/tomtom215/retailrec/internal/recommend/algorithms"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

const (
	defaultRecommendN   = 10
	defaultHistoryLimit = 20
)

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errBadFlags
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openRecorder opens the run ledger for a batch command. An unavailable
// ledger is logged and the run continues without history.
func openRecorder(e *env) (pipeline.RunRecorder, func()) {
	if !e.cfg.History.Enabled {
		return nil, func() {}
	}
	ledger, err := history.Open(e.cfg.History.Path, e.logger)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", e.cfg.History.Path).Msg("Run history unavailable, continuing without it")
		return nil, func() {}
	}
	return ledger, func() {
		if err := ledger.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Error closing run history")
		}
	}
}

func runPreprocess(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("preprocess", e)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	recorder, closeRecorder := openRecorder(e)
	defer closeRecorder()

	report, err := pipeline.NewPreprocessor(e.cfg, recorder, e.logger).Run(ctx)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, report)
}

func runTrain(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("train", e)
	rank := fs.Int("rank", 0, "number of latent factors (overrides train.rank)")
	algorithm := fs.String("algorithm", "", "truncated SVD solver: randomized or exact (overrides train.algorithm)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *rank != 0 {
		e.cfg.Train.Rank = *rank
	}
	if *algorithm != "" {
		e.cfg.Train.Algorithm = *algorithm
	}
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	store, err := storage.NewStore(e.cfg.Data.ModelDir)
	if err != nil {
		return err
	}

	recorder, closeRecorder := openRecorder(e)
	defer closeRecorder()

	report, err := pipeline.NewTrainer(e.cfg, store, recorder, e.logger).Run(ctx)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, report)
}

// loadModel loads a persisted model version; 0 selects the latest.
func loadModel(ctx context.Context, e *env, version int) (*algorithms.LatentFactorModel, *storage.ModelMetadata, error) {
	if version < 0 {
		return nil, nil, fmt.Errorf("%w: -version must not be negative", errUsage)
	}
	store, err := storage.NewStore(e.cfg.Data.ModelDir)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.LoadModel(ctx, store, e.cfg.Data.ModelName, version)
}

type predictOutput struct {
	UserID       int64   `json:"user_id"`
	ItemID       string  `json:"item_id"`
	Score        float64 `json:"score"`
	ColdStart    bool    `json:"cold_start"`
	ModelVersion int     `json:"model_version"`
}

func runPredict(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("predict", e)
	user := fs.Int64("user", 0, "customer id")
	item := fs.String("item", "", "item (stock) code")
	version := fs.Int("version", 0, "model version, 0 for the latest")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *user <= 0 || *item == "" {
		return fmt.Errorf("%w: predict requires -user and -item", errUsage)
	}

	model, meta, err := loadModel(ctx, e, *version)
	if err != nil {
		return err
	}
	score, err := model.Predict(*user, *item)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, predictOutput{
		UserID:       *user,
		ItemID:       *item,
		Score:        score,
		ColdStart:    !model.HasUser(*user) || !model.HasItem(*item),
		ModelVersion: meta.Version,
	})
}

type recommendOutput struct {
	UserID       int64                  `json:"user_id"`
	Items        []recommend.ScoredItem `json:"items"`
	ColdStart    bool                   `json:"cold_start"`
	ModelVersion int                    `json:"model_version"`
}

func runRecommend(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("recommend", e)
	user := fs.Int64("user", 0, "customer id")
	n := fs.Int("n", defaultRecommendN, "number of items")
	version := fs.Int("version", 0, "model version, 0 for the latest")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *user <= 0 {
		return fmt.Errorf("%w: recommend requires -user", errUsage)
	}
	if *n < 1 {
		return fmt.Errorf("%w: -n must be at least 1", errUsage)
	}

	model, meta, err := loadModel(ctx, e, *version)
	if err != nil {
		return err
	}
	items, err := model.Recommend(*user, *n)
	if err != nil {
		return err
	}
	if items == nil {
		items = []recommend.ScoredItem{}
	}
	return writeJSON(e.stdout, recommendOutput{
		UserID:       *user,
		Items:        items,
		ColdStart:    !model.HasUser(*user),
		ModelVersion: meta.Version,
	})
}

func runInspect(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("inspect", e)
	path := fs.String("matrix", e.cfg.Data.MatrixPath, "interaction matrix file")
	samples := fs.Int("samples", interaction.DefaultSampleSize, "number of non-zero cells to show")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *samples < 0 {
		return fmt.Errorf("%w: -samples must not be negative", errUsage)
	}

	if _, err := os.Stat(*path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", pipeline.ErrMissingInput, *path)
	}
	m, err := interaction.Load(*path)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, interaction.Inspect(m, *samples))
}

func runModels(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("models", e)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	store, err := storage.NewStore(e.cfg.Data.ModelDir)
	if err != nil {
		return err
	}
	models, err := store.ListModels(ctx)
	if err != nil {
		return err
	}
	if models == nil {
		models = []storage.ModelMetadata{}
	}
	return writeJSON(e.stdout, models)
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("history", e)
	limit := fs.Int("limit", defaultHistoryLimit, "maximum number of runs, 0 for all")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !e.cfg.History.Enabled {
		return errors.New("run history is disabled (history.enabled=false)")
	}

	runs, err := history.NewDirLister(e.cfg.History.Path, e.logger).List(ctx, *limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []history.Record{}
	}
	return writeJSON(e.stdout, runs)
}

func runVersion(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("version", e)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	_, err := fmt.Fprintf(e.stdout, "retailrec %s (commit %s, %s %s/%s)\n",
		version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
