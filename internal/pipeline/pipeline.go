// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package pipeline runs the batch stages end to end.
//
// Preprocessor turns the raw transaction source into the interaction matrix
// file:
//
//	load_raw -> clean -> build_matrix -> save_matrix
//
// Trainer turns the matrix file into a persisted model:
//
//	load_matrix -> train -> evaluate -> persist -> sanity_check
//
// Each stage either completes or aborts the run; nothing is retried and no
// partial matrix or model file is left behind. Required input files are
// checked before the first stage reads them and reported as a
// *MissingInputError. The context is checked between stages only: a
// factorization in progress runs to completion.
//
// The evaluate stage reports reconstruction RMSE over every cell of the
// training matrix, zeros included. It measures in-sample fit, not accuracy
// on unseen purchases.
//
// Both runs record stage timings in package metrics and append a
// history.Record when a recorder is configured, on success and on failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/retailrec/internal/history"
	"github.com/tomtom215/retailrec/internal/metrics"
)

// Stage names, used in errors, logs and metric labels.
const (
	StageLoadRaw     = "load_raw"
	StageClean       = "clean"
	StageBuildMatrix = "build_matrix"
	StageSaveMatrix  = "save_matrix"
	StageLoadMatrix  = "load_matrix"
	StageTrain       = "train"
	StageEvaluate    = "evaluate"
	StagePersist     = "persist"
	StageSanityCheck = "sanity_check"
)

// Command names recorded in metrics and history.
const (
	CommandPreprocess = "preprocess"
	CommandTrain      = "train"
)

// ErrMissingInput is returned when a required input file does not exist.
var ErrMissingInput = errors.New("pipeline: required input is missing")

// MissingInputError names the stage and the absent path.
type MissingInputError struct {
	Stage string
	Path  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("pipeline: %s: required input %s does not exist", e.Stage, e.Path)
}

// Unwrap makes errors.Is(err, ErrMissingInput) true.
func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}

// requireFile fails with a *MissingInputError when path is absent.
func requireFile(stage, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return &MissingInputError{Stage: stage, Path: path}
	}
	if err != nil {
		return fmt.Errorf("%s: stat %s: %w", stage, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %s is a directory", stage, path)
	}
	return nil
}

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage a pipeline error came from, or "".
func StageOf(err error) string {
	var missing *MissingInputError
	if errors.As(err, &missing) {
		return missing.Stage
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// RunRecorder stores run history. *history.Ledger implements it.
type RunRecorder interface {
	Append(ctx context.Context, rec *history.Record) error
}

// runStage checks ctx, times fn and wraps its error with the stage name.
func runStage(ctx context.Context, stage string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}

	start := time.Now()
	err := fn()
	metrics.RecordStage(stage, time.Since(start))
	if err != nil {
		var missing *MissingInputError
		if errors.As(err, &missing) {
			return err
		}
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
