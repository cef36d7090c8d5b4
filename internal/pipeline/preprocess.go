// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/config"
	"github.com/tomtom215/retailrec/internal/history"
	retailimport "github.com/tomtom215/retailrec/internal/import"
	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/metrics"
	"github.com/tomtom215/retailrec/internal/transactions"
)

// PreprocessReport summarizes a preprocess run.
type PreprocessReport struct {
	RunID      string                      `json:"run_id"`
	Segments   []retailimport.SegmentStats `json:"segments"`
	Read       int                         `json:"records_read"`
	Cleaning   transactions.CleanStats     `json:"cleaning"`
	Users      int                         `json:"users"`
	Items      int                         `json:"items"`
	NonZero    int                         `json:"nonzero"`
	Sparsity   float64                     `json:"sparsity"`
	MatrixPath string                      `json:"matrix_path"`
	DurationMS int64                       `json:"duration_ms"`
}

// Preprocessor builds the interaction matrix file from raw transactions.
type Preprocessor struct {
	cfg      *config.Config
	recorder RunRecorder
	logger   zerolog.Logger
}

// NewPreprocessor creates a preprocessor. recorder may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPreprocessor(cfg *config.Config, recorder RunRecorder, logger zerolog.Logger) *Preprocessor {
	return &Preprocessor{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "preprocess").Logger(),
	}
}

// Run reads, cleans and aggregates the raw source and writes the matrix.
func (p *Preprocessor) Run(ctx context.Context) (*PreprocessReport, error) {
	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx, p.logger)
	start := time.Now()

	report := &PreprocessReport{RunID: runID, MatrixPath: p.cfg.Data.MatrixPath}
	err := p.run(ctx, log, report)
	report.DurationMS = time.Since(start).Milliseconds()

	metrics.RecordRun(CommandPreprocess, err)
	p.record(ctx, log, report, start, err)

	if err != nil {
		log.Error().Err(err).Str("stage", StageOf(err)).Msg("preprocess failed")
		return nil, err
	}

	log.Info().
		Int("records_read", report.Read).
		Int("records_cleaned", report.Cleaning.Output).
		Int("users", report.Users).
		Int("items", report.Items).
		Int("nonzero", report.NonZero).
		Str("matrix_path", report.MatrixPath).
		Int64("duration_ms", report.DurationMS).
		Msg("preprocess complete")
	return report, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (p *Preprocessor) run(ctx context.Context, log zerolog.Logger, report *PreprocessReport) error {
	for _, path := range p.cfg.Data.RawPaths {
		if err := requireFile(StageLoadRaw, path); err != nil {
			return err
		}
	}

	var records []transactions.TransactionRecord
	err := runStage(ctx, StageLoadRaw, func() error {
		reader, err := retailimport.NewReader(ctx, retailimport.Config{
			Paths:       p.cfg.Data.RawPaths,
			Sheets:      p.cfg.Data.RawSheets,
			MemoryLimit: p.cfg.DuckDB.MemoryLimit,
			Threads:     p.cfg.DuckDB.Threads,
		}, log)
		if err != nil {
			return err
		}
		defer reader.Close() //nolint:errcheck // read-only connection

		var stats *retailimport.ReadStats
		records, stats, err = reader.ReadAll(ctx)
		if err != nil {
			return err
		}
		report.Segments = stats.Segments
		report.Read = len(records)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("records", report.Read).Int("segments", len(report.Segments)).Msg("raw transactions loaded")

	var cleaned []transactions.CleanedTransaction
	_ = runStage(ctx, StageClean, func() error { //nolint:errcheck // cleaning cannot fail
		cleaner := transactions.NewCleaner(transactions.RuleOptions{
			DropMissingCustomer: p.cfg.Cleaning.DropMissingCustomer,
			DropCancelled:       p.cfg.Cleaning.DropCancelled,
			DropNonPositive:     p.cfg.Cleaning.DropNonPositive,
		}.Rules()...)
		cleaned, report.Cleaning = cleaner.Clean(records)
		return nil
	})
	metrics.RecordCleaning(report.Cleaning.Input, report.Cleaning.Dropped)

	ev := log.Info().Int("input", report.Cleaning.Input).Int("output", report.Cleaning.Output)
	for rule, n := range report.Cleaning.Dropped {
		ev = ev.Int("dropped_"+rule, n)
	}
	ev.Msg("transactions cleaned")
	if len(cleaned) == 0 {
		log.Warn().Msg("no transactions survived cleaning; the matrix will be empty")
	}

	var m *interaction.Matrix
	err = runStage(ctx, StageBuildMatrix, func() error {
		var err error
		m, err = interaction.Build(cleaned)
		return err
	})
	if err != nil {
		return err
	}
	report.Users, report.Items, report.NonZero = m.Rows(), m.Cols(), m.NonZero()
	report.Sparsity = m.Sparsity()
	metrics.RecordMatrix(report.Users, report.Items, report.NonZero)
	log.Info().
		Int("users", report.Users).
		Int("items", report.Items).
		Float64("sparsity", report.Sparsity).
		Msg("interaction matrix built")

	return runStage(ctx, StageSaveMatrix, func() error {
		return interaction.Save(p.cfg.Data.MatrixPath, m)
	})
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (p *Preprocessor) record(ctx context.Context, log zerolog.Logger, report *PreprocessReport, start time.Time, runErr error) {
	if p.recorder == nil {
		return
	}

	rec := &history.Record{
		RunID:          report.RunID,
		Command:        CommandPreprocess,
		Status:         history.StatusSuccess,
		StartedAt:      start.UTC(),
		FinishedAt:     time.Now().UTC(),
		DurationMS:     report.DurationMS,
		RecordsRead:    report.Read,
		RecordsCleaned: report.Cleaning.Output,
		Users:          report.Users,
		Items:          report.Items,
		NonZero:        report.NonZero,
	}
	if runErr != nil {
		rec.Status = history.StatusFailure
		rec.Error = runErr.Error()
	}

	// a canceled run is still recorded
	if err := p.recorder.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Msg("failed to record run history")
	}
}
