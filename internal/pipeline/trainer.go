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
	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/logging"
	"github.com/tomtom215/retailrec/internal/metrics"
	"github.com/tomtom215/retailrec/internal/recommend/algorithms"
	"github.com/tomtom215/retailrec/internal/recommend/storage"
)

// TrainReport summarizes a training run.
type TrainReport struct {
	RunID        string `json:"run_id"`
	ModelName    string `json:"model_name"`
	ModelVersion int    `json:"model_version"`
	Rank         int    `json:"rank"`
	Algorithm    string `json:"algorithm"`

	Users   int `json:"users"`
	Items   int `json:"items"`
	NonZero int `json:"nonzero"`

	// RMSE is the in-sample reconstruction error over every matrix cell.
	RMSE float64 `json:"rmse"`

	SingularValues []float64 `json:"singular_values"`

	TrainingDurationMS int64 `json:"training_duration_ms"`
	DurationMS         int64 `json:"duration_ms"`

	// Pruned lists model versions removed after the save.
	Pruned []int `json:"pruned,omitempty"`

	Sanity *SanityCheck `json:"sanity_check,omitempty"`
}

// Trainer fits and persists the latent factor model.
type Trainer struct {
	cfg      *config.Config
	store    *storage.Store
	recorder RunRecorder
	logger   zerolog.Logger
}

// NewTrainer creates a trainer that saves into store. recorder may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainer(cfg *config.Config, store *storage.Store, recorder RunRecorder, logger zerolog.Logger) *Trainer {
	return &Trainer{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		logger:   logger.With().Str("component", "train").Logger(),
	}
}

// SVDConfig maps the train section onto the model configuration.
func SVDConfig(tc config.TrainConfig) algorithms.SVDConfig {
	return algorithms.SVDConfig{
		Rank: tc.Rank,
		Options: algorithms.SVDOptions{
			Solver:          tc.Algorithm,
			Oversamples:     tc.Oversamples,
			PowerIterations: tc.PowerIterations,
			Seed:            tc.Seed,
		},
	}
}

// Run loads the matrix, trains, evaluates, persists and sanity checks.
// On failure no model version is written.
func (t *Trainer) Run(ctx context.Context) (*TrainReport, error) {
	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx, t.logger)
	start := time.Now()

	report := &TrainReport{
		RunID:     runID,
		ModelName: t.cfg.Data.ModelName,
		Rank:      t.cfg.Train.Rank,
		Algorithm: t.cfg.Train.Algorithm,
	}
	err := t.run(ctx, log, report)
	report.DurationMS = time.Since(start).Milliseconds()

	metrics.RecordRun(CommandTrain, err)
	t.record(ctx, log, report, start, err)

	if err != nil {
		log.Error().Err(err).Str("stage", StageOf(err)).Int("rank", report.Rank).Msg("training failed")
		return nil, err
	}

	log.Info().
		Str("model", report.ModelName).
		Int("version", report.ModelVersion).
		Int("rank", report.Rank).
		Float64("rmse", report.RMSE).
		Int64("duration_ms", report.DurationMS).
		Msg("training complete")
	return report, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (t *Trainer) run(ctx context.Context, log zerolog.Logger, report *TrainReport) error {
	matrixPath := t.cfg.Data.MatrixPath
	if err := requireFile(StageLoadMatrix, matrixPath); err != nil {
		return err
	}

	var m *interaction.Matrix
	err := runStage(ctx, StageLoadMatrix, func() error {
		var err error
		m, err = interaction.Load(matrixPath)
		return err
	})
	if err != nil {
		return err
	}
	report.Users, report.Items, report.NonZero = m.Rows(), m.Cols(), m.NonZero()
	metrics.RecordMatrix(report.Users, report.Items, report.NonZero)
	log.Info().
		Int("users", report.Users).
		Int("items", report.Items).
		Int("nonzero", report.NonZero).
		Msg("interaction matrix loaded")

	model := algorithms.NewLatentFactorModel(SVDConfig(t.cfg.Train))
	trainStart := time.Now()
	err = runStage(ctx, StageTrain, func() error {
		return model.Train(ctx, m)
	})
	if err != nil {
		return err
	}
	report.TrainingDurationMS = time.Since(trainStart).Milliseconds()
	report.SingularValues = model.SingularValues()
	log.Info().
		Int("rank", report.Rank).
		Str("algorithm", report.Algorithm).
		Int64("training_duration_ms", report.TrainingDurationMS).
		Msg("model trained")

	err = runStage(ctx, StageEvaluate, func() error {
		var err error
		report.RMSE, err = model.RMSE(m)
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Float64("rmse", report.RMSE).Msg("in-sample reconstruction RMSE")

	err = runStage(ctx, StagePersist, func() error {
		state, err := model.State()
		if err != nil {
			return err
		}
		meta, err := t.store.Save(ctx, report.ModelName, t.store.NextVersion(report.ModelName), state, storage.ModelMetadata{
			RunID:              report.RunID,
			TrainedAt:          model.LastTrainedAt().UTC(),
			RMSE:               report.RMSE,
			TrainingDurationMS: report.TrainingDurationMS,
		})
		if err != nil {
			return err
		}
		report.ModelVersion = meta.Version
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordModel(report.Rank, report.ModelVersion, report.RMSE)
	log.Info().Str("model", report.ModelName).Int("version", report.ModelVersion).Str("dir", t.store.Dir()).Msg("model persisted")

	if keep := t.cfg.Train.KeepVersions; keep > 0 {
		pruned, err := t.store.Prune(ctx, report.ModelName, keep)
		if err != nil {
			// the new version is already committed
			log.Warn().Err(err).Msg("failed to prune old model versions")
		}
		report.Pruned = pruned
	}

	// diagnostic only: a failed sanity check does not fail the run
	_ = runStage(ctx, StageSanityCheck, func() error { //nolint:errcheck // logged below
		check, err := RunSanityCheck(model, m, t.cfg.Train.SampleRecommendations)
		if err != nil {
			log.Warn().Err(err).Msg("sanity check failed")
			return err
		}
		report.Sanity = check
		check.Log(log)
		return nil
	})

	return nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (t *Trainer) record(ctx context.Context, log zerolog.Logger, report *TrainReport, start time.Time, runErr error) {
	if t.recorder == nil {
		return
	}

	rec := &history.Record{
		RunID:        report.RunID,
		Command:      CommandTrain,
		Status:       history.StatusSuccess,
		StartedAt:    start.UTC(),
		FinishedAt:   time.Now().UTC(),
		DurationMS:   report.DurationMS,
		Users:        report.Users,
		Items:        report.Items,
		NonZero:      report.NonZero,
		ModelName:    report.ModelName,
		ModelVersion: report.ModelVersion,
		Rank:         report.Rank,
		Algorithm:    report.Algorithm,
		RMSE:         report.RMSE,
	}
	if runErr != nil {
		rec.Status = history.StatusFailure
		rec.Error = runErr.Error()
	}

	if err := t.recorder.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Msg("failed to record run history")
	}
}
