// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package recommend

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotTrained is returned by queries against a model that has not been trained or loaded.
	ErrNotTrained = errors.New("recommend: model is not trained")

	// ErrInvalidState is returned when a ModelState is internally inconsistent.
	ErrInvalidState = errors.New("recommend: invalid model state")

	// ErrNoModel is returned by the Engine before a model has been installed.
	ErrNoModel = errors.New("recommend: no model loaded")
)

// ScoredItem is an item with its reconstructed interaction score.
// Scores are unbounded reals, not probabilities, and may be negative.
type ScoredItem struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// Model answers point predictions and top-N queries for customers.
//
// An unseen customer or item is a cold start: Predict returns 0 and
// Recommend returns an empty list, without error. This is a placeholder
// policy, not a cold-start strategy.
type Model interface {
	// Name returns the model identifier.
	Name() string

	// HasUser and HasItem report whether an id was part of training.
	HasUser(userID int64) bool
	HasItem(itemID string) bool

	// Predict returns the reconstructed interaction strength for a pair.
	Predict(userID int64, itemID string) (float64, error)

	// Recommend returns up to n items ranked by descending score. Ties keep
	// item column order.
	Recommend(userID int64, n int) ([]ScoredItem, error)

	// IsTrained returns whether the model has been trained or loaded.
	IsTrained() bool

	// Version returns how many times the instance has been (re)trained.
	Version() int

	// LastTrainedAt returns when the model was last trained.
	LastTrainedAt() time.Time
}

// ModelState is the complete, serializable state of a latent factor model.
// Factor matrices are stored row-major: UserFactors is len(UserIDs) x Rank
// and ItemFactors is Rank x len(ItemIDs).
type ModelState struct {
	Rank           int
	UserIDs        []int64
	ItemIDs        []string
	UserFactors    []float64
	ItemFactors    []float64
	SingularValues []float64
}

// Validate checks that every array agrees with Rank and the id lists.
func (s *ModelState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if s.Rank < 1 {
		return fmt.Errorf("%w: rank %d", ErrInvalidState, s.Rank)
	}
	if len(s.UserIDs) == 0 || len(s.ItemIDs) == 0 {
		return fmt.Errorf("%w: %d users, %d items", ErrInvalidState, len(s.UserIDs), len(s.ItemIDs))
	}
	if want := len(s.UserIDs) * s.Rank; len(s.UserFactors) != want {
		return fmt.Errorf("%w: user factors have %d values, want %d", ErrInvalidState, len(s.UserFactors), want)
	}
	if want := len(s.ItemIDs) * s.Rank; len(s.ItemFactors) != want {
		return fmt.Errorf("%w: item factors have %d values, want %d", ErrInvalidState, len(s.ItemFactors), want)
	}
	if len(s.SingularValues) != 0 && len(s.SingularValues) != s.Rank {
		return fmt.Errorf("%w: %d singular values for rank %d", ErrInvalidState, len(s.SingularValues), s.Rank)
	}
	return nil
}

// Request is a recommendation query.
type Request struct {
	UserID int64 `json:"user_id"`
	N      int   `json:"n" validate:"gte=0"`
}

// Response is the Engine's answer to a Request.
type Response struct {
	UserID       int64        `json:"user_id"`
	Items        []ScoredItem `json:"items"`
	ColdStart    bool         `json:"cold_start"`
	CacheHit     bool         `json:"cache_hit"`
	ModelVersion int          `json:"model_version"`
	LatencyMS    int64        `json:"latency_ms"`
}

// Status describes the model currently served by an Engine.
type Status struct {
	Ready        bool      `json:"ready"`
	ModelName    string    `json:"model_name,omitempty"`
	ModelVersion int       `json:"model_version"`
	LoadedAt     time.Time `json:"loaded_at,omitempty"`
	Requests     int64     `json:"requests"`
	ColdStarts   int64     `json:"cold_starts"`
	Errors       int64     `json:"errors"`
}
