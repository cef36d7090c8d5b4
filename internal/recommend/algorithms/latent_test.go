// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package algorithms

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/recommend"
	"gonum.org/v1/gonum/mat"
)

// newTestMatrix builds an interaction matrix from row-major values.
func newTestMatrix(t *testing.T, users []int64, items []string, values []float64) *interaction.Matrix {
	t.Helper()
	m, err := interaction.NewMatrix(users, items, mat.NewDense(len(users), len(items), values))
	if err != nil {
		t.Fatalf("NewMatrix() error = %v", err)
	}
	return m
}

func trainedModel(t *testing.T, m *interaction.Matrix, rank int) *LatentFactorModel {
	t.Helper()
	lf := NewLatentFactorModel(SVDConfig{Rank: rank, Options: DefaultSVDOptions()})
	if err := lf.Train(context.Background(), m); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return lf
}

func TestNewLatentFactorModel(t *testing.T) {
	tests := []struct {
		name       string
		cfg        SVDConfig
		wantRank   int
		wantSolver string
	}{
		{
			name:       "applies defaults for zero config",
			cfg:        SVDConfig{},
			wantRank:   50,
			wantSolver: SolverRandomized,
		},
		{
			name:       "uses provided config values",
			cfg:        SVDConfig{Rank: 7, Options: SVDOptions{Solver: SolverExact}},
			wantRank:   7,
			wantSolver: SolverExact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lf := NewLatentFactorModel(tt.cfg)
			if lf.Name() != "truncated_svd" {
				t.Errorf("Name() = %q, want %q", lf.Name(), "truncated_svd")
			}
			if lf.IsTrained() {
				t.Error("IsTrained() = true for a new model")
			}
			if lf.Rank() != tt.wantRank {
				t.Errorf("Rank() = %d, want %d", lf.Rank(), tt.wantRank)
			}
			if lf.Config().Options.Solver != tt.wantSolver {
				t.Errorf("Solver = %q, want %q", lf.Config().Options.Solver, tt.wantSolver)
			}
		})
	}
}

func TestLatentFactorModel_Untrained(t *testing.T) {
	lf := NewLatentFactorModel(DefaultSVDConfig())

	if _, err := lf.Predict(1, "A"); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("Predict() error = %v, want ErrNotTrained", err)
	}
	if _, err := lf.Recommend(1, 3); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("Recommend() error = %v, want ErrNotTrained", err)
	}
	if _, err := lf.State(); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("State() error = %v, want ErrNotTrained", err)
	}
	if _, err := lf.Reconstruct(); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("Reconstruct() error = %v, want ErrNotTrained", err)
	}
}

func TestLatentFactorModel_PredictWithinTolerance(t *testing.T) {
	// rank 2 matrix, so k=2 captures it fully
	m := newTestMatrix(t,
		[]int64{101, 102, 103},
		[]string{"A", "B", "C"},
		[]float64{
			1, 2, 3,
			2, 4, 6,
			1, 5, 1,
		})
	lf := trainedModel(t, m, 2)

	for i, user := range m.UserIDs() {
		for j, item := range m.ItemIDs() {
			got, err := lf.Predict(user, item)
			if err != nil {
				t.Fatalf("Predict(%d, %q) error = %v", user, item, err)
			}
			if want := m.At(i, j); math.Abs(got-want) > 0.5 {
				t.Errorf("Predict(%d, %q) = %v, want %v +/- 0.5", user, item, got, want)
			}
		}
	}

	rmse, err := lf.RMSE(m)
	if err != nil {
		t.Fatalf("RMSE() error = %v", err)
	}
	if rmse > 1e-6 {
		t.Errorf("RMSE() = %v, want ~0 at full rank", rmse)
	}
}

func TestLatentFactorModel_ColdStart(t *testing.T) {
	m := newTestMatrix(t,
		[]int64{1, 2, 3},
		[]string{"A", "B", "C"},
		[]float64{
			4, 0, 1,
			0, 3, 0,
			2, 1, 5,
		})
	lf := trainedModel(t, m, 2)

	for _, item := range []string{"A", "B", "C", "ZZZ"} {
		got, err := lf.Predict(9999, item)
		if err != nil {
			t.Fatalf("Predict(9999, %q) error = %v", item, err)
		}
		if got != 0 {
			t.Errorf("Predict(9999, %q) = %v, want 0", item, got)
		}
	}

	got, err := lf.Predict(1, "ZZZ")
	if err != nil || got != 0 {
		t.Errorf("Predict(1, \"ZZZ\") = %v, %v, want 0, nil", got, err)
	}

	recs, err := lf.GetRecommendations(9999, 3)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("GetRecommendations(9999, 3) = %v, want empty list", recs)
	}

	if lf.HasUser(9999) {
		t.Error("HasUser(9999) = true, want false")
	}
	if !lf.HasItem("B") {
		t.Error("HasItem(\"B\") = false, want true")
	}
}

func TestLatentFactorModel_Recommend(t *testing.T) {
	m := newTestMatrix(t,
		[]int64{1, 2, 3, 4},
		[]string{"A", "B", "C", "D", "E"},
		[]float64{
			5, 3, 0, 1, 0,
			4, 0, 0, 1, 2,
			1, 1, 0, 5, 0,
			0, 1, 5, 4, 1,
		})
	lf := trainedModel(t, m, 2)

	tests := []struct {
		name    string
		n       int
		wantLen int
	}{
		{"top three", 3, 3},
		{"more than item count returns all", 100, 5},
		{"exact item count", 5, 5},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := lf.Recommend(1, tt.n)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if len(recs) != tt.wantLen {
				t.Fatalf("len(Recommend()) = %d, want %d", len(recs), tt.wantLen)
			}

			seen := make(map[string]bool)
			for i, r := range recs {
				if !lf.HasItem(r.ItemID) {
					t.Errorf("recommended unknown item %q", r.ItemID)
				}
				if seen[r.ItemID] {
					t.Errorf("item %q recommended twice", r.ItemID)
				}
				seen[r.ItemID] = true

				if i > 0 && r.Score > recs[i-1].Score {
					t.Errorf("score[%d] = %v > score[%d] = %v", i, r.Score, i-1, recs[i-1].Score)
				}

				want, _ := lf.Predict(1, r.ItemID)
				if math.Abs(want-r.Score) > 1e-9 {
					t.Errorf("score for %q = %v, Predict() = %v", r.ItemID, r.Score, want)
				}
			}
		})
	}
}

func TestLatentFactorModel_RecommendTiesKeepColumnOrder(t *testing.T) {
	// rank 1 with hand-set factors so B, C and D score exactly 2
	lf := NewLatentFactorModel(DefaultSVDConfig())
	err := lf.LoadState(&recommend.ModelState{
		Rank:        1,
		UserIDs:     []int64{1},
		ItemIDs:     []string{"A", "B", "C", "D", "E"},
		UserFactors: []float64{1},
		ItemFactors: []float64{1, 2, 2, 2, 3},
	})
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		recs, err := lf.GetRecommendations(1, 5)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		want := []string{"E", "B", "C", "D", "A"}
		for j := range want {
			if recs[j] != want[j] {
				t.Fatalf("GetRecommendations() = %v, want %v", recs, want)
			}
		}
	}
}

func TestLatentFactorModel_RMSEDecreasesWithRank(t *testing.T) {
	m := newTestMatrix(t,
		[]int64{1, 2, 3, 4, 5},
		[]string{"A", "B", "C", "D", "E", "F"},
		[]float64{
			5, 3, 0, 1, 0, 2,
			4, 0, 0, 1, 2, 0,
			1, 1, 0, 5, 0, 3,
			0, 1, 5, 4, 1, 0,
			2, 0, 3, 0, 4, 1,
		})

	prev := math.Inf(1)
	for k := 1; k <= 4; k++ {
		lf := trainedModel(t, m, k)
		rmse, err := lf.RMSE(m)
		if err != nil {
			t.Fatalf("RMSE() at k=%d error = %v", k, err)
		}
		if rmse < 0 {
			t.Errorf("RMSE() at k=%d = %v, want >= 0", k, rmse)
		}
		if rmse > prev+1e-9 {
			t.Errorf("RMSE() at k=%d = %v, larger than %v at k=%d", k, rmse, prev, k-1)
		}
		prev = rmse
	}
}

func TestLatentFactorModel_RMSEShapeMismatch(t *testing.T) {
	m := newTestMatrix(t, []int64{1, 2, 3}, []string{"A", "B", "C"}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 10})
	other := newTestMatrix(t, []int64{1, 2}, []string{"A", "B"}, []float64{1, 2, 3, 4})
	lf := trainedModel(t, m, 2)

	if _, err := lf.RMSE(other); !errors.Is(err, interaction.ErrDimensionMismatch) {
		t.Errorf("RMSE() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestLatentFactorModel_TrainFailures(t *testing.T) {
	m := newTestMatrix(t, []int64{1, 2, 3}, []string{"A", "B", "C"}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 10})

	t.Run("rank too large leaves model untrained", func(t *testing.T) {
		lf := NewLatentFactorModel(SVDConfig{Rank: 3})
		err := lf.Train(context.Background(), m)
		if !errors.Is(err, ErrRankTooLarge) {
			t.Fatalf("Train() error = %v, want ErrRankTooLarge", err)
		}
		if lf.IsTrained() {
			t.Error("IsTrained() = true after failed Train()")
		}
	})

	t.Run("failed retrain keeps previous state", func(t *testing.T) {
		lf := trainedModel(t, m, 2)
		before, _ := lf.Predict(1, "A")

		small := newTestMatrix(t, []int64{1, 2}, []string{"A", "B"}, []float64{1, 0, 0, 1})
		if err := lf.Train(context.Background(), small); !errors.Is(err, ErrNumericalFailure) {
			t.Fatalf("Train() error = %v, want ErrNumericalFailure", err)
		}

		after, _ := lf.Predict(1, "A")
		if after != before || lf.Version() != 1 {
			t.Errorf("state changed after failed Train(): Predict %v -> %v, Version() = %d", before, after, lf.Version())
		}
	})

	t.Run("empty matrix", func(t *testing.T) {
		empty, err := interaction.NewMatrix(nil, nil, nil)
		if err != nil {
			t.Fatalf("NewMatrix() error = %v", err)
		}
		lf := NewLatentFactorModel(SVDConfig{Rank: 1})
		if err := lf.Train(context.Background(), empty); !errors.Is(err, ErrNumericalFailure) {
			t.Errorf("Train() error = %v, want ErrNumericalFailure", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		lf := NewLatentFactorModel(SVDConfig{Rank: 2})
		if err := lf.Train(ctx, m); !errors.Is(err, context.Canceled) {
			t.Errorf("Train() error = %v, want context.Canceled", err)
		}
	})
}

func TestLatentFactorModel_Retrain(t *testing.T) {
	m := newTestMatrix(t, []int64{1, 2, 3}, []string{"A", "B", "C"}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 10})
	lf := trainedModel(t, m, 1)
	first := lf.LastTrainedAt()

	other := newTestMatrix(t, []int64{7, 8, 9}, []string{"X", "Y", "Z"}, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3})
	if err := lf.Train(context.Background(), other); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if lf.Version() != 2 {
		t.Errorf("Version() = %d, want 2", lf.Version())
	}
	if lf.LastTrainedAt().Before(first) {
		t.Error("LastTrainedAt() went backwards")
	}
	if lf.HasUser(1) || !lf.HasUser(7) {
		t.Error("retrain did not replace the user set")
	}
}

func TestLatentFactorModel_StateRoundTrip(t *testing.T) {
	m := newTestMatrix(t,
		[]int64{10, 20, 30, 40},
		[]string{"85123A", "22423", "POST"},
		[]float64{
			6, 0, 1,
			0, 12, 0,
			3, 3, 3,
			1, 0, 24,
		})
	original := trainedModel(t, m, 2)

	state, err := original.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("State().Validate() error = %v", err)
	}

	restored := NewLatentFactorModel(SVDConfig{Rank: 99})
	if err := restored.LoadState(state); err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if restored.Rank() != 2 {
		t.Errorf("Rank() = %d, want 2", restored.Rank())
	}
	if !restored.IsTrained() {
		t.Error("IsTrained() = false after LoadState()")
	}

	for _, u := range m.UserIDs() {
		for _, i := range m.ItemIDs() {
			want, _ := original.Predict(u, i)
			got, _ := restored.Predict(u, i)
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("Predict(%d, %q) = %v after reload, want %v", u, i, got, want)
			}
		}
	}

	// mutating the exported state must not reach the loaded model
	state.UserFactors[0] += 100
	got, _ := restored.Predict(10, "85123A")
	want, _ := original.Predict(10, "85123A")
	if math.Abs(got-want) > 1e-12 {
		t.Error("LoadState() retained the caller's factor slice")
	}
}

func TestLatentFactorModel_LoadStateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		state *recommend.ModelState
	}{
		{"nil", nil},
		{"zero rank", &recommend.ModelState{Rank: 0, UserIDs: []int64{1}, ItemIDs: []string{"A"}}},
		{
			name: "short user factors",
			state: &recommend.ModelState{
				Rank: 1, UserIDs: []int64{1, 2}, ItemIDs: []string{"A"},
				UserFactors: []float64{1}, ItemFactors: []float64{1},
			},
		},
		{
			name: "duplicate user",
			state: &recommend.ModelState{
				Rank: 1, UserIDs: []int64{1, 1}, ItemIDs: []string{"A"},
				UserFactors: []float64{1, 2}, ItemFactors: []float64{1},
			},
		},
		{
			name: "duplicate item",
			state: &recommend.ModelState{
				Rank: 1, UserIDs: []int64{1}, ItemIDs: []string{"A", "A"},
				UserFactors: []float64{1}, ItemFactors: []float64{1, 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lf := NewLatentFactorModel(DefaultSVDConfig())
			if err := lf.LoadState(tt.state); !errors.Is(err, recommend.ErrInvalidState) {
				t.Errorf("LoadState() error = %v, want ErrInvalidState", err)
			}
			if lf.IsTrained() {
				t.Error("IsTrained() = true after rejected LoadState()")
			}
		})
	}
}

func TestLatentFactorModel_Lifecycle(t *testing.T) {
	lf := NewLatentFactorModel(SVDConfig{Rank: 1, Options: DefaultSVDOptions()})
	if got := lf.LifecycleState(); got != StateUntrained {
		t.Errorf("LifecycleState() = %v, want %v", got, StateUntrained)
	}

	m := newTestMatrix(t, []int64{1, 2, 3}, []string{"A", "B", "C"}, []float64{
		1, 0, 2,
		0, 3, 0,
		4, 0, 5,
	})
	if err := lf.Train(context.Background(), m); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if got := lf.LifecycleState(); got != StateTrained {
		t.Errorf("LifecycleState() = %v, want %v", got, StateTrained)
	}
	if got := lf.LifecycleState().String(); got != "trained" {
		t.Errorf("String() = %q, want %q", got, "trained")
	}
	if lf.Version() != 1 || lf.LastTrainedAt().IsZero() {
		t.Errorf("Version(), LastTrainedAt() = %d, %v after one Train()", lf.Version(), lf.LastTrainedAt())
	}
}
