// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package algorithms

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/recommend"
	"gonum.org/v1/gonum/mat"
)

// SVDConfig contains configuration for the latent factor model.
type SVDConfig struct {
	// Rank is the number of latent factors k.
	Rank int

	// Options tunes the truncated SVD solver.
	Options SVDOptions
}

// DefaultSVDConfig returns rank 50 with the default solver options.
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		Rank:    50,
		Options: DefaultSVDOptions(),
	}
}

// LatentFactorModel approximates the interaction matrix as
// userFactors (users x k) times itemFactors (k x items).
//
// The model starts untrained. Train moves it to trained; training again
// replaces the whole state. Queries on an untrained model return
// recommend.ErrNotTrained.
type LatentFactorModel struct {
	lifecycle
	config SVDConfig

	userIDs   []int64
	itemIDs   []string
	userIndex map[int64]int
	itemIndex map[string]int

	// userFactors is U_k * Sigma_k (numUsers x k)
	userFactors *mat.Dense

	// itemFactors is V_k^T (k x numItems)
	itemFactors *mat.Dense

	singularValues []float64
}

var _ recommend.Model = (*LatentFactorModel)(nil)

// NewLatentFactorModel creates an untrained model.
func NewLatentFactorModel(cfg SVDConfig) *LatentFactorModel {
	defaults := DefaultSVDOptions()
	if cfg.Rank <= 0 {
		cfg.Rank = DefaultSVDConfig().Rank
	}
	if cfg.Options.Solver == "" {
		cfg.Options.Solver = defaults.Solver
	}

	return &LatentFactorModel{
		lifecycle: lifecycle{name: "truncated_svd"},
		config:    cfg,
	}
}

// Config returns the model configuration.
func (lf *LatentFactorModel) Config() SVDConfig {
	return lf.config
}

// Train factorizes m at the configured rank. Row and column labels of m
// become the model's id orderings. On error the previous state, trained or
// not, is left untouched.
func (lf *LatentFactorModel) Train(ctx context.Context, m *interaction.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil || m.IsEmpty() {
		return fmt.Errorf("%w: empty interaction matrix", ErrNumericalFailure)
	}

	f, err := TruncatedSVD(m.Dense(), lf.config.Rank, lf.config.Options)
	if err != nil {
		return fmt.Errorf("factorize %dx%d matrix at rank %d: %w", m.Rows(), m.Cols(), lf.config.Rank, err)
	}

	// user factors absorb the singular values
	var userFactors mat.Dense
	userFactors.Mul(f.U, mat.NewDiagDense(len(f.S), f.S))

	userIDs := m.UserIDs()
	itemIDs := m.ItemIDs()

	lf.mu.Lock()
	defer lf.mu.Unlock()

	lf.install(userIDs, itemIDs, &userFactors, f.VT, append([]float64(nil), f.S...))
	lf.markTrained(time.Now())
	return nil
}

// install replaces the model state. Must be called with the train lock held.
func (lf *LatentFactorModel) install(userIDs []int64, itemIDs []string, userFactors, itemFactors *mat.Dense, sv []float64) {
	lf.userIDs = userIDs
	lf.itemIDs = itemIDs
	lf.userIndex = make(map[int64]int, len(userIDs))
	for i, id := range userIDs {
		lf.userIndex[id] = i
	}
	lf.itemIndex = make(map[string]int, len(itemIDs))
	for j, id := range itemIDs {
		lf.itemIndex[id] = j
	}
	lf.userFactors = userFactors
	lf.itemFactors = itemFactors
	lf.singularValues = sv
	_, lf.config.Rank = userFactors.Dims()
}

// Rank returns k.
func (lf *LatentFactorModel) Rank() int {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	return lf.config.Rank
}

// HasUser reports whether the customer was part of training.
func (lf *LatentFactorModel) HasUser(userID int64) bool {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	_, ok := lf.userIndex[userID]
	return ok
}

// HasItem reports whether the item was part of training.
func (lf *LatentFactorModel) HasItem(itemID string) bool {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	_, ok := lf.itemIndex[itemID]
	return ok
}

// UserIDs returns the trained customer ids in row order.
func (lf *LatentFactorModel) UserIDs() []int64 {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	return append([]int64(nil), lf.userIDs...)
}

// ItemIDs returns the trained item codes in column order.
func (lf *LatentFactorModel) ItemIDs() []string {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	return append([]string(nil), lf.itemIDs...)
}

// SingularValues returns the retained singular values, descending.
func (lf *LatentFactorModel) SingularValues() []float64 {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	return append([]float64(nil), lf.singularValues...)
}

// Predict returns the dot product of the user's factor row and the item's
// factor column. Unknown users or items score 0.
func (lf *LatentFactorModel) Predict(userID int64, itemID string) (float64, error) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	if lf.state != StateTrained {
		return 0, recommend.ErrNotTrained
	}

	u, ok := lf.userIndex[userID]
	if !ok {
		return 0, nil
	}
	i, ok := lf.itemIndex[itemID]
	if !ok {
		return 0, nil
	}

	return mat.Dot(lf.userFactors.RowView(u), lf.itemFactors.ColView(i)), nil
}

// Recommend scores every item for the user and returns the top n, highest
// first. Equal scores keep item column order. n larger than the item count
// returns every item. An unknown user gets an empty list.
func (lf *LatentFactorModel) Recommend(userID int64, n int) ([]recommend.ScoredItem, error) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	if lf.state != StateTrained {
		return nil, recommend.ErrNotTrained
	}

	u, ok := lf.userIndex[userID]
	if !ok || n <= 0 {
		return []recommend.ScoredItem{}, nil
	}

	// scores = itemFactors^T * userRow, one entry per item
	var scores mat.VecDense
	scores.MulVec(lf.itemFactors.T(), lf.userFactors.RowView(u))

	order := make([]int, len(lf.itemIDs))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores.AtVec(order[a]) > scores.AtVec(order[b])
	})

	if n > len(order) {
		n = len(order)
	}
	out := make([]recommend.ScoredItem, n)
	for r := 0; r < n; r++ {
		j := order[r]
		out[r] = recommend.ScoredItem{ItemID: lf.itemIDs[j], Score: scores.AtVec(j)}
	}
	return out, nil
}

// GetRecommendations returns the item ids of Recommend.
func (lf *LatentFactorModel) GetRecommendations(userID int64, n int) ([]string, error) {
	scored, err := lf.Recommend(userID, n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}
	return ids, nil
}

// Reconstruct returns userFactors * itemFactors.
func (lf *LatentFactorModel) Reconstruct() (*mat.Dense, error) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	if lf.state != StateTrained {
		return nil, recommend.ErrNotTrained
	}

	var out mat.Dense
	out.Mul(lf.userFactors, lf.itemFactors)
	return &out, nil
}

// RMSE returns sqrt(mean((m - reconstruction)^2)) over every cell of m,
// zeros included. Passing the training matrix gives the in-sample
// reconstruction error; it says nothing about held-out accuracy.
// m must have the model's shape.
func (lf *LatentFactorModel) RMSE(m *interaction.Matrix) (float64, error) {
	recon, err := lf.Reconstruct()
	if err != nil {
		return 0, err
	}
	if m == nil || m.IsEmpty() {
		return 0, fmt.Errorf("%w: empty matrix", interaction.ErrDimensionMismatch)
	}

	r, c := recon.Dims()
	if m.Rows() != r || m.Cols() != c {
		return 0, fmt.Errorf("%w: model is %dx%d, matrix is %dx%d", interaction.ErrDimensionMismatch, r, c, m.Rows(), m.Cols())
	}

	var diff mat.Dense
	diff.Sub(m.Dense(), recon)
	// Frobenius norm
	return mat.Norm(&diff, 2) / math.Sqrt(float64(r*c)), nil
}

// State exports the model for persistence.
func (lf *LatentFactorModel) State() (*recommend.ModelState, error) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	if lf.state != StateTrained {
		return nil, recommend.ErrNotTrained
	}

	return &recommend.ModelState{
		Rank:           lf.config.Rank,
		UserIDs:        append([]int64(nil), lf.userIDs...),
		ItemIDs:        append([]string(nil), lf.itemIDs...),
		UserFactors:    denseData(lf.userFactors),
		ItemFactors:    denseData(lf.itemFactors),
		SingularValues: append([]float64(nil), lf.singularValues...),
	}, nil
}

// LoadState replaces the model with a persisted state and marks it trained.
func (lf *LatentFactorModel) LoadState(s *recommend.ModelState) error {
	if err := s.Validate(); err != nil {
		return err
	}

	userFactors := mat.NewDense(len(s.UserIDs), s.Rank, append([]float64(nil), s.UserFactors...))
	itemFactors := mat.NewDense(s.Rank, len(s.ItemIDs), append([]float64(nil), s.ItemFactors...))

	seenUsers := make(map[int64]struct{}, len(s.UserIDs))
	for _, id := range s.UserIDs {
		if _, dup := seenUsers[id]; dup {
			return fmt.Errorf("%w: duplicate user %d", recommend.ErrInvalidState, id)
		}
		seenUsers[id] = struct{}{}
	}
	seenItems := make(map[string]struct{}, len(s.ItemIDs))
	for _, id := range s.ItemIDs {
		if _, dup := seenItems[id]; dup {
			return fmt.Errorf("%w: duplicate item %q", recommend.ErrInvalidState, id)
		}
		seenItems[id] = struct{}{}
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()

	lf.install(
		append([]int64(nil), s.UserIDs...),
		append([]string(nil), s.ItemIDs...),
		userFactors,
		itemFactors,
		append([]float64(nil), s.SingularValues...),
	)
	lf.markTrained(time.Now())
	return nil
}

// denseData copies a Dense into a row-major slice.
func denseData(d *mat.Dense) []float64 {
	r, c := d.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, d.RawRowView(i)[:c]...)
	}
	return out
}
