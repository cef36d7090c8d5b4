// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package algorithms

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Solver names.
const (
	SolverRandomized = "randomized"
	SolverExact      = "exact"
)

var (
	// ErrNumericalFailure is the root of every factorization failure.
	ErrNumericalFailure = errors.New("algorithms: numerical failure")

	// ErrRankTooLarge is returned when k is outside [1, min(rows, cols) - 1].
	ErrRankTooLarge = fmt.Errorf("%w: rank out of range", ErrNumericalFailure)

	// ErrFactorizationFailed is returned when the SVD routine does not converge.
	ErrFactorizationFailed = fmt.Errorf("%w: SVD did not converge", ErrNumericalFailure)

	// ErrUnknownSolver is returned for an unrecognized SVDOptions.Solver.
	ErrUnknownSolver = errors.New("algorithms: unknown SVD solver")
)

// SVDOptions selects and tunes the truncated SVD solver.
type SVDOptions struct {
	// Solver is SolverRandomized (default) or SolverExact.
	Solver string

	// Oversamples is the number of extra random directions sampled beyond k.
	Oversamples int

	// PowerIterations sharpens the range estimate for slowly decaying spectra.
	PowerIterations int

	// Seed initializes the Gaussian test matrix.
	Seed int64
}

// DefaultSVDOptions returns the randomized solver with 10 oversamples,
// 5 power iterations and seed 42.
func DefaultSVDOptions() SVDOptions {
	return SVDOptions{
		Solver:          SolverRandomized,
		Oversamples:     10,
		PowerIterations: 5,
		Seed:            42,
	}
}

// Factorization is a rank-k SVD: A ~= U * diag(S) * VT.
type Factorization struct {
	// U is m x k with orthonormal columns.
	U *mat.Dense

	// S holds the k largest singular values, descending.
	S []float64

	// VT is k x n with orthonormal rows.
	VT *mat.Dense
}

// Rank returns k.
func (f *Factorization) Rank() int {
	return len(f.S)
}

// MaxRank returns the largest k TruncatedSVD accepts for an m x n matrix.
func MaxRank(m, n int) int {
	return min(m, n) - 1
}

// TruncatedSVD computes the k leading singular triplets of a.
// k must satisfy 1 <= k <= min(m, n) - 1.
func TruncatedSVD(a mat.Matrix, k int, opts SVDOptions) (*Factorization, error) {
	m, n := a.Dims()
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d matrix", ErrNumericalFailure, m, n)
	}
	if k < 1 || k > MaxRank(m, n) {
		return nil, fmt.Errorf("%w: k=%d, matrix %dx%d allows 1..%d", ErrRankTooLarge, k, m, n, MaxRank(m, n))
	}

	var (
		f   *Factorization
		err error
	)
	switch opts.Solver {
	case SolverRandomized, "":
		f, err = randomizedSVD(a, k, opts)
	case SolverExact:
		f, err = exactSVD(a, k)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, opts.Solver)
	}
	if err != nil {
		return nil, err
	}

	for _, s := range f.S {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: non-finite singular value", ErrNumericalFailure)
		}
	}

	flipSigns(f)
	return f, nil
}

// exactSVD truncates a thin SVD of the full matrix.
func exactSVD(a mat.Matrix, k int) (*Factorization, error) {
	m, n := a.Dims()

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, ErrFactorizationFailed
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	return &Factorization{
		U:  mat.DenseCopyOf(u.Slice(0, m, 0, k)),
		S:  svd.Values(nil)[:k],
		VT: mat.DenseCopyOf(v.Slice(0, n, 0, k).T()),
	}, nil
}

// randomizedSVD follows Halko, Martinsson and Tropp (2011): find an
// orthonormal Q whose range approximates the range of a, then take the
// exact SVD of the small matrix Q^T a.
func randomizedSVD(a mat.Matrix, k int, opts SVDOptions) (*Factorization, error) {
	m, n := a.Dims()

	l := k + max(opts.Oversamples, 0)
	if l > min(m, n) {
		l = min(m, n)
	}

	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // reproducible test matrix, not security sensitive
	omega := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		row := omega.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}

	var y mat.Dense
	y.Mul(a, omega)
	q, err := orthonormalize(&y)
	if err != nil {
		return nil, err
	}

	for it := 0; it < opts.PowerIterations; it++ {
		var z mat.Dense
		z.Mul(a.T(), q)
		qz, err := orthonormalize(&z)
		if err != nil {
			return nil, err
		}

		var y2 mat.Dense
		y2.Mul(a, qz)
		if q, err = orthonormalize(&y2); err != nil {
			return nil, err
		}
	}

	// b = Q^T a is l x n.
	var b mat.Dense
	b.Mul(q.T(), a)

	var svd mat.SVD
	if !svd.Factorize(&b, mat.SVDThin) {
		return nil, ErrFactorizationFailed
	}

	var ub, v, u mat.Dense
	svd.UTo(&ub)
	svd.VTo(&v)
	u.Mul(q, &ub)

	return &Factorization{
		U:  mat.DenseCopyOf(u.Slice(0, m, 0, k)),
		S:  svd.Values(nil)[:k],
		VT: mat.DenseCopyOf(v.Slice(0, n, 0, k).T()),
	}, nil
}

// orthonormalize returns an orthonormal basis for the column space of y,
// taken from the left singular vectors of its thin SVD.
func orthonormalize(y *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(y, mat.SVDThinU) {
		return nil, ErrFactorizationFailed
	}
	var q mat.Dense
	svd.UTo(&q)
	return &q, nil
}

// flipSigns makes the largest-magnitude entry of every row of VT positive,
// negating the matching column of U. The product U*diag(S)*VT is unchanged.
func flipSigns(f *Factorization) {
	k, n := f.VT.Dims()
	m, _ := f.U.Dims()
	for c := 0; c < k; c++ {
		row := f.VT.RawRowView(c)
		best := 0
		for j := 1; j < n; j++ {
			if math.Abs(row[j]) > math.Abs(row[best]) {
				best = j
			}
		}
		if row[best] >= 0 {
			continue
		}
		for j := range row {
			row[j] = -row[j]
		}
		for i := 0; i < m; i++ {
			f.U.Set(i, c, -f.U.At(i, c))
		}
	}
}
