// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package algorithms

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const svdTolerance = 1e-8

func TestMaxRank(t *testing.T) {
	tests := []struct {
		m, n int
		want int
	}{
		{3, 3, 2},
		{10, 4, 3},
		{2, 100, 1},
		{1, 5, 0},
	}

	for _, tt := range tests {
		if got := MaxRank(tt.m, tt.n); got != tt.want {
			t.Errorf("MaxRank(%d, %d) = %d, want %d", tt.m, tt.n, got, tt.want)
		}
	}
}

func TestTruncatedSVD_RankBounds(t *testing.T) {
	a := mat.NewDense(3, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 1, 2, 3,
	})

	tests := []struct {
		name    string
		k       int
		wantErr error
	}{
		{"zero rank", 0, ErrRankTooLarge},
		{"negative rank", -1, ErrRankTooLarge},
		{"rank equal to min dimension", 3, ErrRankTooLarge},
		{"rank above min dimension", 10, ErrRankTooLarge},
		{"rank one", 1, nil},
		{"largest allowed rank", 2, nil},
	}

	for _, tt := range tests {
		for _, solver := range []string{SolverRandomized, SolverExact} {
			t.Run(tt.name+"/"+solver, func(t *testing.T) {
				opts := DefaultSVDOptions()
				opts.Solver = solver

				f, err := TruncatedSVD(a, tt.k, opts)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("TruncatedSVD() error = %v, want %v", err, tt.wantErr)
					}
					if !errors.Is(err, ErrNumericalFailure) {
						t.Errorf("TruncatedSVD() error = %v, want wrapped ErrNumericalFailure", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("TruncatedSVD() error = %v", err)
				}
				if f.Rank() != tt.k {
					t.Errorf("Rank() = %d, want %d", f.Rank(), tt.k)
				}
			})
		}
	}
}

func TestTruncatedSVD_UnknownSolver(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	_, err := TruncatedSVD(a, 1, SVDOptions{Solver: "lanczos"})
	if !errors.Is(err, ErrUnknownSolver) {
		t.Errorf("TruncatedSVD() error = %v, want ErrUnknownSolver", err)
	}
}

func TestTruncatedSVD_Shapes(t *testing.T) {
	a := mat.NewDense(5, 4, []float64{
		3, 0, 1, 0,
		0, 2, 0, 4,
		1, 1, 1, 1,
		0, 0, 5, 0,
		2, 0, 0, 1,
	})

	for _, solver := range []string{SolverRandomized, SolverExact} {
		t.Run(solver, func(t *testing.T) {
			opts := DefaultSVDOptions()
			opts.Solver = solver

			f, err := TruncatedSVD(a, 2, opts)
			if err != nil {
				t.Fatalf("TruncatedSVD() error = %v", err)
			}

			if r, c := f.U.Dims(); r != 5 || c != 2 {
				t.Errorf("U dims = %dx%d, want 5x2", r, c)
			}
			if r, c := f.VT.Dims(); r != 2 || c != 4 {
				t.Errorf("VT dims = %dx%d, want 2x4", r, c)
			}
			if f.S[0] < f.S[1] {
				t.Errorf("singular values %v not descending", f.S)
			}

			// U^T U = I and VT VT^T = I
			var utu, vvt mat.Dense
			utu.Mul(f.U.T(), f.U)
			vvt.Mul(f.VT, f.VT.T())
			eye := mat.NewDiagDense(2, []float64{1, 1})
			if !mat.EqualApprox(&utu, eye, 1e-6) {
				t.Errorf("U columns not orthonormal: %v", mat.Formatted(&utu))
			}
			if !mat.EqualApprox(&vvt, eye, 1e-6) {
				t.Errorf("VT rows not orthonormal: %v", mat.Formatted(&vvt))
			}
		})
	}
}

func TestTruncatedSVD_ExactReconstructionAtFullRank(t *testing.T) {
	// rank 2: second row is twice the first
	a := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		2, 4, 6,
		1, 0, 1,
	})

	for _, solver := range []string{SolverRandomized, SolverExact} {
		t.Run(solver, func(t *testing.T) {
			opts := DefaultSVDOptions()
			opts.Solver = solver

			f, err := TruncatedSVD(a, 2, opts)
			if err != nil {
				t.Fatalf("TruncatedSVD() error = %v", err)
			}

			var us, recon mat.Dense
			us.Mul(f.U, mat.NewDiagDense(2, f.S))
			recon.Mul(&us, f.VT)
			if !mat.EqualApprox(&recon, a, 1e-6) {
				t.Errorf("reconstruction =\n%v\nwant\n%v", mat.Formatted(&recon), mat.Formatted(a))
			}
		})
	}
}

func TestTruncatedSVD_SolversAgree(t *testing.T) {
	a := mat.NewDense(6, 5, []float64{
		5, 3, 0, 1, 0,
		4, 0, 0, 1, 2,
		1, 1, 0, 5, 0,
		1, 0, 0, 4, 1,
		0, 1, 5, 4, 0,
		2, 2, 2, 0, 3,
	})

	exact, err := TruncatedSVD(a, 3, SVDOptions{Solver: SolverExact})
	if err != nil {
		t.Fatalf("exact TruncatedSVD() error = %v", err)
	}
	randomized, err := TruncatedSVD(a, 3, DefaultSVDOptions())
	if err != nil {
		t.Fatalf("randomized TruncatedSVD() error = %v", err)
	}

	for i := range exact.S {
		if math.Abs(exact.S[i]-randomized.S[i]) > 1e-6 {
			t.Errorf("S[%d] = %v (randomized), want %v (exact)", i, randomized.S[i], exact.S[i])
		}
	}

	// sign normalization makes the factors themselves comparable
	if !mat.EqualApprox(exact.VT, randomized.VT, 1e-5) {
		t.Errorf("VT differs between solvers:\nexact\n%v\nrandomized\n%v",
			mat.Formatted(exact.VT), mat.Formatted(randomized.VT))
	}
}

func TestTruncatedSVD_Deterministic(t *testing.T) {
	a := mat.NewDense(4, 4, []float64{
		1, 0, 2, 0,
		0, 3, 0, 1,
		4, 0, 0, 2,
		0, 1, 1, 0,
	})
	opts := DefaultSVDOptions()

	first, err := TruncatedSVD(a, 2, opts)
	if err != nil {
		t.Fatalf("TruncatedSVD() error = %v", err)
	}
	second, err := TruncatedSVD(a, 2, opts)
	if err != nil {
		t.Fatalf("TruncatedSVD() error = %v", err)
	}

	if !mat.Equal(first.U, second.U) || !mat.Equal(first.VT, second.VT) {
		t.Error("TruncatedSVD() with the same seed returned different factors")
	}
}

func TestTruncatedSVD_SignConvention(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		-1, -2, 0,
		-2, -4, 1,
		0, 1, -3,
	})

	f, err := TruncatedSVD(a, 2, SVDOptions{Solver: SolverExact})
	if err != nil {
		t.Fatalf("TruncatedSVD() error = %v", err)
	}

	k, n := f.VT.Dims()
	for c := 0; c < k; c++ {
		best := 0.0
		for j := 0; j < n; j++ {
			if v := f.VT.At(c, j); math.Abs(v) > math.Abs(best)+svdTolerance {
				best = v
			}
		}
		if best < 0 {
			t.Errorf("VT row %d largest entry = %v, want positive", c, best)
		}
	}
}

func TestTruncatedSVD_EmptyMatrix(t *testing.T) {
	var empty mat.Dense
	_, err := TruncatedSVD(&empty, 1, DefaultSVDOptions())
	if !errors.Is(err, ErrNumericalFailure) {
		t.Errorf("TruncatedSVD() error = %v, want ErrNumericalFailure", err)
	}
}
