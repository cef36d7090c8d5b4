// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package algorithms implements the truncated singular value decomposition
// and the latent factor model built on it.
//
// TruncatedSVD factorizes a dense matrix A (m x n) into U (m x k), the k
// largest singular values and V^T (k x n). Two solvers are available:
//
//   - randomized: a Gaussian range finder with oversampling and power
//     iterations, followed by an exact SVD of the small projected matrix.
//     Seeded, so repeated runs give identical factors.
//   - exact: a thin SVD of the whole matrix, truncated to k.
//
// LatentFactorModel stores user factors U_k * Sigma_k and item factors V_k^T,
// so that user row i times item column j reconstructs A[i][j].
//
// # Thread Safety
//
// Training computes the factorization without holding any lock and swaps the
// new state in under an exclusive lock. Queries take a shared lock.
package algorithms
