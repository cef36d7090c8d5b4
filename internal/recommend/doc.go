// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package recommend defines the model contract and the serving engine for
// purchase recommendations.
//
// # Model
//
// A Model is trained offline on a customer-by-item interaction matrix (see
// package algorithms for the truncated SVD implementation) and answers two
// queries:
//
//   - Predict(user, item): the reconstructed interaction strength, an
//     unbounded real that may be negative.
//   - Recommend(user, n): the n highest scoring items, ties broken by item
//     column order.
//
// # Cold Start
//
// Customers and items absent from training have no factors. Predict returns
// 0 and Recommend returns an empty list for them, and neither is an error.
// This is a placeholder, not a cold-start strategy: a new customer gets no
// recommendations until the next training run includes them.
//
// # Engine
//
// Engine holds the currently served model, applies request limits and caches
// responses per (customer, n) until the model is replaced:
//
//	engine, _ := recommend.NewEngine(recommend.DefaultConfig(), logger)
//	engine.SetModel(model, "svd_model", 3)
//	resp, err := engine.Recommend(ctx, recommend.Request{UserID: 12347, N: 5})
//
// # Persistence
//
// ModelState is the data-only export of a trained model. Package storage
// writes it as a versioned, checksummed artifact.
package recommend
