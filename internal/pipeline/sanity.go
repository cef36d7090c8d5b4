// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/interaction"
	"github.com/tomtom215/retailrec/internal/recommend"
)

// SanityCheck compares one known cell against its prediction and lists the
// top recommendations for that customer. It is a diagnostic only.
type SanityCheck struct {
	CustomerID      int64                  `json:"customer_id"`
	ItemCode        string                 `json:"item_code"`
	Actual          float64                `json:"actual"`
	Predicted       float64                `json:"predicted"`
	Recommendations []recommend.ScoredItem `json:"recommendations"`
}

// RunSanityCheck uses the first customer and first item of m.
func RunSanityCheck(model recommend.Model, m *interaction.Matrix, n int) (*SanityCheck, error) {
	if m == nil || m.IsEmpty() {
		return nil, fmt.Errorf("sanity check: empty matrix")
	}

	check := &SanityCheck{
		CustomerID: m.UserID(0),
		ItemCode:   m.ItemID(0),
		Actual:     m.At(0, 0),
	}

	var err error
	if check.Predicted, err = model.Predict(check.CustomerID, check.ItemCode); err != nil {
		return nil, fmt.Errorf("sanity check predict: %w", err)
	}
	if check.Recommendations, err = model.Recommend(check.CustomerID, n); err != nil {
		return nil, fmt.Errorf("sanity check recommend: %w", err)
	}
	return check, nil
}

// Log writes the check at info level.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (c *SanityCheck) Log(log zerolog.Logger) {
	items := make([]string, len(c.Recommendations))
	for i, r := range c.Recommendations {
		items[i] = r.ItemID
	}
	log.Info().
		Int64("customer_id", c.CustomerID).
		Str("item_code", c.ItemCode).
		Float64("actual", c.Actual).
		Float64("predicted", c.Predicted).
		Strs("recommendations", items).
		Msg("sanity check")
}
