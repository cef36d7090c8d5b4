// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package interaction

import (
	"fmt"
	"sort"

	"github.com/tomtom215/retailrec/internal/transactions"
	"gonum.org/v1/gonum/mat"
)

// Interaction is the summed quantity for one (customer, item) pair.
type Interaction struct {
	CustomerID    int64  `json:"customer_id"`
	ItemCode      string `json:"item_code"`
	TotalQuantity int64  `json:"total_quantity"`
}

type pairKey struct {
	customer int64
	item     string
}

// Aggregate groups cleaned transactions by (customer, item) and sums their
// quantities. The result is ordered by customer id, then item code.
func Aggregate(cleaned []transactions.CleanedTransaction) ([]Interaction, error) {
	totals := make(map[pairKey]int64, len(cleaned))
	for i := range cleaned {
		customer, ok := cleaned[i].Customer()
		if !ok {
			return nil, fmt.Errorf("%w: invoice %q item %q", ErrMissingCustomer, cleaned[i].InvoiceID, cleaned[i].ItemCode)
		}
		totals[pairKey{customer: customer, item: cleaned[i].ItemCode}] += cleaned[i].Quantity
	}

	out := make([]Interaction, 0, len(totals))
	for k, q := range totals {
		out = append(out, Interaction{CustomerID: k.customer, ItemCode: k.item, TotalQuantity: q})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CustomerID != out[b].CustomerID {
			return out[a].CustomerID < out[b].CustomerID
		}
		return out[a].ItemCode < out[b].ItemCode
	})
	return out, nil
}

// FromInteractions lays interactions out as a dense matrix. Rows are
// customers in ascending order, columns are item codes in ascending order,
// and pairs without an interaction are 0. Duplicate pairs are summed.
func FromInteractions(interactions []Interaction) (*Matrix, error) {
	userSet := make(map[int64]struct{})
	itemSet := make(map[string]struct{})
	for _, in := range interactions {
		userSet[in.CustomerID] = struct{}{}
		itemSet[in.ItemCode] = struct{}{}
	}

	userIDs := make([]int64, 0, len(userSet))
	for id := range userSet {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(a, b int) bool { return userIDs[a] < userIDs[b] })

	itemIDs := make([]string, 0, len(itemSet))
	for code := range itemSet {
		itemIDs = append(itemIDs, code)
	}
	sort.Strings(itemIDs)

	if len(userIDs) == 0 {
		return NewMatrix(nil, nil, nil)
	}

	userIndex := make(map[int64]int, len(userIDs))
	for i, id := range userIDs {
		userIndex[id] = i
	}
	itemIndex := make(map[string]int, len(itemIDs))
	for j, code := range itemIDs {
		itemIndex[code] = j
	}

	data := mat.NewDense(len(userIDs), len(itemIDs), nil)
	for _, in := range interactions {
		i, j := userIndex[in.CustomerID], itemIndex[in.ItemCode]
		data.Set(i, j, data.At(i, j)+float64(in.TotalQuantity))
	}

	return NewMatrix(userIDs, itemIDs, data)
}

// Build aggregates cleaned transactions into an interaction matrix.
// Identical input always yields an identical matrix.
func Build(cleaned []transactions.CleanedTransaction) (*Matrix, error) {
	interactions, err := Aggregate(cleaned)
	if err != nil {
		return nil, err
	}
	return FromInteractions(interactions)
}
