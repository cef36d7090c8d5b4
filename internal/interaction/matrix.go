// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package interaction builds and stores the customer-by-item interaction matrix.
//
// A Matrix is dense: one row per distinct customer (ascending id), one column
// per distinct item code (ascending, byte-wise), and each cell holds the summed
// purchase quantity for that pair or 0. The id-to-offset maps are built once
// with the matrix and travel with it, so lookups by id never scan labels.
//
// Matrices are exchanged between the preprocess and train commands as CSV
// (see Save and Load). Inspect produces a read-only diagnostic report.
//
// Memory is O(customers * items). The full matrix must fit in memory; on the
// UCI Online Retail II data this is roughly 6k x 4.6k cells.
package interaction

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is returned when labels and data disagree in shape.
	ErrDimensionMismatch = errors.New("interaction: label count does not match data shape")

	// ErrDuplicateLabel is returned when a customer id or item code appears twice.
	ErrDuplicateLabel = errors.New("interaction: duplicate label")

	// ErrMissingCustomer is returned when a transaction without a customer id reaches the builder.
	ErrMissingCustomer = errors.New("interaction: transaction has no customer id")

	// ErrMalformedMatrix is returned when a matrix file cannot be parsed.
	ErrMalformedMatrix = errors.New("interaction: malformed matrix file")
)

// Matrix is a dense customer-by-item interaction table.
// It is not modified after construction.
type Matrix struct {
	userIDs   []int64
	itemIDs   []string
	userIndex map[int64]int
	itemIndex map[string]int

	// data is nil when the matrix has no rows or no columns.
	data *mat.Dense
}

// NewMatrix builds a Matrix from row labels, column labels and a data table
// of matching shape. data may be nil only when either label list is empty.
// The label slices are copied; data is retained.
func NewMatrix(userIDs []int64, itemIDs []string, data *mat.Dense) (*Matrix, error) {
	if len(userIDs) == 0 || len(itemIDs) == 0 {
		if data != nil && !data.IsEmpty() {
			return nil, fmt.Errorf("%w: %d users, %d items, non-empty data", ErrDimensionMismatch, len(userIDs), len(itemIDs))
		}
		data = nil
	} else {
		if data == nil {
			return nil, fmt.Errorf("%w: nil data for %dx%d labels", ErrDimensionMismatch, len(userIDs), len(itemIDs))
		}
		r, c := data.Dims()
		if r != len(userIDs) || c != len(itemIDs) {
			return nil, fmt.Errorf("%w: labels %dx%d, data %dx%d", ErrDimensionMismatch, len(userIDs), len(itemIDs), r, c)
		}
	}

	m := &Matrix{
		userIDs:   append([]int64(nil), userIDs...),
		itemIDs:   append([]string(nil), itemIDs...),
		userIndex: make(map[int64]int, len(userIDs)),
		itemIndex: make(map[string]int, len(itemIDs)),
		data:      data,
	}
	for i, id := range m.userIDs {
		if _, dup := m.userIndex[id]; dup {
			return nil, fmt.Errorf("%w: customer %d", ErrDuplicateLabel, id)
		}
		m.userIndex[id] = i
	}
	for j, code := range m.itemIDs {
		if _, dup := m.itemIndex[code]; dup {
			return nil, fmt.Errorf("%w: item %q", ErrDuplicateLabel, code)
		}
		m.itemIndex[code] = j
	}
	return m, nil
}

// Rows returns the number of customers.
func (m *Matrix) Rows() int { return len(m.userIDs) }

// Cols returns the number of items.
func (m *Matrix) Cols() int { return len(m.itemIDs) }

// IsEmpty reports whether the matrix has no cells.
func (m *Matrix) IsEmpty() bool { return m.data == nil }

// UserIDs returns the row labels in row order.
func (m *Matrix) UserIDs() []int64 { return append([]int64(nil), m.userIDs...) }

// ItemIDs returns the column labels in column order.
func (m *Matrix) ItemIDs() []string { return append([]string(nil), m.itemIDs...) }

// UserID returns the customer id of row i.
func (m *Matrix) UserID(i int) int64 { return m.userIDs[i] }

// ItemID returns the item code of column j.
func (m *Matrix) ItemID(j int) string { return m.itemIDs[j] }

// UserIndex returns the row offset of a customer.
func (m *Matrix) UserIndex(id int64) (int, bool) {
	i, ok := m.userIndex[id]
	return i, ok
}

// ItemIndex returns the column offset of an item.
func (m *Matrix) ItemIndex(code string) (int, bool) {
	j, ok := m.itemIndex[code]
	return j, ok
}

// At returns the cell at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.data.At(i, j)
}

// Value returns the interaction strength for a (customer, item) pair.
// ok is false when either label is unknown.
func (m *Matrix) Value(customerID int64, itemCode string) (v float64, ok bool) {
	i, ok := m.userIndex[customerID]
	if !ok {
		return 0, false
	}
	j, ok := m.itemIndex[itemCode]
	if !ok {
		return 0, false
	}
	return m.data.At(i, j), true
}

// Dense returns the underlying table, or nil for an empty matrix.
// Callers must not modify it.
func (m *Matrix) Dense() *mat.Dense {
	return m.data
}

// NonZero counts cells that are not exactly 0.
func (m *Matrix) NonZero() int {
	if m.data == nil {
		return 0
	}
	n := 0
	rows, cols := m.data.Dims()
	for i := 0; i < rows; i++ {
		for _, v := range m.data.RawRowView(i)[:cols] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// Sparsity returns 1 - nonzero/total, or 0 for an empty matrix.
func (m *Matrix) Sparsity() float64 {
	total := m.Rows() * m.Cols()
	if total == 0 {
		return 0
	}
	return 1 - float64(m.NonZero())/float64(total)
}
