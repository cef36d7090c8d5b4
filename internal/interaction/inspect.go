// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package interaction

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Sample is one non-zero cell of a matrix.
type Sample struct {
	CustomerID int64   `json:"customer_id"`
	ItemCode   string  `json:"item_code"`
	Value      float64 `json:"value"`
}

// Distribution summarizes per-row or per-column non-zero counts.
type Distribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report describes a matrix without modifying it.
type Report struct {
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	Users    int     `json:"unique_users"`
	Items    int     `json:"unique_items"`
	NonZero  int     `json:"non_zero"`
	Total    int     `json:"total_cells"`
	Sparsity float64 `json:"sparsity"`

	ItemsPerUser Distribution `json:"items_per_user"`
	UsersPerItem Distribution `json:"users_per_item"`

	// Samples are the first non-zero cells in row-major order.
	Samples []Sample `json:"samples"`
}

// DefaultSampleSize is the number of samples Inspect collects.
const DefaultSampleSize = 5

// Inspect reports shape, sparsity, interaction count distributions and up
// to sampleSize non-zero cells.
func Inspect(m *Matrix, sampleSize int) Report {
	rows, cols := m.Rows(), m.Cols()
	rep := Report{
		Rows:    rows,
		Cols:    cols,
		Users:   len(m.userIndex),
		Items:   len(m.itemIndex),
		Total:   rows * cols,
		Samples: []Sample{},
	}
	if m.IsEmpty() {
		return rep
	}

	perUser := make([]float64, rows)
	perItem := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := m.data.RawRowView(i)
		for j := 0; j < cols; j++ {
			v := row[j]
			if v == 0 {
				continue
			}
			rep.NonZero++
			perUser[i]++
			perItem[j]++
			if len(rep.Samples) < sampleSize {
				rep.Samples = append(rep.Samples, Sample{
					CustomerID: m.userIDs[i],
					ItemCode:   m.itemIDs[j],
					Value:      v,
				})
			}
		}
	}

	rep.Sparsity = 1 - float64(rep.NonZero)/float64(rep.Total)
	rep.ItemsPerUser = distribution(perUser)
	rep.UsersPerItem = distribution(perItem)
	return rep
}

func distribution(x []float64) Distribution {
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return Distribution{Mean: mean, StdDev: std, Min: lo, Max: hi}
}
