// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package interaction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// RowLabelHeader is the header cell above the customer id column.
const RowLabelHeader = "Customer ID"

// Save writes m to path as CSV: a header row of item codes, then one row per
// customer whose first cell is the customer id. The file is written to a
// temporary name and renamed into place, so a failed save never leaves a
// partial matrix behind.
func Save(path string, m *Matrix) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create matrix directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp matrix file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = Write(tmp, m); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync matrix file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close matrix file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename matrix file: %w", err)
	}
	return nil
}

// Write encodes m as CSV to w.
func Write(w io.Writer, m *Matrix) error {
	cw := csv.NewWriter(w)

	record := make([]string, m.Cols()+1)
	record[0] = RowLabelHeader
	copy(record[1:], m.itemIDs)
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	for i, id := range m.userIDs {
		record[0] = strconv.FormatInt(id, 10)
		row := m.data.RawRowView(i)
		for j := range m.itemIDs {
			record[j+1] = formatCell(row[j])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write matrix row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush matrix: %w", err)
	}
	return nil
}

// formatCell renders integers without a fraction and everything else with
// the shortest representation that parses back to the same float64.
func formatCell(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Load reads a matrix written by Save. Row and column order are taken from
// the file as-is. A missing file yields an error satisfying
// errors.Is(err, fs.ErrNotExist).
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read matrix %s: %w", path, err)
	}
	return m, nil
}

// Read decodes a CSV matrix from r.
func Read(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedMatrix)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedMatrix, err)
	}
	if len(header) < 1 {
		return nil, fmt.Errorf("%w: header has no columns", ErrMalformedMatrix)
	}
	itemIDs := append([]string(nil), header[1:]...)
	cols := len(itemIDs)

	var (
		userIDs []int64
		values  []float64
	)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedMatrix, line, err)
		}

		id, err := parseCustomerID(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: customer id %q: %v", ErrMalformedMatrix, line, record[0], err)
		}
		userIDs = append(userIDs, id)

		for j := 1; j <= cols; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %v", ErrMalformedMatrix, line, itemIDs[j-1], err)
			}
			values = append(values, v)
		}
	}

	if len(userIDs) == 0 || cols == 0 {
		if len(userIDs) > 0 {
			return nil, fmt.Errorf("%w: %d rows but no item columns", ErrMalformedMatrix, len(userIDs))
		}
		return NewMatrix(nil, itemIDs, nil)
	}

	m, err := NewMatrix(userIDs, itemIDs, mat.NewDense(len(userIDs), cols, values))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
	}
	return m, nil
}

// parseCustomerID accepts "12346" and the float rendering "12346.0".
func parseCustomerID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}
