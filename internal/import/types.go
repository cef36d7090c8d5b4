// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package retailimport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Required column names in every raw segment.
const (
	ColumnInvoice    = "Invoice"
	ColumnStockCode  = "StockCode"
	ColumnCustomerID = "Customer ID"
	ColumnQuantity   = "Quantity"
	ColumnPrice      = "Price"
)

// RequiredColumns lists the columns the cleaner depends on.
var RequiredColumns = []string{
	ColumnInvoice,
	ColumnStockCode,
	ColumnCustomerID,
	ColumnQuantity,
	ColumnPrice,
}

// Source kinds.
const (
	KindXLSX    = "xlsx"
	KindCSV     = "csv"
	KindParquet = "parquet"
)

var (
	// ErrSchema is returned when a segment lacks a required column.
	ErrSchema = errors.New("retailimport: schema mismatch")

	// ErrUnsupportedSource is returned for a file extension with no reader.
	ErrUnsupportedSource = errors.New("retailimport: unsupported source type")
)

// SchemaError names the segment and the columns it is missing.
type SchemaError struct {
	Segment string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("retailimport: segment %s is missing columns: %s", e.Segment, strings.Join(e.Missing, ", "))
}

// Unwrap makes errors.Is(err, ErrSchema) true.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// Segment is one logical part of the raw dataset.
type Segment struct {
	Path string `json:"path"`

	// Sheet is set for xlsx segments.
	Sheet string `json:"sheet,omitempty"`

	Kind string `json:"kind"`
}

// Name returns a human-readable segment label.
func (s Segment) Name() string {
	if s.Sheet != "" {
		return s.Path + "[" + s.Sheet + "]"
	}
	return s.Path
}

// SegmentStats counts the rows read from one segment.
type SegmentStats struct {
	Segment string `json:"segment"`
	Rows    int64  `json:"rows"`
}

// ReadStats holds statistics about a read.
type ReadStats struct {
	Segments []SegmentStats `json:"segments"`

	// TotalRecords is the number of rows across all segments.
	TotalRecords int64 `json:"total_records"`

	// NullCustomers counts rows without a customer id.
	NullCustomers int64 `json:"null_customers"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the duration of the read.
func (s *ReadStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// RecordsPerSecond returns the read rate.
func (s *ReadStats) RecordsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.TotalRecords) / duration
}
