// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package retailimport

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	// DuckDB driver
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
	"github.com/tomtom215/retailrec/internal/transactions"
)

// Config configures a Reader.
type Config struct {
	// Paths are the raw files, read in order.
	Paths []string

	// Sheets are the worksheet names read from every .xlsx path.
	Sheets []string

	// MemoryLimit caps DuckDB memory, e.g. "2GB". Empty keeps the DuckDB default.
	MemoryLimit string

	// Threads caps DuckDB worker threads. 0 keeps the DuckDB default.
	Threads int
}

// Reader reads TransactionRecords from the configured raw segments.
type Reader struct {
	db       *sql.DB
	segments []Segment
	logger   zerolog.Logger
}

// Segments expands cfg into the ordered segment list without opening anything.
func Segments(cfg Config) ([]Segment, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("retailimport: no raw paths configured")
	}

	var segments []Segment
	for _, path := range cfg.Paths {
		kind, err := sourceKind(path)
		if err != nil {
			return nil, err
		}

		if kind != KindXLSX {
			segments = append(segments, Segment{Path: path, Kind: kind})
			continue
		}
		if len(cfg.Sheets) == 0 {
			return nil, fmt.Errorf("retailimport: %s is a workbook but no sheets are configured", path)
		}
		for _, sheet := range cfg.Sheets {
			segments = append(segments, Segment{Path: path, Sheet: sheet, Kind: kind})
		}
	}
	return segments, nil
}

func sourceKind(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return KindXLSX, nil
	case ".csv":
		return KindCSV, nil
	case ".parquet":
		return KindParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}
}

// NewReader opens an in-memory DuckDB connection for the configured segments
// and verifies that every segment has the required columns.
// A missing file is reported with an error wrapping os.ErrNotExist.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReader(ctx context.Context, cfg Config, logger zerolog.Logger) (*Reader, error) {
	segments, err := Segments(cfg)
	if err != nil {
		return nil, err
	}

	for _, seg := range segments {
		if _, err := os.Stat(seg.Path); err != nil {
			return nil, fmt.Errorf("raw source %s: %w", seg.Path, err)
		}
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	r := &Reader{
		db:       db,
		segments: segments,
		logger:   logger.With().Str("component", "retailimport").Logger(),
	}

	if err := r.configure(ctx, cfg); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on error path
		return nil, err
	}

	if err := r.verifySchema(ctx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on error path
		return nil, err
	}

	return r, nil
}

func (r *Reader) configure(ctx context.Context, cfg Config) error {
	if cfg.MemoryLimit != "" {
		if _, err := r.db.ExecContext(ctx, "SET memory_limit = "+quoteLiteral(cfg.MemoryLimit)); err != nil {
			return fmt.Errorf("set memory_limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			return fmt.Errorf("set threads: %w", err)
		}
	}

	for _, seg := range r.segments {
		if seg.Kind == KindXLSX {
			if err := loadExcelExtension(ctx, r.db); err != nil {
				return fmt.Errorf("load excel extension: %w", err)
			}
			break
		}
	}
	return nil
}

// loadExcelExtension installs and loads the excel extension in DuckDB.
func loadExcelExtension(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Try to install, then load (extension may already be installed)
	if _, err := db.ExecContext(ctx, "INSTALL excel;"); err != nil {
		if _, loadErr := db.ExecContext(ctx, "LOAD excel;"); loadErr != nil {
			if _, forceErr := db.ExecContext(ctx, "FORCE INSTALL excel;"); forceErr != nil {
				return fmt.Errorf("install error: %w, load error: %w, force install error: %w", err, loadErr, forceErr)
			}
		}
		return nil
	}

	_, err := db.ExecContext(ctx, "LOAD excel;")
	return err
}

// scanExpr returns the DuckDB table function call that reads seg as text.
func scanExpr(seg Segment) string {
	switch seg.Kind {
	case KindXLSX:
		return fmt.Sprintf("read_xlsx(%s, sheet = %s, header = true, all_varchar = true)", quoteLiteral(seg.Path), quoteLiteral(seg.Sheet))
	case KindCSV:
		return fmt.Sprintf("read_csv_auto(%s, header = true, all_varchar = true)", quoteLiteral(seg.Path))
	default:
		return fmt.Sprintf("read_parquet(%s)", quoteLiteral(seg.Path))
	}
}

// verifySchema checks every segment for the required columns.
func (r *Reader) verifySchema(ctx context.Context) error {
	for _, seg := range r.segments {
		columns, err := r.describe(ctx, seg)
		if err != nil {
			return fmt.Errorf("describe %s: %w", seg.Name(), err)
		}

		var missing []string
		for _, want := range RequiredColumns {
			if _, ok := columns[want]; !ok {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return &SchemaError{Segment: seg.Name(), Missing: missing}
		}
	}
	return nil
}

func (r *Reader) describe(ctx context.Context, seg Segment) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+scanExpr(seg))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	columns := make(map[string]struct{})
	for rows.Next() {
		// DESCRIBE returns column_name first; the remaining fields are ignored
		values := make([]any, len(names))
		var name sql.NullString
		values[0] = &name
		for i := 1; i < len(values); i++ {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		if name.Valid {
			columns[strings.TrimSpace(name.String)] = struct{}{}
		}
	}
	return columns, rows.Err()
}

// Segments returns the segments the reader covers, in read order.
func (r *Reader) Segments() []Segment {
	return append([]Segment(nil), r.segments...)
}

// Query returns the UNION ALL query over every segment. Each row is
// (segment, invoice, stock code, customer id, quantity, price).
func (r *Reader) Query() string {
	parts := make([]string, len(r.segments))
	for i, seg := range r.segments {
		parts[i] = fmt.Sprintf(`SELECT
			%d AS segment,
			TRIM(CAST(%s AS VARCHAR)) AS invoice,
			TRIM(CAST(%s AS VARCHAR)) AS stock_code,
			TRY_CAST(CAST(%s AS VARCHAR) AS DOUBLE) AS customer_id,
			TRY_CAST(CAST(%s AS VARCHAR) AS DOUBLE) AS quantity,
			TRY_CAST(CAST(%s AS VARCHAR) AS DOUBLE) AS price
		FROM %s`,
			i,
			quoteIdent(ColumnInvoice),
			quoteIdent(ColumnStockCode),
			quoteIdent(ColumnCustomerID),
			quoteIdent(ColumnQuantity),
			quoteIdent(ColumnPrice),
			scanExpr(seg),
		)
	}
	return strings.Join(parts, "\nUNION ALL\n")
}

// ReadAll reads every row of every segment.
func (r *Reader) ReadAll(ctx context.Context) ([]transactions.TransactionRecord, *ReadStats, error) {
	stats := &ReadStats{
		Segments:  make([]SegmentStats, len(r.segments)),
		StartTime: time.Now(),
	}
	for i, seg := range r.segments {
		stats.Segments[i].Segment = seg.Name()
	}

	rows, err := r.db.QueryContext(ctx, r.Query())
	if err != nil {
		return nil, nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []transactions.TransactionRecord
	for rows.Next() {
		var (
			segment                   int
			invoice, stockCode        sql.NullString
			customer, quantity, price sql.NullFloat64
		)
		if err := rows.Scan(&segment, &invoice, &stockCode, &customer, &quantity, &price); err != nil {
			return nil, nil, fmt.Errorf("scan record: %w", err)
		}

		rec := transactions.TransactionRecord{
			InvoiceID: invoice.String,
			ItemCode:  stockCode.String,
			Quantity:  toInt64(quantity),
			UnitPrice: price.Float64,
		}
		if customer.Valid && !math.IsNaN(customer.Float64) {
			// float ids such as 12346.0 truncate toward zero
			rec.CustomerID = transactions.CustomerID(int64(customer.Float64))
		} else {
			stats.NullCustomers++
		}

		records = append(records, rec)
		if segment >= 0 && segment < len(stats.Segments) {
			stats.Segments[segment].Rows++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate records: %w", err)
	}

	stats.TotalRecords = int64(len(records))
	stats.EndTime = time.Now()

	r.logger.Debug().
		Int64("records", stats.TotalRecords).
		Int64("null_customers", stats.NullCustomers).
		Int("segments", len(r.segments)).
		Dur("duration", stats.Duration()).
		Msg("raw transactions read")

	return records, stats, nil
}

// toInt64 converts a nullable quantity. Null or non-finite values become 0,
// which the non-positive rule drops.
func toInt64(v sql.NullFloat64) int64 {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return 0
	}
	return int64(v.Float64)
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
