// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package retailimport reads raw sales transactions through an embedded
// DuckDB instance.
//
// The raw dataset arrives as one or more segments (for the UCI Online Retail
// II workbook, one sheet per year). Supported sources, chosen by extension:
//
//   - .xlsx: one segment per configured sheet, read with read_xlsx from the
//     DuckDB excel extension
//   - .csv: one segment per file, read with read_csv_auto
//   - .parquet: one segment per file, read with read_parquet
//
// Segments are concatenated in configuration order with UNION ALL.
//
// # Schema
//
// Every segment must provide the columns Invoice, StockCode, Customer ID,
// Quantity and Price. Each segment is checked with DESCRIBE before any row is
// read; a missing column is a *SchemaError and the read is aborted. Values
// are read as text and converted in SQL, so a numeric invoice or a float
// customer id does not trip the type inference of a single segment.
//
// # Usage
//
//	reader, err := retailimport.NewReader(ctx, retailimport.Config{
//	    Paths:  []string{"data/raw/online_retail_II.xlsx"},
//	    Sheets: []string{"Year 2009-2010", "Year 2010-2011"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	records, stats, err := reader.ReadAll(ctx)
package retailimport
