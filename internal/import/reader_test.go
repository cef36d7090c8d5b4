// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package retailimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const header = "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n"

// writeCSV writes a raw fixture into dir and returns its path.
func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestSegments(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantNames []string
		wantErr   error
	}{
		{
			name:      "workbook expands sheets",
			cfg:       Config{Paths: []string{"raw.xlsx"}, Sheets: []string{"Year 2009-2010", "Year 2010-2011"}},
			wantNames: []string{"raw.xlsx[Year 2009-2010]", "raw.xlsx[Year 2010-2011]"},
		},
		{
			name:      "csv files keep order",
			cfg:       Config{Paths: []string{"b.csv", "a.CSV", "c.parquet"}},
			wantNames: []string{"b.csv", "a.CSV", "c.parquet"},
		},
		{
			name:    "unsupported extension",
			cfg:     Config{Paths: []string{"raw.xls"}},
			wantErr: ErrUnsupportedSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Segments(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Segments() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Segments() error = %v", err)
			}
			if len(segs) != len(tt.wantNames) {
				t.Fatalf("len(Segments()) = %d, want %d", len(segs), len(tt.wantNames))
			}
			for i, want := range tt.wantNames {
				if segs[i].Name() != want {
					t.Errorf("Segments()[%d].Name() = %q, want %q", i, segs[i].Name(), want)
				}
			}
		})
	}

	if _, err := Segments(Config{Paths: []string{"raw.xlsx"}}); err == nil {
		t.Error("Segments() for a workbook without sheets returned nil error")
	}
	if _, err := Segments(Config{}); err == nil {
		t.Error("Segments() with no paths returned nil error")
	}
}

func TestReader_ReadAll(t *testing.T) {
	dir := t.TempDir()
	early := writeCSV(t, dir, "2009.csv", header+
		"489434,85048,LED BOX,12,2009-12-01 07:45:00,6.95,13085.0,United Kingdom\n"+
		"489434,79323P,PINK CHERRY LIGHTS,12,2009-12-01 07:45:00,6.75,13085.0,United Kingdom\n"+
		"C489449,22087,PAPER BUNTING,-12,2009-12-01 10:33:00,2.95,16321.0,Australia\n")
	late := writeCSV(t, dir, "2010.csv", header+
		"536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850,United Kingdom\n"+
		"536414,22139,RETRO COFFEE MUGS,56,2010-12-01 11:52:00,0,,United Kingdom\n")

	ctx := context.Background()
	reader, err := NewReader(ctx, Config{Paths: []string{early, late}, MemoryLimit: "256MB", Threads: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	records, stats, err := reader.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if len(records) != 5 || stats.TotalRecords != 5 {
		t.Fatalf("ReadAll() = %d records (stats %d), want 5", len(records), stats.TotalRecords)
	}
	if stats.Segments[0].Rows != 3 || stats.Segments[1].Rows != 2 {
		t.Errorf("segment rows = %+v, want 3 and 2", stats.Segments)
	}
	if stats.NullCustomers != 1 {
		t.Errorf("NullCustomers = %d, want 1", stats.NullCustomers)
	}

	byItem := make(map[string]int)
	for i := range records {
		byItem[records[i].ItemCode] = i
	}

	led := records[byItem["85048"]]
	if led.InvoiceID != "489434" || led.Quantity != 12 || led.UnitPrice != 6.95 {
		t.Errorf("LED record = %+v", led)
	}
	if !led.HasCustomer() || *led.CustomerID != 13085 {
		t.Errorf("LED customer = %v, want 13085", led.CustomerID)
	}

	cancelled := records[byItem["22087"]]
	if !strings.HasPrefix(cancelled.InvoiceID, "C") || cancelled.Quantity != -12 {
		t.Errorf("cancelled record = %+v", cancelled)
	}

	mugs := records[byItem["22139"]]
	if mugs.HasCustomer() {
		t.Errorf("record without customer has CustomerID %d", *mugs.CustomerID)
	}
	if mugs.UnitPrice != 0 {
		t.Errorf("UnitPrice = %v, want 0", mugs.UnitPrice)
	}

	if _, ok := byItem["85123A"]; !ok {
		t.Error("alphanumeric stock code 85123A not read")
	}
}

func TestNewReader_SchemaError(t *testing.T) {
	dir := t.TempDir()
	good := writeCSV(t, dir, "good.csv", header+"489434,85048,LED BOX,12,2009-12-01 07:45:00,6.95,13085,United Kingdom\n")
	bad := writeCSV(t, dir, "bad.csv", "Invoice,StockCode,Quantity\n489434,85048,12\n")

	_, err := NewReader(context.Background(), Config{Paths: []string{good, bad}}, zerolog.Nop())
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("NewReader() error = %v, want ErrSchema", err)
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("NewReader() error = %T, want *SchemaError", err)
	}
	want := []string{ColumnCustomerID, ColumnPrice}
	if strings.Join(schemaErr.Missing, ",") != strings.Join(want, ",") {
		t.Errorf("Missing = %v, want %v", schemaErr.Missing, want)
	}
	if schemaErr.Segment != bad {
		t.Errorf("Segment = %q, want %q", schemaErr.Segment, bad)
	}
}

func TestNewReader_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.csv")
	_, err := NewReader(context.Background(), Config{Paths: []string{missing}}, zerolog.Nop())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewReader() error = %v, want os.ErrNotExist", err)
	}
}

func TestReader_Query(t *testing.T) {
	r := &Reader{segments: []Segment{
		{Path: "a.csv", Kind: KindCSV},
		{Path: "it's.xlsx", Sheet: "Year 2010-2011", Kind: KindXLSX},
		{Path: "c.parquet", Kind: KindParquet},
	}}

	q := r.Query()
	for _, want := range []string{
		"read_csv_auto('a.csv'",
		"read_xlsx('it''s.xlsx', sheet = 'Year 2010-2011'",
		"read_parquet('c.parquet')",
		`"Customer ID"`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("Query() missing %q:\n%s", want, q)
		}
	}
	if got := strings.Count(q, "UNION ALL"); got != 2 {
		t.Errorf("Query() has %d UNION ALL, want 2", got)
	}
}
