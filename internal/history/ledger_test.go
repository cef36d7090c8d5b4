// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenInMemory(zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_AppendAndGet(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	rec := &Record{
		RunID:        "run-a",
		Command:      "train",
		Status:       StatusSuccess,
		StartedAt:    started,
		FinishedAt:   started.Add(3 * time.Second),
		DurationMS:   3000,
		ModelName:    "svd_model",
		ModelVersion: 2,
		Rank:         50,
		RMSE:         0.75,
	}
	if err := l.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.Get(ctx, "run-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ModelVersion != 2 || got.RMSE != 0.75 || !got.StartedAt.Equal(started) {
		t.Errorf("Get() = %+v, want version 2, rmse 0.75, started %v", got, started)
	}

	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestLedger_AppendValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Append(ctx, nil); err == nil {
		t.Error("Append(nil) error = nil, want error")
	}
	if err := l.Append(ctx, &Record{Command: "train"}); err == nil {
		t.Error("Append() without run id error = nil, want error")
	}

	rec := &Record{RunID: "run-zero", Command: "preprocess", Status: StatusSuccess}
	if err := l.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if rec.StartedAt.IsZero() {
		t.Error("Append() left StartedAt zero")
	}
}

func TestLedger_ListNewestFirst(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// append out of order
	for _, i := range []int{2, 0, 3, 1} {
		rec := &Record{
			RunID:     []string{"r0", "r1", "r2", "r3"}[i],
			Command:   "train",
			Status:    StatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"r3", "r2", "r1", "r0"}},
		{"limited", 2, []string{"r3", "r2"}},
		{"limit above count", 10, []string{"r3", "r2", "r1", "r0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(List()) = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].RunID != id {
					t.Errorf("List()[%d].RunID = %q, want %q", i, got[i].RunID, id)
				}
			}
		})
	}
}

func TestLedger_AppendReplacesRun(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	started := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := l.Append(ctx, &Record{RunID: "r", Command: "train", Status: StatusFailure, StartedAt: started}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append(ctx, &Record{RunID: "r", Command: "train", Status: StatusSuccess, StartedAt: started.Add(time.Second)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := l.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].Status != StatusSuccess {
		t.Errorf("List() = %+v, want one successful record", records)
	}
}

func TestLedger_Closed(t *testing.T) {
	l, err := OpenInMemory(zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := l.Append(ctx, &Record{RunID: "r"}); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("Append() error = %v, want ErrLedgerClosed", err)
	}
	if _, err := l.List(ctx, 0); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("List() error = %v, want ErrLedgerClosed", err)
	}
	if _, err := l.Get(ctx, "r"); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("Get() error = %v, want ErrLedgerClosed", err)
	}
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	ctx := context.Background()

	l, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := l.Append(ctx, &Record{RunID: "persisted", Command: "train", Status: StatusSuccess}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, "persisted"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}

	if _, err := Open("", zerolog.Nop()); err == nil {
		t.Error("Open(\"\") error = nil, want error")
	}
}
