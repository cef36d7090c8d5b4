// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package history keeps a ledger of pipeline runs in BadgerDB.
//
// Every preprocess and train run appends one Record, successful or not.
// Records are keyed by start time so List returns the newest runs first
// without sorting:
//
//	run:{started_at unix nanos, 20 digits}:{run id} -> Record (JSON)
//	id:{run id}                                   -> run key
//
// The ledger is an audit trail only. Nothing in the pipeline reads it back
// to make decisions.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	prefixRun = "run:"
	prefixID  = "id:"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// ErrLedgerClosed is returned by operations on a closed ledger.
	ErrLedgerClosed = errors.New("history: ledger is closed")

	// ErrRunNotFound is returned by Get for an unknown run id.
	ErrRunNotFound = errors.New("history: run not found")
)

// Record describes one pipeline run.
type Record struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	// Error is the failure message when Status is failure.
	Error string `json:"error,omitempty"`

	// Preprocess results
	RecordsRead    int `json:"records_read,omitempty"`
	RecordsCleaned int `json:"records_cleaned,omitempty"`

	// Matrix shape
	Users   int `json:"users,omitempty"`
	Items   int `json:"items,omitempty"`
	NonZero int `json:"nonzero,omitempty"`

	// Train results
	ModelName    string  `json:"model_name,omitempty"`
	ModelVersion int     `json:"model_version,omitempty"`
	Rank         int     `json:"rank,omitempty"`
	Algorithm    string  `json:"algorithm,omitempty"`
	RMSE         float64 `json:"rmse,omitempty"`
}

// Ledger is a BadgerDB-backed run history. It is safe for concurrent use.
type Ledger struct {
	db     *badger.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the ledger at path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(path string, logger zerolog.Logger) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("history: path is required")
	}
	return open(badger.DefaultOptions(path), logger)
}

// OpenReadOnly opens an existing ledger without taking the writer lock.
// It fails while another process has the ledger open for writing.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenReadOnly(path string, logger zerolog.Logger) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("history: path is required")
	}
	return open(badger.DefaultOptions(path).WithReadOnly(true), logger)
}

// OpenInMemory opens a ledger that lives only as long as the process.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenInMemory(logger zerolog.Logger) (*Ledger, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

//nolint:gocritic // badger options are passed by value
func open(opts badger.Options, logger zerolog.Logger) (*Ledger, error) {
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	return &Ledger{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

func runKey(rec *Record) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixRun, rec.StartedAt.UnixNano(), rec.RunID))
}

// Append stores a run record. A record with an existing run id replaces it.
// A zero StartedAt is set to the current time.
func (l *Ledger) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.RunID == "" {
		return fmt.Errorf("history: record requires a run id")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLedgerClosed
	}

	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	key := runKey(rec)

	err = l.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(prefixID + rec.RunID)

		// drop the previous entry for this run id
		item, err := txn.Get(idKey)
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(old); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.SetEntry(badger.NewEntry(key, data)); err != nil {
			return err
		}
		return txn.Set(idKey, key)
	})
	if err != nil {
		return fmt.Errorf("append run %s: %w", rec.RunID, err)
	}

	l.logger.Debug().
		Str("run_id", rec.RunID).
		Str("command", rec.Command).
		Str("status", rec.Status).
		Msg("run recorded")
	return nil
}

// Get returns the record for runID.
func (l *Ledger) Get(ctx context.Context, runID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}

	var rec Record
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixID + runID))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}

	var records []Record
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		// reverse iteration starts from the last key under the prefix
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var rec Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				l.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable run record")
				continue
			}

			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// Close closes the ledger. Further calls return ErrLedgerClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
