// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package history

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// DirLister lists runs from a ledger directory, opening it read-only for
// each call. A long-running process uses it so that batch runs can still
// open the ledger for writing between calls.
type DirLister struct {
	path   string
	logger zerolog.Logger
}

// NewDirLister creates a lister for the ledger at path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDirLister(path string, logger zerolog.Logger) *DirLister {
	return &DirLister{path: path, logger: logger}
}

// List returns up to limit runs, newest first. A ledger that has never been
// written is empty, not an error.
func (d *DirLister) List(ctx context.Context, limit int) ([]Record, error) {
	if _, err := os.Stat(d.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	l, err := OpenReadOnly(d.path, d.logger)
	if err != nil {
		return nil, fmt.Errorf("history: ledger busy or unreadable: %w", err)
	}
	defer l.Close() //nolint:errcheck // read-only

	return l.List(ctx, limit)
}
