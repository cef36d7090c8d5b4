// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package transactions holds the raw sales-line record types and the
// cleaning rules that turn them into interaction signal.
//
// Rules run in a fixed order and each rule can be left out of a Cleaner,
// which keeps them testable in isolation:
//
//  1. missing_customer: drop lines without a customer id
//  2. cancelled_invoice: drop lines whose invoice starts with 'C'
//  3. non_positive: drop lines with quantity <= 0 or unit price <= 0
//
// Invoice ids are always normalized to their string form, whatever rules
// are active.
package transactions

// CancellationPrefix marks a cancelled invoice.
const CancellationPrefix = "C"

// TransactionRecord is one line of a sales transaction as read from the raw source.
type TransactionRecord struct {
	InvoiceID string
	ItemCode  string

	// CustomerID is nil when the source row has no customer.
	CustomerID *int64

	Quantity  int64
	UnitPrice float64
}

// HasCustomer reports whether the record carries a customer id.
func (r *TransactionRecord) HasCustomer() bool {
	return r.CustomerID != nil
}

// CleanedTransaction is a TransactionRecord that passed the active cleaning
// rules. With the default rules its customer id is always present and its
// quantity and unit price are positive.
type CleanedTransaction struct {
	InvoiceID  string
	ItemCode   string
	CustomerID *int64
	Quantity   int64
	UnitPrice  float64
}

// Customer returns the customer id and whether it is present.
func (c *CleanedTransaction) Customer() (int64, bool) {
	if c.CustomerID == nil {
		return 0, false
	}
	return *c.CustomerID, true
}

// CustomerID is a convenience constructor for TransactionRecord.CustomerID.
func CustomerID(id int64) *int64 {
	return &id
}
