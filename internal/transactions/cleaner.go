// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package transactions

import (
	"strconv"
	"strings"
)

// Rule names, used as keys in CleanStats.Dropped.
const (
	RuleMissingCustomer = "missing_customer"
	RuleCancelled       = "cancelled_invoice"
	RuleNonPositive     = "non_positive"
)

// Rule keeps or drops a single record.
type Rule struct {
	Name string
	Keep func(r *TransactionRecord) bool
}

// MissingCustomerRule drops records without a customer id.
func MissingCustomerRule() Rule {
	return Rule{
		Name: RuleMissingCustomer,
		Keep: func(r *TransactionRecord) bool { return r.CustomerID != nil },
	}
}

// CancelledRule drops records on cancelled invoices.
func CancelledRule() Rule {
	return Rule{
		Name: RuleCancelled,
		Keep: func(r *TransactionRecord) bool { return !strings.HasPrefix(r.InvoiceID, CancellationPrefix) },
	}
}

// NonPositiveRule drops returns, adjustments and corrupted rows.
func NonPositiveRule() Rule {
	return Rule{
		Name: RuleNonPositive,
		Keep: func(r *TransactionRecord) bool { return r.Quantity > 0 && r.UnitPrice > 0 },
	}
}

// DefaultRules returns every rule in application order.
func DefaultRules() []Rule {
	return []Rule{MissingCustomerRule(), CancelledRule(), NonPositiveRule()}
}

// RuleOptions selects rules by flag, preserving application order.
type RuleOptions struct {
	DropMissingCustomer bool
	DropCancelled       bool
	DropNonPositive     bool
}

// Rules returns the enabled rules.
func (o RuleOptions) Rules() []Rule {
	rules := make([]Rule, 0, 3)
	if o.DropMissingCustomer {
		rules = append(rules, MissingCustomerRule())
	}
	if o.DropCancelled {
		rules = append(rules, CancelledRule())
	}
	if o.DropNonPositive {
		rules = append(rules, NonPositiveRule())
	}
	return rules
}

// CleanStats reports what a Clean call removed.
type CleanStats struct {
	Input   int            `json:"input"`
	Output  int            `json:"output"`
	Dropped map[string]int `json:"dropped"`
}

// Cleaner filters raw records through an ordered rule list.
type Cleaner struct {
	rules []Rule
}

// NewCleaner creates a cleaner. With no rules it only normalizes invoice ids.
func NewCleaner(rules ...Rule) *Cleaner {
	return &Cleaner{rules: rules}
}

// Rules returns the active rule names in order.
func (c *Cleaner) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// Clean returns the records that pass every rule. A record is attributed to
// the first rule that drops it. The input is not modified. An empty result
// is not an error.
func (c *Cleaner) Clean(records []TransactionRecord) ([]CleanedTransaction, CleanStats) {
	stats := CleanStats{
		Input:   len(records),
		Dropped: make(map[string]int, len(c.rules)),
	}
	for _, r := range c.rules {
		stats.Dropped[r.Name] = 0
	}

	out := make([]CleanedTransaction, 0, len(records))
	for i := range records {
		rec := records[i]
		rec.InvoiceID = NormalizeInvoice(rec.InvoiceID)

		kept := true
		for _, rule := range c.rules {
			if !rule.Keep(&rec) {
				stats.Dropped[rule.Name]++
				kept = false
				break
			}
		}
		if !kept {
			continue
		}

		out = append(out, CleanedTransaction{
			InvoiceID:  rec.InvoiceID,
			ItemCode:   rec.ItemCode,
			CustomerID: rec.CustomerID,
			Quantity:   rec.Quantity,
			UnitPrice:  rec.UnitPrice,
		})
	}

	stats.Output = len(out)
	return out, stats
}

// NormalizeInvoice returns the canonical string form of an invoice id.
// Surrounding whitespace is removed and integral numbers that were rendered
// as floats ("489434.0") lose their fraction.
func NormalizeInvoice(id string) string {
	id = strings.TrimSpace(id)
	if !strings.Contains(id, ".") {
		return id
	}
	f, err := strconv.ParseFloat(id, 64)
	if err != nil || f != float64(int64(f)) {
		return id
	}
	return strconv.FormatInt(int64(f), 10)
}
