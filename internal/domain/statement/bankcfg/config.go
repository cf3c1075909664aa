// Package bankcfg holds per-bank parser configuration: detection keywords,
// header vocabulary, column synonyms and date formats. Configs are loaded into
// an immutable snapshot per parse run; administrative updates never mutate a
// snapshot in place.
package bankcfg

import (
	"strings"
	"time"
)

// BankUnknown is returned by detection when no registered config matches.
// It is a valid bank code: parsing proceeds with the generic config.
const BankUnknown = "UNKNOWN"

// ParserType selects how the raw document is turned into rows.
type ParserType string

const (
	// ParserTabular consumes a grid of cells (spreadsheets, table PDFs).
	ParserTabular ParserType = "tabular"
	// ParserText consumes narrative statements reflowed into pseudo-rows.
	ParserText ParserType = "text"
)

// Column is a canonical statement column name.
type Column string

const (
	ColDate        Column = "DATE"
	ColDescription Column = "DESCRIPTION"
	ColDebit       Column = "DEBIT"
	ColCredit      Column = "CREDIT"
	ColBalance     Column = "BALANCE"
)

// Columns lists every canonical column in a stable order.
var Columns = []Column{ColDate, ColDescription, ColDebit, ColCredit, ColBalance}

// AmountColumns are the columns that carry monetary values.
var AmountColumns = []Column{ColDebit, ColCredit, ColBalance}

// ParserConfig describes how one bank's statements are detected and parsed.
type ParserConfig struct {
	BankCode          string              `json:"bank_code"`
	DisplayName       string              `json:"display_name"`
	Priority          int                 `json:"priority"`
	ParserType        ParserType          `json:"parser_type"`
	DetectionKeywords []string            `json:"detection_keywords"`
	HeaderKeywords    []string            `json:"header_keywords"`
	ColumnSynonyms    map[Column][]string `json:"column_synonyms"`
	DateFormats       []string            `json:"date_formats"`
	Version           int                 `json:"version"`
	IsActive          bool                `json:"is_active"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// FieldMapping is a per-bank, per-field transform record (date format,
// timezone, ...). Superseding a mapping creates a new version; at most one
// version per (bank code, field key) is active.
type FieldMapping struct {
	ID        int64     `json:"id"`
	BankCode  string    `json:"bank_code"`
	FieldKey  string    `json:"field_key"`
	Value     string    `json:"value"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Well-known field mapping keys.
const (
	FieldDateFormat = "date_format"
	FieldTimezone   = "timezone"
)

// CommonDateFormats is the fallback list tried in order when a bank has no
// configured date format. First successful parse wins.
var CommonDateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/06",
	"02-01-06",
	"2006-01-02",
	"02 Jan 2006",
	"02-Jan-2006",
	"02 Jan 06",
	"02-Jan-06",
	"2 Jan 2006",
	"02.01.2006",
	"2006/01/02",
}

// Generic returns the built-in permissive config used for unknown banks.
// Broad synonym lists, best-effort header detection.
func Generic() ParserConfig {
	return ParserConfig{
		BankCode:    BankUnknown,
		DisplayName: "Generic",
		Priority:    1000,
		ParserType:  ParserTabular,
		HeaderKeywords: []string{
			"date", "txn date", "value date", "particulars", "description",
			"narration", "debit", "credit", "withdrawal", "deposit", "balance",
		},
		ColumnSynonyms: map[Column][]string{
			ColDate: {
				"date", "txn date", "tran date", "transaction date",
				"value date", "value dt", "post date", "posting date",
			},
			ColDescription: {
				"description", "particulars", "narration", "transaction details",
				"details", "remarks", "transaction remarks", "description/narration",
			},
			ColDebit: {
				"debit", "debit amount", "withdrawal", "withdrawal amt",
				"withdrawal amt.", "withdrawals", "dr", "dr amount", "paid out",
				"withdrawal (dr)", "debit(dr)",
			},
			ColCredit: {
				"credit", "credit amount", "deposit", "deposit amt",
				"deposit amt.", "deposits", "cr", "cr amount", "paid in",
				"deposit (cr)", "credit(cr)",
			},
			ColBalance: {
				"balance", "closing balance", "running balance", "available balance",
				"balance amt", "bal", "closing bal",
			},
		},
		DateFormats: CommonDateFormats,
		Version:     1,
		IsActive:    true,
	}
}

// MatchesSynonym reports whether a physical header cell matches any synonym
// for the column, case-insensitive and whitespace-normalized.
func (c ParserConfig) MatchesSynonym(col Column, headerCell string) bool {
	cell := NormalizeHeader(headerCell)
	if cell == "" {
		return false
	}
	for _, syn := range c.ColumnSynonyms[col] {
		s := NormalizeHeader(syn)
		if cell == s || strings.Contains(cell, s) {
			return true
		}
	}
	return false
}

// NormalizeHeader lowercases a header cell and collapses internal whitespace.
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// BaseCode strips a qualifier suffix from a bank code: "HDFC_DYNAMIC" resolves
// to "HDFC". Codes without a qualifier are returned unchanged.
func BaseCode(code string) string {
	if idx := strings.IndexRune(code, '_'); idx > 0 {
		return code[:idx]
	}
	return code
}
