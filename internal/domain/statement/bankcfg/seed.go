package bankcfg

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

//go:embed banks.csv
var builtinCSV []byte

// seedRow mirrors one line of banks.csv. Multi-valued cells use '|' between
// entries so the file stays a plain comma-separated table.
type seedRow struct {
	BankCode          string `csv:"bank_code"`
	DisplayName       string `csv:"display_name"`
	Priority          int    `csv:"priority"`
	ParserType        string `csv:"parser_type"`
	DetectionKeywords string `csv:"detection_keywords"`
	HeaderKeywords    string `csv:"header_keywords"`
	DateSynonyms      string `csv:"date_synonyms"`
	DescSynonyms      string `csv:"description_synonyms"`
	DebitSynonyms     string `csv:"debit_synonyms"`
	CreditSynonyms    string `csv:"credit_synonyms"`
	BalanceSynonyms   string `csv:"balance_synonyms"`
	DateFormats       string `csv:"date_formats"`
}

// Builtin returns the bank registry shipped with the binary. Administrative
// configs from the database are layered on top of these at snapshot build
// time; a database row with the same bank code wins.
func Builtin() ([]ParserConfig, error) {
	var rows []seedRow
	if err := gocsv.UnmarshalBytes(builtinCSV, &rows); err != nil {
		return nil, fmt.Errorf("parse builtin bank registry: %w", err)
	}

	configs := make([]ParserConfig, 0, len(rows))
	for _, row := range rows {
		cfg := ParserConfig{
			BankCode:          strings.ToUpper(strings.TrimSpace(row.BankCode)),
			DisplayName:       row.DisplayName,
			Priority:          row.Priority,
			ParserType:        ParserType(row.ParserType),
			DetectionKeywords: splitMulti(row.DetectionKeywords),
			HeaderKeywords:    splitMulti(row.HeaderKeywords),
			ColumnSynonyms: map[Column][]string{
				ColDate:        splitMulti(row.DateSynonyms),
				ColDescription: splitMulti(row.DescSynonyms),
				ColDebit:       splitMulti(row.DebitSynonyms),
				ColCredit:      splitMulti(row.CreditSynonyms),
				ColBalance:     splitMulti(row.BalanceSynonyms),
			},
			DateFormats: splitMulti(row.DateFormats),
			Version:     1,
			IsActive:    true,
		}
		if len(cfg.DateFormats) == 0 {
			cfg.DateFormats = CommonDateFormats
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func splitMulti(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
