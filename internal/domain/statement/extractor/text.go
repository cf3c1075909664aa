package extractor

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// extractText decodes a plain-text statement. Delimiter-separated files are
// parsed as a grid; free-form text is reflowed into pseudo-rows by splitting
// on runs of two or more spaces, which preserves column alignment from
// fixed-width exports.
func extractText(data []byte) (*Result, error) {
	text := string(stripBOM(data))
	if !utf8.ValidString(text) {
		text = decodeLatin1(data)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: file is empty", ErrExtractionFailed)
	}

	lines := splitLines(text)

	if delim := dominantDelimiter(lines); delim != 0 {
		reader := csv.NewReader(strings.NewReader(text))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.TrimLeadingSpace = true
		reader.FieldsPerRecord = -1
		records, err := reader.ReadAll()
		if err == nil && len(records) > 0 {
			return &Result{Text: text, Grid: records, IsGrid: true}, nil
		}
		// Malformed quoting; fall through to pseudo-column reflow.
	}

	grid := make([][]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			grid = append(grid, nil)
			continue
		}
		grid = append(grid, splitPseudoColumns(line))
	}

	return &Result{Text: text, Grid: grid, IsGrid: true}, nil
}

// dominantDelimiter picks a delimiter only when it appears on most non-empty
// lines; otherwise the file is treated as fixed-width text.
func dominantDelimiter(lines []string) rune {
	for _, d := range []rune{';', '\t', ',', '|'} {
		hits, total := 0, 0
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			total++
			if strings.Count(line, string(d)) >= 2 {
				hits++
			}
		}
		if total > 0 && hits*2 > total {
			return d
		}
	}
	return 0
}

// splitPseudoColumns splits a fixed-width statement line into cells on runs
// of two or more spaces.
func splitPseudoColumns(line string) []string {
	parts := multiSpace.Split(strings.TrimSpace(line), -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
