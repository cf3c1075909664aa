package extractor

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF decodes a PDF statement into pseudo-tabular rows. Text pieces
// are grouped by Y coordinate into rows and split into cells on large X gaps,
// which recovers table structure from most digitally generated statements.
// Scanned/image-only PDFs fail with ErrExtractionFailed; OCR is out of scope.
func extractPDF(data []byte) (res *Result, err error) {
	// The pdf library can panic on malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: pdf reader panic: %v", ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrExtractionFailed)
	}

	grid := extractPDFByContent(reader, numPages)
	if len(grid) == 0 {
		// Fall back to the library's row grouping.
		grid = extractPDFByRow(reader, numPages)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: no text could be decoded; the pdf may be image-based or use custom font encodings", ErrExtractionFailed)
	}

	return &Result{Text: gridToText(grid), Grid: grid, IsGrid: true}, nil
}

// extractPDFByContent reads raw positioned text objects, groups them into rows
// by rounded Y coordinate and splits cells on X gaps wider than gapThreshold.
func extractPDFByContent(reader *pdf.Reader, numPages int) [][]string {
	const gapThreshold = 12.0

	var grid [][]string
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		type piece struct {
			x float64
			s string
		}
		rowMap := make(map[int][]piece)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], piece{x: t.X, s: t.S})
		}

		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		// PDF Y runs bottom-to-top.
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		for _, y := range yKeys {
			pieces := rowMap[y]
			sort.Slice(pieces, func(a, b int) bool { return pieces[a].x < pieces[b].x })

			var cells []string
			var cell strings.Builder
			var prevEnd float64
			for j, p := range pieces {
				if j > 0 && p.x-prevEnd > gapThreshold {
					cells = append(cells, strings.TrimSpace(cell.String()))
					cell.Reset()
				}
				cell.WriteString(p.s)
				prevEnd = p.x + approxWidth(p.s)
			}
			if c := strings.TrimSpace(cell.String()); c != "" || len(cells) > 0 {
				cells = append(cells, c)
			}
			if len(cells) > 0 {
				grid = append(grid, cells)
			}
		}
	}
	return grid
}

// extractPDFByRow uses the library's own row reconstruction, one cell per word
// run. Less faithful to columns but works when Content() is empty.
func extractPDFByRow(reader *pdf.Reader, numPages int) [][]string {
	var grid [][]string
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				grid = append(grid, splitPseudoColumns(strings.Join(parts, " ")))
			}
		}
	}
	return grid
}

// approxWidth estimates rendered text width so gap detection has an end
// coordinate to work from. 5pt per character is close enough for 8-10pt body
// text in statements.
func approxWidth(s string) float64 {
	return float64(len(s)) * 5.0
}
