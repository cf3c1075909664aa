package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel decodes an XLS/XLSX workbook into a grid. The sheet with the
// most rows wins; statements occasionally carry a summary sheet before the
// transaction sheet.
func extractExcel(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrExtractionFailed)
	}

	var best [][]string
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) > len(best) {
			best = rows
		}
	}
	if len(best) == 0 {
		return nil, fmt.Errorf("%w: no readable rows in workbook", ErrExtractionFailed)
	}

	grid := make([][]string, 0, len(best))
	for _, row := range best {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
		}
		grid = append(grid, cells)
	}

	return &Result{Text: gridToText(grid), Grid: grid, IsGrid: true}, nil
}
