// Package extractor turns a raw statement file into plain text and/or a grid
// of cells. It is bank-agnostic: layout semantics belong to the row extractor.
package extractor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is fatal: the declared extension is not one we parse.
	ErrUnsupportedFormat = errors.New("unsupported statement format")
	// ErrExtractionFailed is recoverable: the file claimed a supported format
	// but could not be decoded (corrupt PDF, encrypted workbook, ...). The
	// pipeline continues with empty content and a diagnostic.
	ErrExtractionFailed = errors.New("statement extraction failed")
)

// Result is the extractor output. IsGrid selects which representation the
// downstream row extractor should consume; Text is always populated so bank
// detection can scan either way.
type Result struct {
	Text   string
	Grid   [][]string
	IsGrid bool
}

// Extract decodes a statement blob according to its declared extension. The
// input buffer is not retained.
func Extract(data []byte, ext string) (*Result, error) {
	switch normalizeExt(ext) {
	case ".pdf":
		return extractPDF(data)
	case ".xls", ".xlsx":
		return extractExcel(data)
	case ".txt", ".csv":
		return extractText(data)
	case ".docx":
		return extractDocx(data)
	case ".doc":
		return extractDoc(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// SupportedExtensions lists every extension Extract accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".xls", ".xlsx", ".txt", ".csv", ".doc", ".docx"}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// gridToText flattens a grid for keyword scans, cells joined by single spaces.
func gridToText(grid [][]string) string {
	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.Join(row, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
