package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// extractDocx pulls text runs out of word/document.xml. Each paragraph becomes
// a pseudo-row; tables come through as tab-joined cells which the pseudo-column
// split handles downstream.
func extractDocx(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrExtractionFailed)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer rc.Close()

	lines, err := docxParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: document has no text", ErrExtractionFailed)
	}

	return gridFromLines(lines), nil
}

// docxParagraphs streams the document XML and collects one line per w:p
// element. Text lives in w:t nodes; w:tab separates table cells.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines   []string
		current strings.Builder
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "tr":
				if s := strings.TrimSpace(current.String()); s != "" {
					lines = append(lines, s)
				}
				current.Reset()
			case "tc":
				current.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		lines = append(lines, s)
	}
	return lines, nil
}

// extractDoc reads the legacy binary Word format via its OLE compound file
// container. We do not parse the full binary record stream; pulling printable
// UTF-16/ANSI runs out of the WordDocument stream recovers the statement text,
// which is all the row extractor needs.
func extractDoc(data []byte) (*Result, error) {
	cfb, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var wordStream []byte
	for entry, err := cfb.Next(); err == nil; entry, err = cfb.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		buf := make([]byte, entry.Size)
		n, _ := io.ReadFull(entry, buf)
		wordStream = buf[:n]
		break
	}
	if len(wordStream) == 0 {
		return nil, fmt.Errorf("%w: WordDocument stream missing", ErrExtractionFailed)
	}

	text := scrapeDocText(wordStream)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text could be decoded", ErrExtractionFailed)
	}

	var lines []string
	for _, l := range splitLines(text) {
		if s := strings.TrimSpace(l); s != "" {
			lines = append(lines, s)
		}
	}
	return gridFromLines(lines), nil
}

// scrapeDocText extracts printable character runs from a WordDocument stream,
// trying UTF-16LE first (the common case for modern .doc files) and keeping
// whichever decoding yields more text.
func scrapeDocText(stream []byte) string {
	utf16Text := scrapeRuns(stream, true)
	ansiText := scrapeRuns(stream, false)
	if len(utf16Text) >= len(ansiText) {
		return utf16Text
	}
	return ansiText
}

func scrapeRuns(stream []byte, wide bool) string {
	const minRun = 4

	var b strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= minRun {
			for _, r := range run {
				b.WriteRune(r)
			}
			b.WriteByte('\n')
		}
		run = run[:0]
	}

	step := 1
	if wide {
		step = 2
	}
	for i := 0; i+step <= len(stream); i += step {
		var r rune
		if wide {
			r = rune(utf16.Decode([]uint16{uint16(stream[i]) | uint16(stream[i+1])<<8})[0])
		} else {
			r = rune(stream[i])
		}
		switch {
		case r == '\r' || r == 0x07: // paragraph mark, cell mark
			flush()
		case r == '\t' || (r >= 0x20 && r < 0xFFFD && r != 0x7F):
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return b.String()
}

func gridFromLines(lines []string) *Result {
	grid := make([][]string, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(l, "\t") {
			cells := strings.Split(l, "\t")
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
			grid = append(grid, cells)
			continue
		}
		grid = append(grid, splitPseudoColumns(l))
	}
	return &Result{Text: strings.Join(lines, "\n"), Grid: grid, IsGrid: true}
}
