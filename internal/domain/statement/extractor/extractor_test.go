package extractor

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtract_UnsupportedFormat(t *testing.T) {
	for _, ext := range []string{".exe", "html", "", ".pdfx"} {
		t.Run("ext_"+ext, func(t *testing.T) {
			_, err := Extract([]byte("data"), ext)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestExtract_CSV(t *testing.T) {
	csvData := strings.Join([]string{
		"Date,Narration,Withdrawal Amt.,Deposit Amt.,Closing Balance",
		"01/04/2024,UPI-SWIGGY-PAY,450.00,,12550.00",
		`02/04/2024,"NEFT, SALARY CREDIT",,50000.00,62550.00`,
	}, "\n")

	res, err := Extract([]byte(csvData), ".csv")
	require.NoError(t, err)
	require.True(t, res.IsGrid)
	require.Len(t, res.Grid, 3)
	assert.Equal(t, "Narration", res.Grid[0][1])
	assert.Equal(t, "NEFT, SALARY CREDIT", res.Grid[2][1])
	assert.Contains(t, res.Text, "SWIGGY")
}

func TestExtract_SemicolonDelimited(t *testing.T) {
	data := "Date;Description;Debit;Credit\n01/04/2024;ATM WDL;500.00;\n"

	res, err := Extract([]byte(data), ".txt")
	require.NoError(t, err)
	require.True(t, res.IsGrid)
	assert.Equal(t, []string{"Date", "Description", "Debit", "Credit"}, res.Grid[0])
}

func TestExtract_FixedWidthText(t *testing.T) {
	data := strings.Join([]string{
		"Date          Particulars              Debit        Credit       Balance",
		"01/04/2024    UPI/P2M/4091/SWIGGY      450.00                    12550.00",
		"",
		"02/04/2024    SALARY APR                            50000.00     62550.00",
	}, "\n")

	res, err := Extract([]byte(data), ".txt")
	require.NoError(t, err)
	require.True(t, res.IsGrid)
	assert.Equal(t, []string{"Date", "Particulars", "Debit", "Credit", "Balance"}, res.Grid[0])
	assert.Equal(t, []string{"01/04/2024", "UPI/P2M/4091/SWIGGY", "450.00", "12550.00"}, res.Grid[1])
	assert.Nil(t, res.Grid[2], "blank lines survive as nil rows for trailer detection")
}

func TestExtract_EmptyText(t *testing.T) {
	_, err := Extract([]byte("   \n  \n"), ".txt")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"HDFC BANK Ltd."},
		{"Date", "Narration", "Withdrawal Amt.", "Deposit Amt.", "Closing Balance"},
		{"01/04/24", "POS 416021XXXXXX AMAZON", "1299.00", "", "11251.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := Extract(buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	require.True(t, res.IsGrid)
	require.GreaterOrEqual(t, len(res.Grid), 3)
	assert.Equal(t, "Narration", res.Grid[1][1])
	assert.Contains(t, res.Text, "AMAZON")
}

func TestExtract_XLSXCorrupt(t *testing.T) {
	_, err := Extract([]byte("not a zip archive"), ".xlsx")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_Docx(t *testing.T) {
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>STATE BANK OF INDIA</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Txn Date</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Description</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Debit</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>01 Apr 2024</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>ATM WDL 500</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>500.00</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res, err := Extract(buf.Bytes(), ".docx")
	require.NoError(t, err)
	require.True(t, res.IsGrid)
	assert.Contains(t, res.Text, "STATE BANK OF INDIA")

	var headerRow []string
	for _, row := range res.Grid {
		if len(row) >= 3 && row[0] == "Txn Date" {
			headerRow = row
			break
		}
	}
	require.NotNil(t, headerRow, "table header row should survive extraction")
	assert.Equal(t, "Description", headerRow[1])
}

func TestExtract_DocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract(buf.Bytes(), ".docx")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_PDFGarbage(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 truncated garbage"), ".pdf")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestSplitPseudoColumns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single spaces kept", "UPI PAYMENT TO MERCHANT", []string{"UPI PAYMENT TO MERCHANT"}},
		{"double space splits", "01/04/2024  ATM WDL  500.00", []string{"01/04/2024", "ATM WDL", "500.00"}},
		{"leading and trailing", "   a   b   ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitPseudoColumns(tt.in))
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".xlsx")
	assert.Contains(t, exts, ".csv")
}
