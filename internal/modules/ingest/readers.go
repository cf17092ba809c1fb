package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither spreadsheets nor CSV
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// ReadTable decodes an uploaded holdings file into a Table.
// The format is chosen by file extension.
func ReadTable(filename string, r io.Reader) (Table, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		rows, err = readWorkbook(r)
	case ".csv", ".txt":
		rows, err = readCSV(r)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return Table{}, err
	}

	return splitHeader(rows), nil
}

// readWorkbook returns the rows of the first sheet
func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// splitHeader drops leading blank rows and separates a header row when the first row
// carries column labels
func splitHeader(rows [][]string) Table {
	for len(rows) > 0 && isBlankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return Table{}
	}
	if looksLikeHeader(rows[0]) {
		return Table{Header: rows[0], Rows: rows[1:]}
	}
	return Table{Rows: rows}
}

func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		if _, ok := lookupHeader(cell); ok {
			return true
		}
		if strings.TrimSpace(cell) != "" && placeholderHeader.MatchString(strings.TrimSpace(cell)) {
			return true
		}
	}
	return false
}
