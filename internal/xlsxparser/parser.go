// =============================================================================
// Card Export Formatter - XLSX Parser
// =============================================================================
//
// This module loads a card-transaction export saved as an Excel workbook.
// Only the first sheet is read. Its first row is the header and every later
// non-empty row is a data row, so a workbook loads into the same types.Table
// the CSV parser produces.
//
// Cell values are read as the formatted text Excel would display. Failures
// are reported as *csvparser.ParseError so callers handle one error type for
// both input formats.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-export-formatter/internal/csvparser"
	"github.com/ginjaninja78/card-export-formatter/internal/types"
)

// ErrNoSheets is wrapped by a ParseError when the workbook has no worksheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// ParseFile opens the workbook at path and parses it with Parse.
func ParseFile(path string) (*types.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := Parse(file)
	if err != nil {
		var perr *csvparser.ParseError
		if errors.As(err, &perr) {
			perr.Source = path
		}
		return nil, err
	}
	table.SourceFile = path
	return table, nil
}

// Parse reads the first sheet of a workbook.
//
// PARAMETERS:
//   - r: The workbook bytes.
//
// RETURNS:
//   - The parsed table. Rows are padded to the header width; a row wider
//     than the header adds "Unnamed: N" columns.
//   - A *csvparser.ParseError if the workbook is unreadable or the sheet
//     has no header row.
func Parse(r io.Reader) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &csvparser.ParseError{Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, &csvparser.ParseError{Err: ErrNoSheets}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, &csvparser.ParseError{Err: fmt.Errorf("failed to read rows of %s: %w", sheetName, err)}
	}

	if len(rows) == 0 || isRowEmpty(rows[0]) {
		return nil, &csvparser.ParseError{Line: 1, Err: csvparser.ErrNoHeader}
	}

	headers := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		headers[i] = headerName(cell, i)
	}

	var data [][]string
	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		for len(headers) < len(row) {
			headers = append(headers, headerName("", len(headers)))
		}
		data = append(data, row)
	}

	// Pad after the loop; the header may have grown.
	for i, row := range data {
		if len(row) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, row)
			data[i] = padded
		}
	}

	return &types.Table{Headers: headers, Rows: data}, nil
}

func headerName(cell string, index int) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return fmt.Sprintf("Unnamed: %d", index)
	}
	return cell
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
