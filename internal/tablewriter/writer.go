// =============================================================================
// Card Export Formatter - Table Writer Module
// =============================================================================
//
// This module serializes a cleaned types.Table. Two formats are supported:
//
//   csv   Delimited text in the same dialect as the input: header row first,
//         "\n" line endings, fields quoted only when needed.
//   xlsx  A single-sheet workbook named "Cleaned", every cell written as text
//         so card numbers keep all 16 digits.
//
// =============================================================================

package tablewriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
	"github.com/ginjaninja78/card-export-formatter/internal/types"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Cleaned"

// Write serializes table in the given format.
func Write(w io.Writer, table *types.Table, format string, settings config.CSVSettings) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, table, settings)
	case FormatXLSX:
		return WriteXLSX(w, table)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteCSV writes the header and every row as delimited text.
func WriteCSV(w io.Writer, table *types.Table, settings config.CSVSettings) error {
	cw := csv.NewWriter(w)
	cw.Comma = settings.Comma()

	if err := cw.Write(table.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the table to the first sheet of a new workbook.
//
// PARAMETERS:
//   - w: Destination for the workbook bytes.
//   - table: The table to write.
//
// RETURNS:
//   - An error if a cell cannot be set or the workbook cannot be written.
func WriteXLSX(w io.Writer, table *types.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, table.Headers); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// setRow writes cells as strings. SetSheetRow would store numeric-looking
// text as a number and lose precision on 16-digit card numbers. Empty cells
// are left unset.
func setRow(f *excelize.File, rowNum int, cells []string) error {
	for col, value := range cells {
		if value == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return fmt.Errorf("invalid cell at row %d, column %d: %w", rowNum, col+1, err)
		}
		if err := f.SetCellStr(SheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", cell, err)
		}
	}
	return nil
}

// Extension returns the file extension for a format, including the dot.
func Extension(format string) string {
	if format == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}
