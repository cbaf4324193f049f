// =============================================================================
// Card Export Formatter - CSV Parser Module
// =============================================================================
//
// This module loads a card-transaction export from delimited text into a
// types.Table. It accepts the single dialect the exports use:
//   - One header row naming the columns
//   - A configurable single-character delimiter (comma by default)
//   - Double-quoted fields, with lenient handling of stray quotes
//
// LOADING RULES:
//   - A UTF-8 byte order mark at the start of the stream is dropped
//   - Header cells are trimmed; an empty header cell becomes "Unnamed: N"
//   - Blank lines are skipped
//   - Rows shorter than the header are padded with empty cells
//   - Rows longer than the header are a ParseError
//   - Data cells are kept exactly as read
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
	"github.com/ginjaninja78/card-export-formatter/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoHeader is wrapped by a ParseError when the input holds no header row.
var ErrNoHeader = errors.New("no header row")

// ParseError reports input that cannot be read as delimited text with a header.
type ParseError struct {
	// Source names the input (a file path or upload name). May be empty.
	Source string

	// Line is the 1-based line where reading failed, or 0 if unknown.
	Line int

	Err error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " on line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile opens the file at path and parses it with Parse.
func ParseFile(path string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := Parse(file, settings)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Source = path
		}
		return nil, err
	}
	table.SourceFile = path
	return table, nil
}

// Parse reads delimited text and returns the table it holds.
//
// PARAMETERS:
//   - r: The delimited text stream.
//   - settings: The CSV settings; only the delimiter is used.
//
// RETURNS:
//   - The parsed table, every row padded to the header width.
//   - A *ParseError if the stream is empty, has no header, or is malformed.
func Parse(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	reader := csv.NewReader(skipBOM(r))
	configureReader(reader, settings)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: ErrNoHeader}
	}
	if err != nil {
		return nil, wrapReadError(err)
	}
	if isRowEmpty(header) {
		return nil, &ParseError{Line: 1, Err: ErrNoHeader}
	}

	table := &types.Table{Headers: cleanHeaders(header)}
	width := len(table.Headers)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReadError(err)
		}

		if len(row) > width {
			line, _ := reader.FieldPos(0)
			return nil, &ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", width, len(row)),
			}
		}

		table.Rows = append(table.Rows, padRow(row, width))
	}

	return table, nil
}

// configureReader applies the delimiter and the lenient quoting the exports need.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	reader.Comma = settings.Comma()

	// Field counts are checked against the header by Parse.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = true
	reader.ReuseRecord = false
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func wrapReadError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}

// cleanHeaders trims header cells and names empty ones after their position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Unnamed: %d", i)
		}
		cleaned[i] = header
	}
	return cleaned
}

func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
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
