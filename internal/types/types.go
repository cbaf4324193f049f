// =============================================================================
// Card Export Formatter - Shared Types
// =============================================================================
//
// This package holds the table and record types shared by the loaders, the
// row transformer and the writers. Keeping them here avoids import cycles
// between csvparser, xlsxparser, converter and tablewriter.
//
// =============================================================================

package types

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered header plus ordered data rows, as loaded from an
// uploaded export. Every row has exactly len(Headers) cells.
type Table struct {
	// Headers holds the column names in file order.
	Headers []string

	// Rows holds the data rows in file order.
	Rows [][]string

	// SourceFile is the path the table was loaded from, if any.
	SourceFile string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Index returns the position of the first column with the given name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// OPTIONAL FIELD
// =============================================================================

// naMarkers are the cell contents read as missing values. The list matches
// the markers spreadsheet exports commonly use for an empty cell.
var naMarkers = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a",
	"nan", "null",
}

var naValues = func() map[string]bool {
	m := make(map[string]bool, len(naMarkers))
	for _, v := range naMarkers {
		m[v] = true
	}
	return m
}()

// Field is a cell value that may be null.
type Field struct {
	Value string
	Valid bool
}

// NewField wraps a raw cell. Missing-value markers become null.
func NewField(raw string) Field {
	if naValues[raw] {
		return Field{}
	}
	return Field{Value: raw, Valid: true}
}

// Null returns a null field.
func Null() Field {
	return Field{}
}

// String returns the value, or "" when the field is null.
func (f Field) String() string {
	if !f.Valid {
		return ""
	}
	return f.Value
}

// =============================================================================
// TYPED RECORD
// =============================================================================

// Record is one data row with the five business columns pulled out as named
// optional fields. Cells keeps the whole row so pass-through columns are
// written back untouched.
type Record struct {
	CardNumber    Field
	Amount        Field
	Description   Field
	Date          Field
	Authorization Field

	// Cells is the original row, in column order.
	Cells []string

	// Line is the 1-based line number in the source file, for logging.
	Line int
}

// Layout records where each business column sits in a row. Positions are
// resolved once per table, so a missing column is caught before any row is
// touched.
type Layout struct {
	// Headers are the output column names in order.
	Headers []string

	CardNumber    int
	Amount        int
	Description   int
	Date          int
	Authorization int
}

// Decode builds a Record from a raw row.
func (l Layout) Decode(row []string, line int) Record {
	cells := make([]string, len(row))
	copy(cells, row)
	return Record{
		CardNumber:    NewField(cells[l.CardNumber]),
		Amount:        NewField(cells[l.Amount]),
		Description:   NewField(cells[l.Description]),
		Date:          NewField(cells[l.Date]),
		Authorization: NewField(cells[l.Authorization]),
		Cells:         cells,
		Line:          line,
	}
}

// Encode writes the named fields back into their positions and returns the row.
func (l Layout) Encode(rec Record) []string {
	row := rec.Cells
	row[l.CardNumber] = rec.CardNumber.String()
	row[l.Amount] = rec.Amount.String()
	row[l.Description] = rec.Description.String()
	row[l.Date] = rec.Date.String()
	row[l.Authorization] = rec.Authorization.String()
	return row
}
