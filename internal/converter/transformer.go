// =============================================================================
// Card Export Formatter - Row Transformer
// =============================================================================
//
// This module cleans one loaded export. The steps run in this exact order,
// and every step after the rename refers to columns by their new names:
//
//   1. Rename the five source columns in one simultaneous substitution
//   2. Card number: keep digits only; drop the row unless 16 remain
//   3. Amount: keep digits and '.' only; never drops the row
//   4. Date: best-effort parse, written as DD/MM/YYYY; unparseable -> empty
//   5. Authorization: lower-case, drop rows containing "pending", then apply
//      each recode rule in turn to the current value
//
// Surviving rows keep their relative order and every column keeps its
// position. Dropped rows are counted in Stats, never reported as errors.
//
// =============================================================================

package converter

import (
	"errors"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/card-export-formatter/internal/types"
	"github.com/ginjaninja78/card-export-formatter/internal/validation"
)

// DateLayout is the output layout of the Date column (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// PendingMarker marks an authorization status whose row is removed.
const PendingMarker = "pending"

// missingText is what a null cell reads as once coerced to text.
const missingText = "nan"

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// Output names of the five business columns.
const (
	ColumnCardNumber    = "Card number"
	ColumnAmount        = "Amount"
	ColumnDescription   = "Description"
	ColumnDate          = "Date"
	ColumnAuthorization = "Authorization"
)

// ColumnRename renames one source column.
type ColumnRename struct {
	Source string
	Target string
}

// ColumnMapping is a set of renames applied together.
type ColumnMapping []ColumnRename

// DefaultMapping is the rename table for card transaction exports.
//
// "Authorization" appears on both sides: the source Authorization column
// holds the amount, and the new Authorization column is the old Status.
var DefaultMapping = ColumnMapping{
	{Source: "Virtual Card", Target: ColumnCardNumber},
	{Source: "Authorization", Target: ColumnAmount},
	{Source: "Merchant", Target: ColumnDescription},
	{Source: "Auth Time", Target: ColumnDate},
	{Source: "Status", Target: ColumnAuthorization},
}

// Sources returns the source column names in mapping order.
func (m ColumnMapping) Sources() []string {
	names := make([]string, len(m))
	for i, r := range m {
		names[i] = r.Source
	}
	return names
}

// Apply returns a renamed copy of headers. Every header is looked up in the
// original names only, so a rename never feeds into another one.
//
// Headers that are already renamed (every target present, no source-only
// name left) are returned unchanged, which makes Apply idempotent.
func (m ColumnMapping) Apply(headers []string) []string {
	out := make([]string, len(headers))
	copy(out, headers)

	if m.Renamed(headers) {
		return out
	}

	targets := make(map[string]string, len(m))
	for _, r := range m {
		targets[r.Source] = r.Target
	}
	for i, h := range headers {
		if target, ok := targets[h]; ok {
			out[i] = target
		}
	}
	return out
}

// Renamed reports whether headers already carry the mapping's target names.
func (m ColumnMapping) Renamed(headers []string) bool {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	isTarget := make(map[string]bool, len(m))
	for _, r := range m {
		isTarget[r.Target] = true
		if !present[r.Target] {
			return false
		}
	}
	for _, r := range m {
		if !isTarget[r.Source] && present[r.Source] {
			return false
		}
	}
	return true
}

// =============================================================================
// AUTHORIZATION RECODING
// =============================================================================

// RecodeRule replaces an authorization status containing a substring.
type RecodeRule struct {
	Contains    string
	Replacement string
}

// DefaultRecodeRules are applied in order, each to the output of the previous
// one. A value matching no rule keeps its lower-cased text.
var DefaultRecodeRules = []RecodeRule{
	{Contains: "settled", Replacement: "refund"},
	{Contains: "declined", Replacement: "declined"},
	{Contains: "authorized", Replacement: "authorized"},
}

// Recode lower-cases a status and runs every rule over it. There is no
// first-match stop: a later rule sees the replacement made by an earlier one.
func Recode(status string, rules []RecodeRule) string {
	value := strings.ToLower(status)
	for _, rule := range rules {
		if strings.Contains(value, rule.Contains) {
			value = rule.Replacement
		}
	}
	return value
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// DropReason says why a row was removed.
type DropReason int

const (
	// Keep means the row survives.
	Keep DropReason = iota

	// DropInvalidCard means the card number is not 16 digits.
	DropInvalidCard

	// DropPending means the authorization status contains "pending".
	DropPending
)

func (r DropReason) String() string {
	switch r {
	case DropInvalidCard:
		return "invalid_card"
	case DropPending:
		return "pending"
	default:
		return "kept"
	}
}

// Stats counts what happened to the rows of one table.
type Stats struct {
	RowsRead           int
	RowsWritten        int
	DroppedInvalidCard int
	DroppedPending     int

	// BlankedDates counts non-empty dates that could not be parsed.
	BlankedDates int
}

// Transformer cleans tables. The zero value is not usable; use NewTransformer.
type Transformer struct {
	Mapping ColumnMapping
	Rules   []RecodeRule

	log zerolog.Logger
}

// NewTransformer creates a Transformer with the default mapping and rules.
func NewTransformer(log zerolog.Logger) *Transformer {
	return &Transformer{
		Mapping: DefaultMapping,
		Rules:   DefaultRecodeRules,
		log:     log,
	}
}

// Layout resolves where each business column sits in a table with the given
// headers. It fails with a *validation.MissingColumnError when any source
// column is absent.
func (t *Transformer) Layout(headers []string) (types.Layout, error) {
	if err := validation.RequireColumns(headers, t.Mapping.Sources()); err != nil {
		return types.Layout{}, err
	}

	index := func(name string) int {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}

	layout := types.Layout{Headers: t.Mapping.Apply(headers)}
	for _, r := range t.Mapping {
		pos := index(r.Source)
		switch r.Target {
		case ColumnCardNumber:
			layout.CardNumber = pos
		case ColumnAmount:
			layout.Amount = pos
		case ColumnDescription:
			layout.Description = pos
		case ColumnDate:
			layout.Date = pos
		case ColumnAuthorization:
			layout.Authorization = pos
		}
	}
	return layout, nil
}

// Transform returns the cleaned copy of table. The input table is not
// modified.
//
// PARAMETERS:
//   - table: A loaded export with the five source columns.
//
// RETURNS:
//   - The cleaned table; it may have zero rows.
//   - Row counts per outcome.
//   - A *validation.MissingColumnError if a source column is absent.
func (t *Transformer) Transform(table *types.Table) (*types.Table, Stats, error) {
	stats := Stats{RowsRead: table.RowCount()}

	layout, err := t.Layout(table.Headers)
	if err != nil {
		var mcErr *validation.MissingColumnError
		if errors.As(err, &mcErr) {
			mcErr.Source = table.SourceFile
		}
		return nil, stats, err
	}

	out := &types.Table{
		Headers:    layout.Headers,
		Rows:       make([][]string, 0, table.RowCount()),
		SourceFile: table.SourceFile,
	}

	for i, row := range table.Rows {
		// Line 1 is the header.
		rec := layout.Decode(row, i+2)

		reason, blanked := t.Clean(&rec)
		if blanked {
			stats.BlankedDates++
		}

		switch reason {
		case DropInvalidCard:
			stats.DroppedInvalidCard++
		case DropPending:
			stats.DroppedPending++
		}
		if reason != Keep {
			t.log.Debug().
				Int("line", rec.Line).
				Stringer("reason", reason).
				Msg("row dropped")
			continue
		}

		out.Rows = append(out.Rows, layout.Encode(rec))
	}

	stats.RowsWritten = out.RowCount()
	return out, stats, nil
}

// Clean applies steps 2 to 5 to one record in place. It returns why the row
// must be dropped (Keep if it survives) and whether a non-empty date was
// blanked on a surviving row.
func (t *Transformer) Clean(rec *types.Record) (DropReason, bool) {
	card := keepOnly(textOf(rec.CardNumber), isDigit)
	if !validation.IsCardNumber(card) {
		return DropInvalidCard, false
	}
	rec.CardNumber = types.NewField(card)

	rec.Amount = types.Field{Value: keepOnly(textOf(rec.Amount), isAmountChar), Valid: true}

	blanked := false
	if rec.Date.Valid {
		rec.Date = formatDate(rec.Date.Value)
		blanked = !rec.Date.Valid
	}

	if rec.Authorization.Valid {
		status := strings.ToLower(rec.Authorization.Value)
		if strings.Contains(status, PendingMarker) {
			return DropPending, false
		}
		rec.Authorization = types.Field{Value: Recode(status, t.Rules), Valid: true}
	}

	return Keep, blanked
}

// Parsed dates outside this year range are treated as unparseable. It is the
// span a nanosecond timestamp can hold.
const (
	minDateYear = 1678
	maxDateYear = 2262
)

// formatDate parses common textual date layouts. Month-first is assumed for
// ambiguous numeric dates such as 07/04/2023; a date that only reads as
// day-first, such as 31/12/2023, is parsed day-first.
func formatDate(value string) types.Field {
	parsed, err := dateparse.ParseAny(strings.TrimSpace(value), dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return types.Null()
	}
	if y := parsed.Year(); y < minDateYear || y > maxDateYear {
		return types.Null()
	}
	return types.Field{Value: parsed.Format(DateLayout), Valid: true}
}

// textOf coerces a field to text the way the card and amount steps expect.
func textOf(f types.Field) string {
	if !f.Valid {
		return missingText
	}
	return f.Value
}

func keepOnly(s string, keep func(byte) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if keep(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAmountChar(c byte) bool {
	return isDigit(c) || c == '.'
}
