// =============================================================================
// Card Export Formatter - Validation Module
// =============================================================================
//
// This module holds the checks that surround the row transform:
//   - Before: every source column the transform needs must be present
//     (MissingColumnError)
//   - Per row: the card number rule (IsCardNumber)
//   - After: the cleaned table is checked against the guarantees callers
//     rely on (ValidateOutput)
//
// A dropped row is not a validation error. Rows that fail the card number or
// pending rules are filtered by the transform and only counted.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/card-export-formatter/internal/types"
)

// CardNumberLength is the digit count of a valid card number.
const CardNumberLength = 16

// =============================================================================
// MISSING COLUMNS
// =============================================================================

// MissingColumnError reports source columns absent from a loaded table.
type MissingColumnError struct {
	// Missing lists the absent column names in the order they were required.
	Missing []string

	// Source names the input, if known.
	Source string
}

func (e *MissingColumnError) Error() string {
	msg := fmt.Sprintf("missing required column(s): %s", strings.Join(e.Missing, ", "))
	if e.Source != "" {
		msg += " in " + e.Source
	}
	return msg
}

// RequireColumns returns a *MissingColumnError naming every entry of required
// that is not in headers, or nil.
func RequireColumns(headers, required []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var missing []string
	for _, name := range required {
		if !present[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnError{Missing: missing}
	}
	return nil
}

// =============================================================================
// FIELD RULES
// =============================================================================

// IsCardNumber reports whether s is exactly CardNumberLength ASCII digits.
func IsCardNumber(s string) bool {
	if len(s) != CardNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// OUTPUT VALIDATION
// =============================================================================

// ValidationError describes one cell of a cleaned table that breaks a rule.
type ValidationError struct {
	// Row is the 1-based data row index in the cleaned table.
	Row int

	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, field %q, value %q: %s", e.Row, e.Field, e.Value, e.Message)
}

// ValidateOutput checks a cleaned table.
//
// PARAMETERS:
//   - table: The cleaned table.
//   - layout: Where the business columns sit. Positions are used rather than
//     names, since a pass-through column may share an output name.
//
// RETURNS:
//   - One ValidationError per offending cell; empty when the table is clean.
//
// RULES:
//   - Every card number is exactly 16 ASCII digits
//   - No authorization status contains "pending"
func ValidateOutput(table *types.Table, layout types.Layout) []*ValidationError {
	var errs []*ValidationError

	card, auth := layout.CardNumber, layout.Authorization
	width := len(table.Headers)
	if card >= width || auth >= width {
		return []*ValidationError{{Message: "layout does not match the table width"}}
	}

	for i, row := range table.Rows {
		if card >= 0 && !IsCardNumber(row[card]) {
			errs = append(errs, &ValidationError{
				Row:     i + 1,
				Field:   table.Headers[card],
				Value:   row[card],
				Message: fmt.Sprintf("must be exactly %d digits", CardNumberLength),
			})
		}
		if auth >= 0 && strings.Contains(row[auth], "pending") {
			errs = append(errs, &ValidationError{
				Row:     i + 1,
				Field:   table.Headers[auth],
				Value:   row[auth],
				Message: "pending rows must be removed",
			})
		}
	}

	return errs
}
