package csvparser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
)

var comma = config.CSVSettings{Delimiter: ","}

func TestParse(t *testing.T) {
	input := "Virtual Card,Authorization,Merchant\n" +
		"4111111111111111,12.50,ACME Ltd\n" +
		"\n" +
		"4222222222222222, 3.00 ,\"Shop, Inc\"\n"

	table, err := Parse(strings.NewReader(input), comma)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantHeaders := []string{"Virtual Card", "Authorization", "Merchant"}
	if diff := cmp.Diff(wantHeaders, table.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}

	wantRows := [][]string{
		{"4111111111111111", "12.50", "ACME Ltd"},
		{"4222222222222222", " 3.00 ", "Shop, Inc"},
	}
	if diff := cmp.Diff(wantRows, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Delimiter(t *testing.T) {
	input := "a;b\n1;2\n"

	table, err := Parse(strings.NewReader(input), config.CSVSettings{Delimiter: "semicolon"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff([][]string{{"1", "2"}}, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_BOMAndHeaderCleanup(t *testing.T) {
	input := "\xEF\xBB\xBF Virtual Card ,,Status\n1,2,3\n"

	table, err := Parse(strings.NewReader(input), comma)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"Virtual Card", "Unnamed: 1", "Status"}
	if diff := cmp.Diff(want, table.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ShortRowsPadded(t *testing.T) {
	input := "a,b,c\n1\n1,2\n"

	table, err := Parse(strings.NewReader(input), comma)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := [][]string{{"1", "", ""}, {"1", "2", ""}}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	table, err := Parse(strings.NewReader("a,b\n"), comma)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.RowCount() != 0 {
		t.Errorf("RowCount() = %d, want 0", table.RowCount())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"empty input", "", 0},
		{"blank header", " , \n1,2\n", 1},
		{"too many fields", "a,b\n1,2\n1,2,3\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), comma)
			if err == nil {
				t.Fatal("expected error")
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %T, want *ParseError", err)
			}
			if tt.wantLine > 0 && perr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", perr.Line, tt.wantLine)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := ParseFile(path, comma)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if table.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", table.SourceFile, path)
	}
}

func TestParseFile_ErrorNamesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseFile(path, comma)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if perr.Source != path {
		t.Errorf("Source = %q, want %q", perr.Source, path)
	}
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader in chain, got %v", err)
	}
}
