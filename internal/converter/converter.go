// =============================================================================
// Card Export Formatter - Converter Module
// =============================================================================
//
// This module runs the cleaning pipeline for a single file, from loading to
// writing the cleaned output. The CLI and the HTTP server both call it.
//
// CONVERSION PIPELINE:
//   1. Load the input (CSV, or XLSX by extension)
//   2. Resolve the column layout (fails on missing source columns)
//   3. Clean the rows (see transformer.go)
//   4. Check the cleaned table
//   5. Apply the empty-result policy
//   6. Write the output under a fresh, UUID-based name
//
// CONCURRENCY:
//   A Converter holds no per-file state. One instance can serve concurrent
//   Run calls as long as each call has its own input and output path.
//
// =============================================================================

package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
	"github.com/ginjaninja78/card-export-formatter/internal/csvparser"
	"github.com/ginjaninja78/card-export-formatter/internal/logging"
	"github.com/ginjaninja78/card-export-formatter/internal/metrics"
	"github.com/ginjaninja78/card-export-formatter/internal/tablewriter"
	"github.com/ginjaninja78/card-export-formatter/internal/types"
	"github.com/ginjaninja78/card-export-formatter/internal/validation"
	"github.com/ginjaninja78/card-export-formatter/internal/xlsxparser"
	"github.com/ginjaninja78/card-export-formatter/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the cleaned file.
	// This is empty if processing failed or was a dry run.
	OutputFile string

	// Format is the output format, "csv" or "xlsx".
	Format string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	Stats

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter cleans files according to the application configuration.
type Converter struct {
	cfg         *config.MainConfig
	log         zerolog.Logger
	metrics     *metrics.Recorder
	transformer *Transformer
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Converter) {
		c.log = log
	}
}

// WithMetrics records every run in m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Converter) {
		c.metrics = m
	}
}

// New creates a Converter.
//
// PARAMETERS:
//   - cfg: The application configuration. Output directory, name format,
//     output format, CSV delimiter and the empty-result policy are read
//     from it.
//   - opts: Logger and metrics options.
func New(cfg *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transformer = NewTransformer(c.log)
	return c
}

// runOptions are per-call overrides.
type runOptions struct {
	outputDir    string
	outputPath   string
	format       string
	originalName string
	dryRun       bool
}

// RunOption overrides a setting for one Run call.
type RunOption func(*runOptions)

// WithOutputDir writes the output into dir instead of the configured
// output directory.
func WithOutputDir(dir string) RunOption {
	return func(o *runOptions) {
		o.outputDir = dir
	}
}

// WithOutputPath writes the output to exactly path. It takes precedence
// over WithOutputDir and the name format.
func WithOutputPath(path string) RunOption {
	return func(o *runOptions) {
		o.outputPath = path
	}
}

// WithFormat selects "csv" or "xlsx" output.
func WithFormat(format string) RunOption {
	return func(o *runOptions) {
		o.format = strings.ToLower(format)
	}
}

// WithOriginalName sets the name used for the {original} placeholder. The
// server passes the client's file name here since the staged path is a UUID.
func WithOriginalName(name string) RunOption {
	return func(o *runOptions) {
		o.originalName = name
	}
}

// WithDryRun cleans the file but writes nothing.
func WithDryRun(dryRun bool) RunOption {
	return func(o *runOptions) {
		o.dryRun = dryRun
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for the file at inputPath.
//
// RETURNS:
//   - A Result. Result.Error is a *csvparser.ParseError,
//     *validation.MissingColumnError, ErrEmptyResult, a *OutputError, or an
//     I/O error.
func (c *Converter) Run(ctx context.Context, inputPath string, opts ...RunOption) (result Result) {
	o := runOptions{
		outputDir: c.cfg.OutputDir,
		format:    c.cfg.Output.Format,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.originalName == "" {
		o.originalName = filepath.Base(inputPath)
	}

	startTime := time.Now()
	log := logging.WithFields(c.log, map[string]interface{}{
		"file":     inputPath,
		"original": o.originalName,
	})
	result = Result{FilePath: inputPath, Format: o.format}

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
		c.metrics.ObserveFile(result.Success, result.Stats.ProcessingTime)
	}()

	fail := func(err error) Result {
		result.Error = err
		log.Warn().Err(err).Str("kind", ErrorKind(err)).Msg("file rejected")
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 1: LOAD
	// =========================================================================

	table, err := c.load(inputPath)
	if err != nil {
		return fail(err)
	}
	log.Debug().Int("rows", table.RowCount()).Int("columns", len(table.Headers)).Msg("loaded")

	// =========================================================================
	// STEPS 2-3: LAYOUT AND CLEAN
	// =========================================================================

	cleaned, stats, err := c.transformer.Transform(table)
	result.Stats.Stats = stats
	if err != nil {
		return fail(err)
	}
	c.metrics.ObserveRows(stats.RowsWritten, stats.DroppedInvalidCard, stats.DroppedPending)

	// =========================================================================
	// STEP 4: CHECK OUTPUT
	// =========================================================================

	// Columns keep their positions, so the source layout locates them.
	layout, err := c.transformer.Layout(table.Headers)
	if err != nil {
		return fail(err)
	}
	if errs := validation.ValidateOutput(cleaned, layout); len(errs) > 0 {
		for _, ve := range errs {
			log.Error().Err(ve).Msg("cleaned row breaks output rules")
		}
		return fail(&OutputError{Errors: errs})
	}

	// =========================================================================
	// STEP 5: EMPTY RESULT POLICY
	// =========================================================================

	if stats.RowsWritten == 0 && c.cfg.Processing.RejectEmptyResult {
		return fail(ErrEmptyResult)
	}

	// =========================================================================
	// STEP 6: WRITE OUTPUT
	// =========================================================================

	if o.dryRun {
		result.Success = true
		log.Info().Int("rows_written", stats.RowsWritten).Msg("dry run complete")
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	outputPath := o.outputPath
	if outputPath == "" {
		name := utils.GenerateOutputFileName(
			c.cfg.Output.NameFormat,
			tablewriter.Extension(o.format),
			map[string]string{"original": utils.FileStem(o.originalName)},
		)
		outputPath = filepath.Join(o.outputDir, name)
	}

	if err := c.writeOutput(outputPath, cleaned, o.format); err != nil {
		return fail(err)
	}

	result.OutputFile = outputPath
	result.Success = true

	log.Info().
		Str("output", outputPath).
		Int("rows_read", stats.RowsRead).
		Int("rows_written", stats.RowsWritten).
		Int("dropped_card", stats.DroppedInvalidCard).
		Int("dropped_pending", stats.DroppedPending).
		Int("blanked_dates", stats.BlankedDates).
		Msg("file cleaned")

	return result
}

// Transform cleans delimited text held in memory and returns the cleaned
// delimited text. It does not read or write files.
func Transform(r io.Reader, settings config.CSVSettings) ([]byte, Stats, error) {
	table, err := csvparser.Parse(r, settings)
	if err != nil {
		return nil, Stats{}, err
	}

	cleaned, stats, err := NewTransformer(zerolog.Nop()).Transform(table)
	if err != nil {
		return nil, stats, err
	}

	var buf bytes.Buffer
	if err := tablewriter.WriteCSV(&buf, cleaned, settings); err != nil {
		return nil, stats, err
	}
	return buf.Bytes(), stats, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// load picks the parser by file extension.
func (c *Converter) load(path string) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsxparser.ParseFile(path)
	default:
		return csvparser.ParseFile(path, c.cfg.CSV)
	}
}

// writeOutput writes the table to a temporary file next to path and renames
// it into place, so a failed write never leaves a partial file at path.
func (c *Converter) writeOutput(path string, table *types.Table, format string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	err = tablewriter.Write(tmp, table, format, c.cfg.CSV)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrEmptyResult is returned when every row was filtered out and the
// configuration rejects empty results.
var ErrEmptyResult = errors.New("no rows left after cleaning")

// OutputError reports a cleaned table that breaks the output rules.
type OutputError struct {
	Errors []*validation.ValidationError
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("cleaned table failed %d check(s), first: %v", len(e.Errors), e.Errors[0])
}

// Error kinds reported by ErrorKind.
const (
	KindParse         = "parse"
	KindMissingColumn = "missing_column"
	KindEmptyResult   = "empty_result"
	KindOutput        = "output"
	KindCanceled      = "canceled"
	KindIO            = "io"
)

// ErrorKind classifies an error returned by Run or Transform.
func ErrorKind(err error) string {
	var (
		parseErr   *csvparser.ParseError
		missingErr *validation.MissingColumnError
		outputErr  *OutputError
	)

	switch {
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &missingErr):
		return KindMissingColumn
	case errors.Is(err, ErrEmptyResult):
		return KindEmptyResult
	case errors.As(err, &outputErr):
		return KindOutput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindIO
	}
}
