// =============================================================================
// Card Export Formatter - Process Command
// =============================================================================
//
// This file defines the 'process' command, which cleans export files from
// the command line.
//
// COMMAND USAGE:
//   formatter process [flags]
//
// FLAGS:
//   --file      : Clean only this file instead of scanning the input directory
//   --out       : Output file (with --file) or output directory (without)
//   --format    : Output format, csv or xlsx (default: output.format)
//   --dry-run   : Clean and report, but write nothing
//
// PROCESSING PIPELINE:
//   1. Discover *.csv and *.xlsx files in the input directory (or take --file)
//   2. Clean each file in turn with the converter
//   3. Archive successful inputs when processing.archive_inputs is set
//   4. Print a summary and write it to the output directory
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-export-formatter/internal/converter"
	"github.com/ginjaninja78/card-export-formatter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun       bool
	filePath     string
	outPath      string
	outputFormat string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Clean export files from the input directory or a single file",
	Long: `The process command cleans card export files.

Without --file it scans the input directory for *.csv and *.xlsx files and
cleans them one after another. A failure in one file does not stop the
others; every failure is listed in the summary and the command exits non-zero.

On success:
  - The cleaned file is written to the output directory
  - The input is moved to the archive when processing.archive_inputs is set

A summary report is written to the output directory after each batch run.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), cmd.OutOrStdout())
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Clean and report without writing output files")
	processCmd.Flags().StringVar(&filePath, "file", "", "Clean only this file")
	processCmd.Flags().StringVar(&outPath, "out", "", "Output file with --file, output directory otherwise")
	processCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: csv or xlsx")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess cleans the selected files sequentially and reports the outcome.
func runProcess(ctx context.Context, out io.Writer) error {
	cfg := appConfig
	summary := utils.ProcessingSummary{StartTime: time.Now()}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.StagingDir, cfg.InputArchiveDir)
	files.UseTimestampSubdirs = true

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		found, err := files.DiscoverInputFiles()
		if err != nil {
			return err
		}
		inputFiles = found
	}

	if len(inputFiles) == 0 {
		fmt.Fprintf(out, "No *.csv or *.xlsx files found in %s\n", cfg.InputDir)
		return nil
	}

	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))
	summary.TotalFiles = len(inputFiles)

	// =========================================================================
	// STEP 2: CLEAN EACH FILE
	// =========================================================================

	conv := converter.New(cfg, converter.WithLogger(logger))

	var opts []converter.RunOption
	opts = append(opts, converter.WithDryRun(dryRun))
	if outputFormat != "" {
		opts = append(opts, converter.WithFormat(outputFormat))
	}
	switch {
	case outPath != "" && filePath != "":
		opts = append(opts, converter.WithOutputPath(outPath))
	case outPath != "":
		opts = append(opts, converter.WithOutputDir(outPath))
	}

	for _, input := range inputFiles {
		if ctx.Err() != nil {
			break
		}

		result := conv.Run(ctx, input, opts...)
		stats := result.Stats

		summary.RowsRead += stats.RowsRead
		summary.RowsWritten += stats.RowsWritten
		summary.DroppedRows += stats.DroppedInvalidCard + stats.DroppedPending

		if !result.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    input,
				ErrorMessage: result.Error.Error(),
				ErrorType:    converter.ErrorKind(result.Error),
			})
			fmt.Fprintf(out, "  ✗ %s: %v\n", filepath.Base(input), result.Error)
			continue
		}

		// =====================================================================
		// STEP 3: ARCHIVE
		// =====================================================================

		info := utils.ProcessedFileInfo{
			InputFile:          input,
			OutputFile:         result.OutputFile,
			RowsRead:           stats.RowsRead,
			RowsWritten:        stats.RowsWritten,
			DroppedInvalidCard: stats.DroppedInvalidCard,
			DroppedPending:     stats.DroppedPending,
			ProcessTime:        stats.ProcessingTime,
		}

		if cfg.Processing.ArchiveInputs && !dryRun {
			archived, err := files.ArchiveInputFile(input)
			if err != nil {
				logger.Warn().Err(err).Str("file", input).Msg("failed to archive input")
			}
			info.ArchivePath = archived
		}

		summary.SuccessfulFiles++
		summary.ProcessedFiles = append(summary.ProcessedFiles, info)

		target := result.OutputFile
		if dryRun {
			target = "(dry run)"
		}
		fmt.Fprintf(out, "  ✓ %s -> %s (%d of %d rows kept)\n",
			filepath.Base(input), target, stats.RowsWritten, stats.RowsRead)
	}

	// =========================================================================
	// STEP 4: SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Rows kept:       %d of %d\n", summary.RowsWritten, summary.RowsRead)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))

	if !dryRun {
		summaryPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to write summary log")
		} else {
			fmt.Fprintf(out, "Summary:         %s\n", summaryPath)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}
