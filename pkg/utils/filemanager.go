// =============================================================================
// Card Export Formatter - File Manager Utility
// =============================================================================
//
// This module provides the file handling around the transform:
//   - Staging uploads under a per-request UUID
//   - Output file naming
//   - Input discovery and archival for batch runs
//   - Removal of stale staging files
//   - Processing summary logs
//
// ISOLATION:
//   Every staged upload and every generated output name carries a fresh
//   UUID, so two requests in flight never share a path.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the formatter.
type FileManager struct {
	// InputDir is scanned by batch runs.
	InputDir string

	// OutputDir receives cleaned files from batch runs.
	OutputDir string

	// StagingDir holds uploads while they are processed.
	StagingDir string

	// InputArchiveDir receives processed inputs.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/export.csv
	UseTimestampSubdirs bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, stagingDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		StagingDir:      stagingDir,
		InputArchiveDir: inputArchiveDir,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.InputDir,
		fm.OutputDir,
		fm.StagingDir,
		fm.InputArchiveDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// STAGING
// =============================================================================

// StagedFile is an upload copied into the staging directory.
type StagedFile struct {
	// ID is the UUID naming the staged file.
	ID string

	// Path is the staged file location: <staging>/<ID><ext>.
	Path string

	// OriginalName is the client-supplied file name, base name only.
	OriginalName string

	// Size is the number of bytes staged.
	Size int64
}

// Stage copies r into a new file in the staging directory.
//
// PARAMETERS:
//   - r: The upload body.
//   - originalName: The client's file name. Only its extension is used in
//     the staged path.
//
// RETURNS:
//   - The staged file. The caller removes it when done.
//   - An error if the file cannot be created or written; nothing is left
//     behind in that case.
func (fm *FileManager) Stage(r io.Reader, originalName string) (*StagedFile, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(fm.StagingDir, id+ext)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	n, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	return &StagedFile{
		ID:           id,
		Path:         path,
		OriginalName: filepath.Base(originalName),
		Size:         n,
	}, nil
}

// Remove deletes the staged file. A missing file is not an error.
func (s *StagedFile) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CleanOldFiles removes regular files directly inside dir whose modification
// time is older than maxAge.
//
// RETURNS:
//   - The number of files removed.
//   - An error if the directory cannot be read or a file cannot be removed.
func CleanOldFiles(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
			removed++
		}
	}

	return removed, nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files in the input directory matching any of
// the glob patterns, sorted by name.
//
// PARAMETERS:
//   - patterns: Glob patterns such as "*.csv". If none are given, defaults
//     to "*.csv" and "*.xlsx".
//
// RETURNS:
//   - A slice of file paths.
//   - An error if a pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.csv", "*.xlsx"}
	}

	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			info, err := os.Stat(file)
			if err != nil || info.IsDir() {
				continue
			}
			seen[file] = true
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a processed input into the archive directory. An
// archived file of the same name is never overwritten; the new one gets a
// short UUID prefix instead.
//
// RETURNS:
//   - Where the file ended up.
//   - An error if the move fails; the input is left in place.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	dir := fm.InputArchiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(dir, filepath.FromSlash(time.Now().Format("2006/01/02")))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := filepath.Base(filePath)
	archivePath := filepath.Join(dir, name)
	if FileExists(archivePath) {
		archivePath = filepath.Join(dir, uuid.New().String()[:8]+"_"+name)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; copy, then drop the original.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName builds a file name from a pattern.
//
// PARAMETERS:
//   - format: The pattern. Placeholders:
//       {uuid}      - A random UUID
//       {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//       {date}      - Current date (YYYYMMDD)
//       {time}      - Current time (HHMMSS)
//       {original}  - Original file name without extension (from params)
//   - ext: The extension to enforce, including the dot (".csv").
//   - params: Extra placeholder values, keyed without braces.
//
// EXAMPLE:
//   format: "{original}_cleaned_{uuid}"
//   params: {"original": "march"}
//   output: "march_cleaned_a1b2c3d4-e5f6-7890-abcd-ef1234567890.csv"
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}

	return result
}

// FileStem returns the base name of path without its extension, reduced to
// characters that are safe in a file name and a Content-Disposition header.
// An empty result becomes "export".
func FileStem(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	stem = strings.Trim(b.String(), " .")
	if stem == "" {
		return "export"
	}
	return stem
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	RowsRead        int
	RowsWritten     int
	DroppedRows     int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile          string
	OutputFile         string
	ArchivePath        string
	RowsRead           int
	RowsWritten        int
	DroppedInvalidCard int
	DroppedPending     int
	ProcessTime        time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes a processing summary to a text file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", time.Now().Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rule := strings.Repeat("=", 80) + "\n"

	fmt.Fprintf(w, "Card Export Formatter - Processing Summary\n%s\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Start Time:     %s\n", summary.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", summary.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n\n", summary.EndTime.Sub(summary.StartTime))
	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Total Files:    %d\n", summary.TotalFiles)
	fmt.Fprintf(w, "  Successful:     %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(w, "  Failed:         %d\n", summary.FailedFiles)
	fmt.Fprintf(w, "  Rows Read:      %d\n", summary.RowsRead)
	fmt.Fprintf(w, "  Rows Written:   %d\n", summary.RowsWritten)
	fmt.Fprintf(w, "  Rows Dropped:   %d\n\n", summary.DroppedRows)

	if len(summary.ProcessedFiles) > 0 {
		fmt.Fprintf(w, "Successful Files:\n%s", strings.Repeat("-", 80)+"\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(w, "  Output:       %s\n", pf.OutputFile)
			if pf.ArchivePath != "" {
				fmt.Fprintf(w, "  Archived:     %s\n", pf.ArchivePath)
			}
			fmt.Fprintf(w, "  Rows:         %d read, %d written\n", pf.RowsRead, pf.RowsWritten)
			fmt.Fprintf(w, "  Dropped:      %d invalid card, %d pending\n", pf.DroppedInvalidCard, pf.DroppedPending)
			fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime)
		}
	}

	if len(summary.FailedFilesList) > 0 {
		fmt.Fprintf(w, "Failed Files:\n%s", strings.Repeat("-", 80)+"\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			if ff.ErrorType != "" {
				fmt.Fprintf(w, "  Type:  %s\n", ff.ErrorType)
			}
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	fmt.Fprintf(w, "%sEnd of Summary\n", rule)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
