package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
)

const goodExport = "Virtual Card,Authorization,Merchant,Auth Time,Status\n" +
	"4111 1111 1111 1111,$12.50,ACME,2023-07-04,Authorized\n"

// setupProcess points the package globals at a fresh temp tree.
func setupProcess(t *testing.T) *config.MainConfig {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.StagingDir = filepath.Join(root, "staging")
	cfg.InputArchiveDir = filepath.Join(root, "archive")
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	appConfig = cfg
	logger = zerolog.Nop()
	t.Cleanup(func() {
		appConfig = nil
		dryRun, filePath, outPath, outputFormat = false, "", "", ""
	})
	return cfg
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProcess_Batch(t *testing.T) {
	cfg := setupProcess(t)
	cfg.Processing.ArchiveInputs = true
	writeInput(t, cfg.InputDir, "good.csv", goodExport)
	writeInput(t, cfg.InputDir, "bad.csv", "Virtual Card\n4111111111111111\n")

	var out bytes.Buffer
	err := runProcess(context.Background(), &out)

	if err == nil || !strings.Contains(err.Error(), "1 of 2 file(s) failed") {
		t.Fatalf("runProcess() error = %v, want one failure", err)
	}
	if !strings.Contains(out.String(), "✓ good.csv") || !strings.Contains(out.String(), "✗ bad.csv") {
		t.Errorf("unexpected report:\n%s", out.String())
	}

	cleaned, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "good_cleaned_*.csv"))
	if len(cleaned) != 1 {
		t.Fatalf("cleaned outputs = %v, want 1", cleaned)
	}
	got, err := os.ReadFile(cleaned[0])
	if err != nil {
		t.Fatal(err)
	}
	want := "Card number,Amount,Description,Date,Authorization\n" +
		"4111111111111111,12.50,ACME,04/07/2023,authorized\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	summaries, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "processing_summary_*.txt"))
	if len(summaries) != 1 {
		t.Errorf("summary logs = %v, want 1", summaries)
	}

	if _, err := os.Stat(filepath.Join(cfg.InputDir, "good.csv")); !os.IsNotExist(err) {
		t.Error("good.csv was not archived")
	}
	if _, err := os.Stat(filepath.Join(cfg.InputDir, "bad.csv")); err != nil {
		t.Error("bad.csv should stay in the input directory")
	}
}

func TestRunProcess_SingleFile(t *testing.T) {
	cfg := setupProcess(t)
	filePath = writeInput(t, t.TempDir(), "march.csv", goodExport)
	outPath = filepath.Join(cfg.OutputDir, "march.xlsx")
	outputFormat = "xlsx"

	var out bytes.Buffer
	if err := runProcess(context.Background(), &out); err != nil {
		t.Fatalf("runProcess() error = %v\n%s", err, out.String())
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output not written to --out: %v", err)
	}
}

func TestRunProcess_DryRun(t *testing.T) {
	cfg := setupProcess(t)
	writeInput(t, cfg.InputDir, "good.csv", goodExport)
	dryRun = true

	var out bytes.Buffer
	if err := runProcess(context.Background(), &out); err != nil {
		t.Fatalf("runProcess() error = %v", err)
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run wrote %d file(s)", len(entries))
	}
	if !strings.Contains(out.String(), "(dry run)") {
		t.Errorf("report does not mention dry run:\n%s", out.String())
	}
}

func TestRunProcess_NoInputs(t *testing.T) {
	setupProcess(t)

	var out bytes.Buffer
	if err := runProcess(context.Background(), &out); err != nil {
		t.Fatalf("runProcess() error = %v", err)
	}
	if !strings.Contains(out.String(), "No *.csv or *.xlsx files found") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestConfigShow(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.yaml")
	yamlBody := "input_dir: " + filepath.Join(root, "in") + "\n" +
		"output_dir: " + filepath.Join(root, "out") + "\n" +
		"staging_dir: " + filepath.Join(root, "staging") + "\n" +
		"server:\n  port: 9191\n"
	if err := os.WriteFile(cfgPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cfgFile = "config.yaml" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "show", "--config", cfgPath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"port: 9191", "shutdown_timeout: 30s", "format: csv"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config show output missing %q:\n%s", want, out.String())
		}
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Version:    "+Version) {
		t.Errorf("unexpected version output:\n%s", out.String())
	}
}
