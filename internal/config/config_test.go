package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// useTempDirs points every working directory at dir so tests never create
// folders next to the package sources.
func useTempDirs(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("FORMATTER__INPUT_DIR", filepath.Join(dir, "in"))
	t.Setenv("FORMATTER__OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("FORMATTER__STAGING_DIR", filepath.Join(dir, "staging"))
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMainConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	useTempDirs(t, dir)

	cfg, err := LoadMainConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.CSV.Delimiter != "," {
		t.Errorf("CSV.Delimiter = %q, want %q", cfg.CSV.Delimiter, ",")
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "csv")
	}
	if cfg.Processing.StagingTTL.Std() != time.Hour {
		t.Errorf("Processing.StagingTTL = %s, want %s", cfg.Processing.StagingTTL, time.Hour)
	}
	if cfg.Processing.RejectEmptyResult {
		t.Error("Processing.RejectEmptyResult = true, want false")
	}

	for _, d := range []string{cfg.InputDir, cfg.OutputDir, cfg.StagingDir} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("directory %s not created: %v", d, err)
		}
	}
}

func TestLoadMainConfig_File(t *testing.T) {
	dir := t.TempDir()
	useTempDirs(t, dir)

	path := writeConfig(t, dir, `
csv:
  delimiter: ";"
output:
  format: XLSX
  name_format: "{date}_{uuid}"
server:
  port: 9090
  shutdown_timeout: 5s
processing:
  reject_empty_result: true
  staging_ttl: 10m
logging:
  level: debug
  format: json
`)

	cfg, err := LoadMainConfig(path)
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}

	if cfg.CSV.Comma() != ';' {
		t.Errorf("CSV.Comma() = %q, want %q", cfg.CSV.Comma(), ';')
	}
	if cfg.Output.Format != "xlsx" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "xlsx")
	}
	if cfg.Output.NameFormat != "{date}_{uuid}" {
		t.Errorf("Output.NameFormat = %q", cfg.Output.NameFormat)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Server.ShutdownTimeout.Std() != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %s, want 5s", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Processing.RejectEmptyResult {
		t.Error("Processing.RejectEmptyResult = false, want true")
	}
	if cfg.Processing.StagingTTL.Std() != 10*time.Minute {
		t.Errorf("Processing.StagingTTL = %s, want 10m", cfg.Processing.StagingTTL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadMainConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	useTempDirs(t, dir)

	path := writeConfig(t, dir, "server:\n  port: 9090\n")
	t.Setenv("FORMATTER__SERVER__PORT", "7070")
	t.Setenv("FORMATTER__PROCESSING__REJECT_EMPTY_RESULT", "true")

	cfg, err := LoadMainConfig(path)
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7070)
	}
	if !cfg.Processing.RejectEmptyResult {
		t.Error("Processing.RejectEmptyResult = false, want true")
	}
	if cfg.StagingDir != filepath.Join(dir, "staging") {
		t.Errorf("StagingDir = %q", cfg.StagingDir)
	}
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad format", "output:\n  format: xml\n", "output.format"},
		{"bad delimiter", "csv:\n  delimiter: \"ab\"\n", "csv.delimiter"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad duration", "processing:\n  staging_ttl: soon\n", "staging_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			useTempDirs(t, dir)

			_, err := LoadMainConfig(writeConfig(t, dir, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestCSVSettings_Comma(t *testing.T) {
	tests := []struct {
		delimiter string
		want      rune
	}{
		{",", ','},
		{"", ','},
		{"tab", '\t'},
		{"\\t", '\t'},
		{"PIPE", '|'},
		{"semicolon", ';'},
		{"|", '|'},
	}

	for _, tt := range tests {
		got := CSVSettings{Delimiter: tt.delimiter}.Comma()
		if got != tt.want {
			t.Errorf("Comma(%q) = %q, want %q", tt.delimiter, got, tt.want)
		}
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	cfg := Default()

	out, err := yaml.Marshal(cfg.Server)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	if !strings.Contains(string(out), "shutdown_timeout: 30s") {
		t.Errorf("expected human readable duration, got:\n%s", out)
	}
}
