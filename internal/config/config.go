// =============================================================================
// Card Export Formatter - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values come from three
// layers, later layers winning:
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. An optional YAML file (default: config.yaml)
//   3. Environment variables prefixed FORMATTER__, with "__" separating
//      nested keys, e.g. FORMATTER__SERVER__PORT=9090
//
// The column mapping and recoding rules are business rules and live in the
// converter package, not here.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "FORMATTER__"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by `formatter process` when no --file is given.
	// Default: "./input"
	InputDir string `koanf:"input_dir" yaml:"input_dir"`

	// OutputDir receives cleaned files written by the CLI.
	// Default: "./output"
	OutputDir string `koanf:"output_dir" yaml:"output_dir"`

	// StagingDir holds uploads and their results while a request is in
	// flight. Every file in it is named by a per-request UUID.
	// Default: "./staging"
	StagingDir string `koanf:"staging_dir" yaml:"staging_dir"`

	// InputArchiveDir receives processed input files when archiving is on.
	// Default: "./input_archive"
	InputArchiveDir string `koanf:"input_archive_dir" yaml:"input_archive_dir"`

	CSV        CSVSettings      `koanf:"csv" yaml:"csv"`
	Output     OutputSettings   `koanf:"output" yaml:"output"`
	Server     ServerConfig     `koanf:"server" yaml:"server"`
	Logging    LoggingConfig    `koanf:"logging" yaml:"logging"`
	Processing ProcessingConfig `koanf:"processing" yaml:"processing"`
}

// CSVSettings contains settings for reading and writing delimited text.
type CSVSettings struct {
	// Delimiter separates fields, for both input and output.
	// Accepts a single character or one of "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `koanf:"delimiter" yaml:"delimiter"`
}

// OutputSettings controls how cleaned files are named and encoded.
type OutputSettings struct {
	// NameFormat is the output file name pattern.
	// Placeholders: {uuid}, {timestamp}, {date}, {time}, {original}
	// Default: "{original}_cleaned_{uuid}"
	NameFormat string `koanf:"name_format" yaml:"name_format"`

	// Format is "csv" or "xlsx".
	// Default: "csv"
	Format string `koanf:"format" yaml:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host" yaml:"host"`
	Port            int      `koanf:"port" yaml:"port"`
	ReadTimeout     Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     Duration `koanf:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxUploadBytes caps the request body of an upload.
	// Default: 32 MiB
	MaxUploadBytes int64 `koanf:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level" yaml:"level"`

	// Format is "console" for humans or "json" for log shippers.
	Format string `koanf:"format" yaml:"format"`
}

// ProcessingConfig holds policy switches around the transform.
type ProcessingConfig struct {
	// RejectEmptyResult turns a cleaned file with zero data rows into an
	// error instead of an empty download.
	// Default: false
	RejectEmptyResult bool `koanf:"reject_empty_result" yaml:"reject_empty_result"`

	// ArchiveInputs moves CLI inputs to InputArchiveDir after success.
	// Default: false
	ArchiveInputs bool `koanf:"archive_inputs" yaml:"archive_inputs"`

	// StagingTTL is how long an orphaned staging file may live before the
	// server janitor removes it.
	// Default: 1h
	StagingTTL Duration `koanf:"staging_ttl" yaml:"staging_ttl"`
}

// Addr returns the server listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Comma returns the configured delimiter as a rune.
func (s CSVSettings) Comma() rune {
	switch strings.ToLower(s.Delimiter) {
	case "\\t", "tab":
		return '\t'
	case "pipe":
		return '|'
	case "semicolon":
		return ';'
	case "":
		return ','
	default:
		return []rune(s.Delimiter)[0]
	}
}

func (s CSVSettings) valid() bool {
	switch strings.ToLower(s.Delimiter) {
	case "\\t", "tab", "pipe", "semicolon":
		return true
	}
	r := []rune(s.Delimiter)
	return len(r) == 1 && r[0] != '"' && r[0] != '\r' && r[0] != '\n' && r[0] != utf8.RuneError
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// LoadMainConfig merges the YAML file at configPath (if it exists) with
// FORMATTER__ environment variables, applies defaults and validates.
//
// A missing file is not an error; every setting has a default.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var config MainConfig
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// envKey maps FORMATTER__SERVER__PORT to server__port; koanf then splits on "__".
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// Default returns a configuration with every default applied and no
// validation side effects. Used by tests and by `config show --defaults`.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.StagingDir == "" {
		config.StagingDir = "./staging"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}

	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ","
	}

	if config.Output.NameFormat == "" {
		config.Output.NameFormat = "{original}_cleaned_{uuid}"
	}
	if config.Output.Format == "" {
		config.Output.Format = "csv"
	}
	config.Output.Format = strings.ToLower(config.Output.Format)

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = Duration(30 * time.Second)
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = 32 << 20
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}

	if config.Processing.StagingTTL == 0 {
		config.Processing.StagingTTL = Duration(time.Hour)
	}
}

// validateMainConfig checks values and creates the working directories.
func validateMainConfig(config *MainConfig) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", config.Server.Port)
	}
	if config.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if !config.CSV.valid() {
		return fmt.Errorf("csv.delimiter %q must be a single character", config.CSV.Delimiter)
	}
	switch config.Output.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("output.format %q must be csv or xlsx", config.Output.Format)
	}

	dirs := []string{
		config.InputDir,
		config.OutputDir,
		config.StagingDir,
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
