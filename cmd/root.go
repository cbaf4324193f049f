// =============================================================================
// Card Export Formatter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// hangs off it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (formatter)
//   ├── processCmd (formatter process)
//   ├── serveCmd   (formatter serve)
//   ├── configCmd  (formatter config show)
//   └── versionCmd (formatter version)
//
// The root command loads the configuration and builds the logger before any
// subcommand runs; subcommands read them from appConfig and logger.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
	"github.com/ginjaninja78/card-export-formatter/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging regardless of logging.level.
var verbose bool

// appConfig and logger are set by loadConfig before any subcommand runs.
var (
	appConfig *config.MainConfig
	logger    zerolog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "formatter",
	Short: "Card Export Formatter - clean card transaction exports for import",
	Long: `Card Export Formatter turns raw card transaction exports into a clean,
normalized table.

For every file it:
  - renames the source columns to Card number, Amount, Description, Date
    and Authorization
  - keeps only rows whose card number has exactly 16 digits
  - strips amounts down to digits and dots
  - rewrites dates as DD/MM/YYYY
  - drops pending authorizations and normalizes the rest

Example Usage:
  formatter process                          # Clean every file in the input directory
  formatter process --file march.csv         # Clean one file
  formatter serve                            # Start the upload server
  formatter config show --config ./my.yaml   # Print the effective configuration`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main(). SIGINT and
// SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the logger.
func loadConfig() error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	appConfig = cfg
	logger = logging.New(level, cfg.Logging.Format)
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file; a missing file means defaults",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
