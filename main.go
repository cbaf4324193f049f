// =============================================================================
// Card Export Formatter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the card export formatter. It hands
// control to the Cobra CLI defined in the cmd package.
//
// USAGE:
//   formatter process       - Clean one export file or every file in the input directory
//   formatter serve         - Run the HTTP upload server
//   formatter config show   - Print the effective configuration
//   formatter version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Loaders, the row transformer, writers, web server
//   - pkg/           : Shared file staging utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/card-export-formatter/cmd"
)

func main() {
	cmd.Execute()
}
