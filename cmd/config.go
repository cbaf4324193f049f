package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
)

// showDefaults prints built-in defaults instead of the effective config.
var showDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after the YAML file and FORMATTER__ environment
variables have been applied. With --defaults, print the built-in defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if showDefaults {
			cfg = config.Default()
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&showDefaults, "defaults", false, "Print built-in defaults")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
