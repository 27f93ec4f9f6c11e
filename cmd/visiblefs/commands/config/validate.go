package config

import (
	"fmt"

	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/config"
	"github.com/marmos91/visiblefs/pkg/storage"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the visiblefs configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  visiblefs config validate

  # Validate specific config file
  visiblefs config validate --config /etc/visiblefs/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nConfiguration summary:\n")
	fmt.Fprintf(out, "  Store type:      %s\n", cfg.Store.Type)
	fmt.Fprintf(out, "  Catalog type:    %s\n", cfg.Catalog.Type)
	fmt.Fprintf(out, "  Consistency:     %t (timeout %s)\n", cfg.Consistency.Enabled, cfg.Consistency.Timeout)
	fmt.Fprintf(out, "  Copy buffer:     %s\n", cfg.Copy.BufferSize)
	fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

// configWarnings reports settings that are valid but probably unintended.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if !cfg.Consistency.Enabled {
		warnings = append(warnings, "consistency disabled - files are reported committed without a visibility check")
	}
	if cfg.Store.Type == storage.TypeMemory && cfg.Catalog.Type == catalog.TypeBadger {
		warnings = append(warnings, "memory store with a persistent catalog - catalog entries outlive the stored files")
	}
	if cfg.Store.Type == storage.TypeS3 && cfg.Store.S3.AccessKeyID == "" {
		warnings = append(warnings, "no S3 access key configured - using the default AWS credential chain")
	}
	if cfg.Store.Type == storage.TypeMemory && cfg.Store.Memory.VisibilityLag >= cfg.Consistency.Timeout {
		warnings = append(warnings, "memory visibility lag is not shorter than consistency.timeout - every close will time out")
	}

	return warnings
}
