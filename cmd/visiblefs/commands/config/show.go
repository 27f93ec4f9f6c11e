package config

import (
	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective visiblefs configuration: file values merged with
VISIBLEFS_* environment variables and defaults.

By default outputs YAML format. Use --output json for JSON.

Examples:
  # Show default config as YAML
  visiblefs config show

  # Show as JSON
  visiblefs config show --output json

  # Show specific config file
  visiblefs config show --config /etc/visiblefs/config.yaml`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	showOutput, _ := cmd.Flags().GetString("output")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
