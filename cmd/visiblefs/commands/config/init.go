package config

import (
	"fmt"

	"github.com/marmos91/visiblefs/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample visiblefs configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/visiblefs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  visiblefs config init

  # Initialize with custom path
  visiblefs config init --config /etc/visiblefs/config.yaml

  # Force overwrite existing config
  visiblefs config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Choose a store (store.type) and fill in its section")
	fmt.Fprintln(out, "  2. Check the file with: visiblefs config validate")
	fmt.Fprintln(out, "  3. Copy a file with: visiblefs put <local-file> <path>")

	return nil
}
