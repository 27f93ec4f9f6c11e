package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/config"
	"github.com/spf13/cobra"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// newPrinter builds a printer for the command's output stream in the format
// selected by --output. Color is enabled only on a terminal.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok {
		color = logger.IsTerminal(f)
	}
	return output.NewPrinter(out, format, color), nil
}

func getConfigSource(path string) string {
	if path != "" {
		return path
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
