package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show a committed file",
	Long: `Show the catalog entry of a committed file and whether the store
currently reports it as visible.

Examples:
  visiblefs stat reports/2024/report.csv
  visiblefs stat reports/2024/report.csv -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	path := args[0]

	return withSession(cmd, func(ctx context.Context, s *session) error {
		entry, err := s.fs.Stat(ctx, path)
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%s: not committed", path)
		}
		if err != nil {
			return err
		}

		visible, err := s.fs.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("check %s: %w", path, err)
		}
		return s.printer.Print(output.EntryDetail{Entry: *entry, Visible: visible})
	})
}
