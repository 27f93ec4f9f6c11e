package commands

import (
	"context"

	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:     "ls [prefix]",
	Aliases: []string{"list"},
	Short:   "List committed files",
	Long: `List files recorded in the catalog, optionally filtered by path prefix.

Examples:
  # List everything
  visiblefs ls

  # List one partition as JSON
  visiblefs ls reports/2024/ -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		entries, err := s.fs.List(ctx, prefix)
		if err != nil {
			return err
		}
		return s.printer.Print(output.EntryList(entries))
	})
}
