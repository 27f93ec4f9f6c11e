package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/visiblefs/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file",
	Long: `Delete a file from the store and its entry from the catalog.

Examples:
  visiblefs rm reports/2024/report.csv
  visiblefs rm reports/2024/report.csv --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation")
}

func runRm(cmd *cobra.Command, args []string) error {
	path := args[0]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s", path), rmForce)
	if err != nil {
		return err
	}
	if !ok {
		return prompt.ErrAborted
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.fs.Delete(ctx, path); err != nil {
			return err
		}
		s.printer.Success(fmt.Sprintf("Deleted %s", path))
		return nil
	})
}
