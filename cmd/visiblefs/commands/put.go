package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/internal/cli/prompt"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/storage/sizeaware"
	"github.com/spf13/cobra"
)

var putForce bool

var putCmd = &cobra.Command{
	Use:   "put <local-file> <path>",
	Short: "Copy a local file into the store",
	Long: `Copy a local file into the configured store.

The command returns only after the file is visible to readers of the store,
or fails once consistency.timeout elapses. Successful copies are recorded in
the catalog.

Examples:
  # Copy a file
  visiblefs put ./report.csv reports/2024/report.csv

  # Overwrite without asking
  visiblefs put ./report.csv reports/2024/report.csv --force`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putForce, "force", "f", false, "Overwrite an existing file without confirmation")
}

// putResult is the json/yaml view of a completed copy.
type putResult struct {
	Path       string  `json:"path" yaml:"path"`
	Bytes      int64   `json:"bytes" yaml:"bytes"`
	DurationMs float64 `json:"duration_ms" yaml:"duration_ms"`
	Store      string  `json:"store" yaml:"store"`
}

func runPut(cmd *cobra.Command, args []string) error {
	local, dst := args[0], args[1]

	src, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer src.Close()

	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := confirmOverwrite(ctx, s, dst); err != nil {
			return err
		}

		start := time.Now()
		n, err := copyToStore(ctx, s, src, dst)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		logger.Debug("File committed", logger.Path(dst), logger.BytesWritten(n), logger.DurationMs(start))

		if s.printer.Format() != output.FormatTable {
			return s.printer.Print(putResult{
				Path:       dst,
				Bytes:      n,
				DurationMs: float64(elapsed.Microseconds()) / 1000,
				Store:      s.fs.StoreType(),
			})
		}

		s.printer.Success(fmt.Sprintf("Wrote %s (%s bytes) to %s in %s",
			humanize.IBytes(uint64(n)), humanize.Comma(n), dst, elapsed.Round(time.Millisecond)))
		return nil
	})
}

func confirmOverwrite(ctx context.Context, s *session, dst string) error {
	exists, err := s.fs.Exists(ctx, dst)
	if err != nil {
		return fmt.Errorf("check %s: %w", dst, err)
	}
	if !exists {
		return nil
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("%s already exists. Overwrite", dst), putForce)
	if err != nil {
		return err
	}
	if !ok {
		return prompt.ErrAborted
	}
	return nil
}

// copyToStore streams src into dst and returns the committed size. On a
// copy failure the writer is aborted so the partial file is never committed.
func copyToStore(ctx context.Context, s *session, src io.Reader, dst string) (int64, error) {
	w, err := s.fs.Create(ctx, dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	buf := make([]byte, int(s.cfg.Copy.BufferSize))
	// Hide WriterTo/ReaderFrom so the configured buffer is used.
	if _, err := io.CopyBuffer(struct{ io.Writer }{w}, struct{ io.Reader }{src}, buf); err != nil {
		err = fmt.Errorf("copy to %s after %s: %w", dst, humanize.IBytes(uint64(w.BytesWritten())), err)
		if aerr := w.Abort(); aerr != nil {
			err = errors.Join(err, aerr)
		}
		return w.BytesWritten(), err
	}

	if err := w.Close(); err != nil {
		if errors.Is(err, sizeaware.ErrVisibilityTimeout) {
			return w.BytesWritten(), fmt.Errorf("%w (raise consistency.timeout if the store is slow to converge)", err)
		}
		return w.BytesWritten(), err
	}
	return w.BytesWritten(), nil
}
