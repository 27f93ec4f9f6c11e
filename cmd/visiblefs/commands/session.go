package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/marmos91/visiblefs/pkg/config"
	"github.com/marmos91/visiblefs/pkg/metrics"
	"github.com/marmos91/visiblefs/pkg/storage/wrapperfs"
	"github.com/spf13/cobra"
)

// session holds what a store-facing command needs: the loaded config, the
// wrapper filesystem and a printer. Close releases everything in reverse
// order of acquisition.
type session struct {
	cfg     *config.Config
	fs      *wrapperfs.FileSystem
	printer *output.Printer

	closers []func()
}

// openSession loads configuration, initializes logging, tracing, profiling
// and metrics, and opens the filesystem. A missing configuration file is
// not an error: defaults and VISIBLEFS_* variables apply.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()

	printer, err := newPrinter(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded", "source", getConfigSource(cfgFile))

	s := &session{cfg: cfg, printer: printer}

	if err := s.initObservability(ctx); err != nil {
		s.Close()
		return nil, err
	}

	fs, err := config.InitializeFileSystem(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize filesystem: %w", err)
	}
	s.fs = fs
	s.onClose(func() {
		if err := fs.Close(); err != nil {
			logger.Warn("Filesystem close error", logger.Err(err))
		}
	})

	return s, nil
}

func (s *session) initObservability(ctx context.Context) error {
	telemetryCfg := s.cfg.Telemetry
	telemetryCfg.ServiceVersion = Version

	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.onClose(func() {
		// The command context may already be cancelled; the flush must run.
		if err := telemetryShutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	})

	profilingShutdown, err := telemetry.InitProfiling(telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.onClose(func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	})

	if telemetry.IsEnabled() {
		logger.Debug("Telemetry enabled", logger.KeyEndpoint, telemetryCfg.Endpoint, "sample_rate", telemetryCfg.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Debug("Profiling enabled", logger.KeyEndpoint, telemetryCfg.Profiling.Endpoint)
	}

	if !s.cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()
	metricsCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(metricsCtx, s.cfg.Metrics.Port); err != nil {
			logger.Warn("Metrics server stopped", logger.Err(err))
		}
	}()
	s.onClose(func() {
		cancel()
		<-done
		metrics.Reset()
	})
	return nil
}

func (s *session) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// Close runs the registered cleanups, newest first.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// withSession opens a session, runs fn and closes the session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(cmd.Context(), s)
}
