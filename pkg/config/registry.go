package config

import (
	"context"
	"fmt"

	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/metrics"
	"github.com/marmos91/visiblefs/pkg/storage/wrapperfs"
)

// InitializeFileSystem builds the wrapper filesystem described by cfg: the
// store, its visibility guard, the catalog and, when metrics are enabled,
// the writer metrics.
//
// Metrics collectors are only created if metrics.InitRegistry was called
// beforehand.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	fs, err := config.InitializeFileSystem(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer fs.Close()
func InitializeFileSystem(ctx context.Context, cfg *Config) (*wrapperfs.FileSystem, error) {
	store, err := CreateStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	cat, err := CreateCatalog(cfg.Catalog)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := []wrapperfs.Option{
		wrapperfs.WithCatalog(cat),
		wrapperfs.WithVisibilityTimeout(cfg.Consistency.Timeout),
	}
	if m := metrics.NewWriterMetrics(); m != nil {
		opts = append(opts, wrapperfs.WithMetrics(m))
	}

	fs, err := wrapperfs.New(store, CreateGuard(cfg.Consistency, store), opts...)
	if err != nil {
		_ = store.Close()
		_ = cat.Close()
		return nil, fmt.Errorf("failed to create filesystem: %w", err)
	}

	logger.Debug("Filesystem initialized",
		logger.StoreType(store.Type()),
		logger.KeyCatalogType, cat.Type(),
		logger.KeyTimeout, cfg.Consistency.Timeout,
		"consistency", cfg.Consistency.Enabled)

	return fs, nil
}
