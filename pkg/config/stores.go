package config

import (
	"context"
	"fmt"

	"github.com/marmos91/visiblefs/pkg/catalog"
	catalogbadger "github.com/marmos91/visiblefs/pkg/catalog/badger"
	catalogmemory "github.com/marmos91/visiblefs/pkg/catalog/memory"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/metrics"
	"github.com/marmos91/visiblefs/pkg/storage"
	storefs "github.com/marmos91/visiblefs/pkg/storage/fs"
	storememory "github.com/marmos91/visiblefs/pkg/storage/memory"
	stores3 "github.com/marmos91/visiblefs/pkg/storage/s3"
)

// CreateStore creates the store selected by cfg.Type.
func CreateStore(ctx context.Context, cfg StoreConfig) (storage.Store, error) {
	switch cfg.Type {
	case storage.TypeMemory:
		return storememory.New(storememory.Config{VisibilityLag: cfg.Memory.VisibilityLag}), nil
	case storage.TypeFilesystem:
		return createFilesystemStore(cfg.Filesystem)
	case storage.TypeS3:
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

func createFilesystemStore(cfg FilesystemStoreConfig) (storage.Store, error) {
	fsCfg := storefs.DefaultConfig(cfg.Root)
	fsCfg.CreateDir = cfg.CreateDir

	store, err := storefs.New(fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}
	return store, nil
}

func createS3Store(ctx context.Context, cfg S3StoreConfig) (storage.Store, error) {
	store, err := stores3.NewFromConfig(ctx, stores3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		ForcePathStyle:  cfg.ForcePathStyle,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
		WaitMinDelay:    cfg.WaitMinDelay,
		WaitMaxDelay:    cfg.WaitMaxDelay,
	}, metrics.NewS3Metrics())
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}
	return store, nil
}

// CreateGuard returns the visibility guard for store. With consistency
// disabled every path is assumed visible once its handle closes.
func CreateGuard(cfg ConsistencyConfig, store storage.Store) consistency.Guard {
	if !cfg.Enabled {
		return consistency.NoOp{}
	}
	return consistency.ForStore(store)
}

// CreateCatalog creates the catalog selected by cfg.Type.
func CreateCatalog(cfg CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Type {
	case catalog.TypeMemory:
		return catalogmemory.New(), nil
	case catalog.TypeBadger:
		c, err := catalogbadger.New(catalogbadger.Config{Path: cfg.Badger.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger catalog: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %q", cfg.Type)
	}
}
