package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the rules that depend on which
// store or catalog is selected.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	var errs []error

	switch cfg.Store.Type {
	case storage.TypeFilesystem:
		if cfg.Store.Filesystem.Root == "" {
			errs = append(errs, errors.New("store.filesystem.root is required for the filesystem store"))
		}
	case storage.TypeS3:
		if cfg.Store.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3.bucket is required for the s3 store"))
		}
		if (cfg.Store.S3.AccessKeyID == "") != (cfg.Store.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("store.s3.access_key_id and store.s3.secret_access_key must be set together"))
		}
	}

	if cfg.Catalog.Type == catalog.TypeBadger && cfg.Catalog.Badger.Path == "" {
		errs = append(errs, errors.New("catalog.badger.path is required for the badger catalog"))
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if cfg.Telemetry.Profiling.Enabled {
		if cfg.Telemetry.Profiling.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.profiling.endpoint is required when profiling is enabled"))
		}
		for _, pt := range cfg.Telemetry.Profiling.ProfileTypes {
			if !telemetry.ValidProfileType(pt) {
				errs = append(errs, fmt.Errorf("telemetry.profiling.profile_types: unknown profile type %q", pt))
			}
		}
	}

	return errors.Join(errs...)
}
