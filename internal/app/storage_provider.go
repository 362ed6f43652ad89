package app

import (
	"fmt"
	"strings"

	"github.com/archvision/archvision-backend/internal/platform/gcs"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
)

var newGCSStore = gcs.NewStore

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode   StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code  StorageProviderBootstrapErrorCode
	Mode  string
	Cause error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "media storage bootstrap failed"
	}
	return fmt.Sprintf("media storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveMediaStore selects the media backend by STORAGE_MODE: "local"
// writes under MediaDir, "gcs" uploads to a bucket (optionally via the
// fake-gcs-server emulator).
func resolveMediaStore(log *logger.Logger, cfg Config) (mediastore.Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.StorageMode))
	switch mode {
	case "", "local":
		store, err := mediastore.NewLocalStore(log, cfg.MediaDir, cfg.BackendURL)
		if err != nil {
			return nil, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorConnectFailed,
				Mode:  mode,
				Cause: err,
			}
		}
		return store, nil
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorMissingBucket,
				Mode:  mode,
				Cause: fmt.Errorf("GCS_BUCKET is required when STORAGE_MODE=gcs"),
			}
		}
		store, err := newGCSStore(log, gcs.Config{
			Bucket:       cfg.GCSBucket,
			EmulatorHost: cfg.StorageEmulatorHost,
			PublicHost:   cfg.GCSPublicHost,
		})
		if err != nil {
			return nil, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorConnectFailed,
				Mode:  mode,
				Cause: err,
			}
		}
		return store, nil
	default:
		return nil, &StorageProviderBootstrapError{
			Code:  StorageProviderBootstrapErrorInvalidMode,
			Mode:  mode,
			Cause: fmt.Errorf("unsupported storage mode %q", cfg.StorageMode),
		}
	}
}
