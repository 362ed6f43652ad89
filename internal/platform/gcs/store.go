package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
)

type Config struct {
	Bucket string
	// EmulatorHost points the client at fake-gcs-server for local runs.
	EmulatorHost string
	PublicHost   string
}

type store struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	// publicHost overrides the default storage.googleapis.com URL base,
	// which the emulator needs.
	publicHost string
}

// NewStore returns a mediastore.Store backed by a GCS bucket. Credentials
// come from GOOGLE_APPLICATION_CREDENTIALS or ADC; with an emulator host no
// credentials are required.
func NewStore(log *logger.Logger, cfg Config) (mediastore.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "GCSMediaStore")

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		if err := os.Setenv("STORAGE_EMULATOR_HOST", host); err != nil {
			return nil, fmt.Errorf("set emulator host: %w", err)
		}
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	return &store{
		log:        slog,
		client:     client,
		bucket:     bucket,
		publicHost: strings.TrimRight(strings.TrimSpace(cfg.PublicHost), "/"),
	}, nil
}

func (s *store) Save(ctx context.Context, filename string, data []byte) error {
	ctx = ctxutil.Default(ctx)
	w := s.client.Bucket(s.bucket).Object(filename).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload object %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", filename, err)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, filename string) error {
	ctx = ctxutil.Default(ctx)
	err := s.client.Bucket(s.bucket).Object(filename).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("delete object %s: %w", filename, err)
	}
	return nil
}

func (s *store) PublicURL(filename string) string {
	if s.publicHost != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicHost, s.bucket, filename)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, filename)
}
