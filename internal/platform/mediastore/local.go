package mediastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archvision/archvision-backend/internal/platform/logger"
)

// MediaURLPath is where the router serves local media from.
const MediaURLPath = "/media"

type localStore struct {
	log     *logger.Logger
	rootDir string
	baseURL string
}

// NewLocalStore stores images on disk under rootDir. Retrieval URLs are
// baseURL + /media/<filename>, matching the router's static mount.
func NewLocalStore(log *logger.Logger, rootDir string, baseURL string) (Store, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("media root dir required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &localStore{
		log:     log.With("service", "LocalMediaStore"),
		rootDir: rootDir,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}, nil
}

func (s *localStore) path(filename string) (string, error) {
	// Filenames are generated UUIDs, but refuse anything path-like anyway.
	clean := filepath.Base(strings.TrimSpace(filename))
	if clean == "" || clean == "." || clean == ".." || clean != filename {
		return "", fmt.Errorf("invalid media filename %q", filename)
	}
	return filepath.Join(s.rootDir, clean), nil
}

func (s *localStore) Save(ctx context.Context, filename string, data []byte) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	return nil
}

func (s *localStore) Delete(ctx context.Context, filename string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

func (s *localStore) PublicURL(filename string) string {
	return fmt.Sprintf("%s%s/%s", s.baseURL, MediaURLPath, filename)
}
