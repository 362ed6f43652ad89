package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
)

// MaxImageBytes is the upload/download cap shared by every endpoint that
// accepts an image.
const MaxImageBytes = 10 * 1024 * 1024

// ImageDownloadService fetches an image by URL, enforcing the same content
// type and size constraints as direct uploads.
type ImageDownloadService interface {
	// Download returns the image bytes and a file extension (no dot)
	// derived from the response content type.
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

type imageDownloadService struct {
	log        *logger.Logger
	httpClient *http.Client
}

func NewImageDownloadService(baseLog *logger.Logger) ImageDownloadService {
	serviceLog := baseLog.With("service", "ImageDownloadService")
	return &imageDownloadService{
		log:        serviceLog,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var contentTypeToExt = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// ExtensionForContentType maps an image content type to a file extension,
// defaulting to jpg for exotic image/* types.
func ExtensionForContentType(contentType string) string {
	base := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if ext, ok := contentTypeToExt[base]; ok {
		return ext
	}
	return "jpg"
}

func (s *imageDownloadService) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	ctx = ctxutil.Default(ctx)

	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, "", fmt.Errorf("invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("URL does not point to an image (content type %q)", contentType)
	}

	if resp.ContentLength > MaxImageBytes {
		return nil, "", fmt.Errorf("image file too large (max 10MB)")
	}

	// Read one byte past the cap so undeclared oversized bodies are caught.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image file too large (max 10MB)")
	}

	return data, ExtensionForContentType(contentType), nil
}
