package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
	"github.com/archvision/archvision-backend/internal/platform/replicate"
)

// ErrGenerationUnavailable means no generation credential is configured.
// Callers surface this distinctly from a failed generation attempt.
var ErrGenerationUnavailable = errors.New("image generation service is not configured (missing Replicate API token)")

// ErrNoImagesGenerated means the model ran but produced no usable renders
// after the leading depth-map output is discarded.
var ErrNoImagesGenerated = errors.New("no architectural images generated by the AI model")

// Every generation request is anchored to this expertise preamble; the
// user's prompt extends it but never replaces it.
const architecturalPromptPreamble = "Professional architectural interior design, modern space planning, " +
	"sophisticated lighting design, functional furniture arrangement, " +
	"harmonious color palette, premium materials and finishes, " +
	"clean lines and geometric forms, optimal spatial flow, " +
	"contemporary architectural elements, realistic rendering quality, " +
	"natural lighting integration, professional photography style"

type GenerationRequest struct {
	Image             []byte
	UserPrompt        string
	NegativePrompt    string
	NumInferenceSteps int
}

type GenerationResult struct {
	// ImageURLs are locally-hosted copies where the download succeeded,
	// otherwise the original remote URLs.
	ImageURLs      []string
	ImageFilenames []string
}

// ImageGenerationService turns a source photo plus a text prompt into new
// interior-design renders via a depth-conditioned diffusion model.
type ImageGenerationService interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

type imageGenerationService struct {
	log        *logger.Logger
	client     replicate.Client // nil when no credential is configured
	store      mediastore.Store
	downloader ImageDownloadService
}

func NewImageGenerationService(
	baseLog *logger.Logger,
	client replicate.Client,
	store mediastore.Store,
	downloader ImageDownloadService,
) ImageGenerationService {
	serviceLog := baseLog.With("service", "ImageGenerationService")
	return &imageGenerationService{
		log:        serviceLog,
		client:     client,
		store:      store,
		downloader: downloader,
	}
}

// CombinePrompts appends the user's prompt to the architectural preamble.
// An empty user prompt degrades to the preamble alone, with no trailing
// separator.
func CombinePrompts(userPrompt string) string {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return architecturalPromptPreamble
	}
	return architecturalPromptPreamble + ", " + userPrompt
}

func (s *imageGenerationService) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	ctx = ctxutil.Default(ctx)

	if s.client == nil {
		return GenerationResult{}, ErrGenerationUnavailable
	}

	jpeg, err := reencodeJPEG(req.Image)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("prepare source image: %w", err)
	}

	urls, err := s.client.RunDepthToImage(ctx, replicate.PredictionInput{
		Image:             replicate.DataURL("image/jpeg", jpeg),
		Prompt:            CombinePrompts(req.UserPrompt),
		NegativePrompt:    req.NegativePrompt,
		NumInferenceSteps: req.NumInferenceSteps,
	})
	if err != nil {
		return GenerationResult{}, fmt.Errorf("image generation failed: %w", err)
	}

	// The model's first output is the depth-map visualization, never a
	// usable render.
	if len(urls) > 0 {
		urls = urls[1:]
	}
	if len(urls) == 0 {
		return GenerationResult{}, ErrNoImagesGenerated
	}

	return s.persistResults(ctx, urls), nil
}

// persistResults mirrors every generated image into the media store so
// results outlive the provider's short-lived URLs. A failed download falls
// back to the remote URL for that image only.
func (s *imageGenerationService) persistResults(ctx context.Context, remoteURLs []string) GenerationResult {
	result := GenerationResult{
		ImageURLs:      make([]string, len(remoteURLs)),
		ImageFilenames: make([]string, len(remoteURLs)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, remoteURL := range remoteURLs {
		g.Go(func() error {
			data, ext, err := s.downloader.Download(gctx, remoteURL)
			if err == nil {
				filename := fmt.Sprintf("generated_%s_%d.%s", uuid.New(), i+1, ext)
				if saveErr := s.store.Save(gctx, filename, data); saveErr == nil {
					result.ImageURLs[i] = s.store.PublicURL(filename)
					result.ImageFilenames[i] = filename
					return nil
				} else {
					err = saveErr
				}
			}
			s.log.Warn("Could not mirror generated image locally; using remote URL",
				"remote_url", remoteURL,
				"error", err,
			)
			result.ImageURLs[i] = remoteURL
			result.ImageFilenames[i] = fmt.Sprintf("replicate_url_%d", i+1)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// reencodeJPEG normalizes an arbitrary source image (png, webp, bmp, ...) to
// RGB JPEG before upload, the format the depth model handles best.
func reencodeJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image bytes required")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}
