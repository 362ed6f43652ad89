package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/openrouter"
	"github.com/archvision/archvision-backend/internal/types"
)

// DefaultAnalysisModels is tried in order until one returns a parseable
// reply; the list tolerates upstream model deprecation.
var DefaultAnalysisModels = []string{"x-ai/grok-4-fast:free"}

const analysisPrompt = `Analyze the attached image of an interior design scene or product.

Your task:
1. Identify the main objects/furniture in the image
2. Describe their key visual attributes (color, material, style, etc.)
3. Determine the overall design style of the scene

CRITICAL: Respond ONLY with a valid JSON object of this exact shape:

{
  "main_objects": [
    {"object_type": "string", "attributes": ["string", "..."]}
  ],
  "overall_style": ["string", "..."]
}

Guidelines:
- For object_type: use simple, clear names like 'sofa', 'chair', 'table', 'lamp', etc.
- For attributes: include visual descriptors like colors, materials, styles, patterns
- For overall_style: use recognized design terms like 'modern', 'scandinavian', 'industrial', 'minimalist', etc.
- Be specific but concise in your descriptions
- Only include objects that are clearly visible and identifiable

Return only valid JSON, no additional text or explanation.`

// ImageAnalysisService extracts structured visual features from an image via
// a remote vision model. Without a configured credential it returns a fixed
// mock feature set, which keeps the rest of the service usable in
// credential-free environments; that fallback is documented behavior, not an
// error path.
type ImageAnalysisService interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (types.ImageFeatures, error)
}

type imageAnalysisService struct {
	log    *logger.Logger
	client openrouter.Client // nil when no credential is configured
	models []string
}

func NewImageAnalysisService(baseLog *logger.Logger, client openrouter.Client, models []string) ImageAnalysisService {
	serviceLog := baseLog.With("service", "ImageAnalysisService")
	if len(models) == 0 {
		models = DefaultAnalysisModels
	}
	return &imageAnalysisService{log: serviceLog, client: client, models: models}
}

// MockImageFeatures is the deterministic payload served when no vision
// credential is configured.
func MockImageFeatures() types.ImageFeatures {
	return types.ImageFeatures{
		MainObjects: []types.IdentifiedObject{
			{ObjectType: "chair", Attributes: []string{"wooden", "modern", "minimalist"}},
			{ObjectType: "table", Attributes: []string{"glass", "contemporary", "sleek"}},
		},
		OverallStyle: []string{"modern", "minimalist", "contemporary"},
	}
}

func (s *imageAnalysisService) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (types.ImageFeatures, error) {
	ctx = ctxutil.Default(ctx)

	if s.client == nil {
		s.log.Debug("No vision credential configured; returning mock features")
		return MockImageFeatures(), nil
	}
	if len(image) == 0 {
		return types.ImageFeatures{}, fmt.Errorf("image bytes required")
	}

	input := openrouter.ImageInput{
		ImageURL: openrouter.DataURL(mimeType, image),
		Detail:   "high",
	}

	var lastErr error
	for _, model := range s.models {
		reply, err := s.client.CompleteWithImage(ctx, model, analysisPrompt, input)
		if err != nil {
			if openrouter.IsNotFound(err) {
				lastErr = fmt.Errorf("model %s not found upstream: %w", model, err)
			} else {
				lastErr = fmt.Errorf("model %s failed: %w", model, err)
			}
			s.log.Warn("Image analysis model failed", "model", model, "error", err)
			continue
		}

		features, err := types.ParseImageFeatures([]byte(stripCodeFence(reply)))
		if err != nil {
			lastErr = fmt.Errorf("model %s returned an unparseable reply: %w", model, err)
			s.log.Warn("Image analysis reply rejected", "model", model, "error", err)
			continue
		}
		return features, nil
	}

	return types.ImageFeatures{}, fmt.Errorf("all analysis models failed: %w", lastErr)
}

// stripCodeFence tolerates models that wrap the JSON reply in a markdown
// fence despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
