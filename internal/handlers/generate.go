package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/services"
)

const (
	minInferenceSteps     = 20
	maxInferenceSteps     = 50
	defaultInferenceSteps = 20
)

type GenerateHandler struct {
	log        *logger.Logger
	generation services.ImageGenerationService
}

func NewGenerateHandler(log *logger.Logger, gsvc services.ImageGenerationService) *GenerateHandler {
	return &GenerateHandler{
		log:        log.With("handler", "GenerateHandler"),
		generation: gsvc,
	}
}

// POST /api/generate-image/
// Multipart: image (required), prompt, negative_prompt, num_inference_steps.
func (h *GenerateHandler) GenerateImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "image_required", fmt.Errorf("no image data provided"))
		return
	}
	image, _, err := readImageUpload(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_image", err)
		return
	}

	prompt := c.PostForm("prompt")
	negativePrompt := c.PostForm("negative_prompt")

	steps := defaultInferenceSteps
	if raw := c.PostForm("num_inference_steps"); raw != "" {
		steps, err = strconv.Atoi(raw)
		if err != nil || steps < minInferenceSteps || steps > maxInferenceSteps {
			RespondError(c, http.StatusBadRequest, "invalid_num_inference_steps",
				fmt.Errorf("num_inference_steps must be an integer between %d and %d", minInferenceSteps, maxInferenceSteps))
			return
		}
	}

	result, err := h.generation.Generate(c.Request.Context(), services.GenerationRequest{
		Image:             image,
		UserPrompt:        prompt,
		NegativePrompt:    negativePrompt,
		NumInferenceSteps: steps,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGenerationUnavailable):
			RespondError(c, http.StatusServiceUnavailable, "generation_unavailable", err)
		case errors.Is(err, services.ErrNoImagesGenerated):
			RespondError(c, http.StatusInternalServerError, "no_images_generated", err)
		default:
			RespondError(c, http.StatusInternalServerError, "generation_failed", err)
		}
		return
	}

	firstURL := ""
	if len(result.ImageURLs) > 0 {
		firstURL = result.ImageURLs[0]
	}

	RespondOK(c, gin.H{
		"success":                   true,
		"generated_image_urls":      result.ImageURLs,
		"generated_image_url":       firstURL,
		"generated_image_filenames": result.ImageFilenames,
		"total_images":              len(result.ImageURLs),
		"original_prompt":           prompt,
		"negative_prompt":           negativePrompt,
		"num_inference_steps":       steps,
		"message":                   fmt.Sprintf("Architectural design images generated successfully (%d images)", len(result.ImageURLs)),
	})
}
