package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/services"
)

type ProductHandler struct {
	log      *logger.Logger
	products services.ProductService
}

func NewProductHandler(log *logger.Logger, psvc services.ProductService) *ProductHandler {
	return &ProductHandler{
		log:      log.With("handler", "ProductHandler"),
		products: psvc,
	}
}

type addProductJSON struct {
	SourceURL string `json:"source_url"`
	ImageURL  string `json:"image_url"`
}

type findSimilarJSON struct {
	ImageURL string `json:"image_url"`
}

// POST /products/
// Accepts JSON {source_url, image_url} or multipart source_url + image file
// (image_url form field also accepted).
func (h *ProductHandler) AddProduct(c *gin.Context) {
	var sourceURL string
	var image services.ImageSource

	if isMultipart(c) {
		sourceURL = c.PostForm("source_url")
		if file, err := c.FormFile("image"); err == nil {
			data, contentType, readErr := readImageUpload(file)
			if readErr != nil {
				RespondError(c, http.StatusBadRequest, "invalid_image", readErr)
				return
			}
			image.Data = data
			image.ContentType = contentType
		} else {
			image.URL = c.PostForm("image_url")
		}
	} else {
		var body addProductJSON
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		sourceURL = body.SourceURL
		image.URL = body.ImageURL
	}

	result, err := h.products.AddProduct(c.Request.Context(), sourceURL, image)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, gin.H{
		"success":        true,
		"product_id":     result.ProductID,
		"image_filename": result.ImageFilename,
		"image_url":      result.ImageURL,
		"features":       result.Features,
		"message":        "Product successfully analyzed and saved",
	})
}

// POST /products/find-similar/
// Accepts a multipart image file or JSON {image_url}.
func (h *ProductHandler) FindSimilar(c *gin.Context) {
	var image services.ImageSource
	var imageSource string

	if isMultipart(c) {
		file, err := c.FormFile("image")
		if err != nil {
			RespondError(c, http.StatusBadRequest, "image_required", fmt.Errorf("no image data provided"))
			return
		}
		data, contentType, readErr := readImageUpload(file)
		if readErr != nil {
			RespondError(c, http.StatusBadRequest, "invalid_image", readErr)
			return
		}
		image.Data = data
		image.ContentType = contentType
		imageSource = "uploaded_file_" + file.Filename
	} else {
		var body findSimilarJSON
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		image.URL = body.ImageURL
		imageSource = body.ImageURL
	}

	result, err := h.products.FindSimilar(c.Request.Context(), image)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	message := fmt.Sprintf("Found %d similar products", len(result.SimilarProducts))
	if result.TotalChecked == 0 {
		message = "No products found in database"
	}

	RespondOK(c, gin.H{
		"success":                true,
		"query_features":         result.QueryFeatures,
		"query_tags":             result.QueryTags,
		"query_image_source":     imageSource,
		"total_products_checked": result.TotalChecked,
		"similar_products":       result.SimilarProducts,
		"message":                message,
	})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}
