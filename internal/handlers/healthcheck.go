package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /health/
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "AI Visual Product Search API",
		"endpoints": []string{
			"POST /products/ - Add product with image URL analysis (JSON: {source_url, image_url})",
			"POST /products/find-similar/ - Find similar products (JSON: {image_url})",
			"POST /api/generate-image/ - Generate architectural design image (multipart: {image, prompt})",
			"GET /health/ - Health check",
		},
	})
}
