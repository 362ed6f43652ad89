package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/archvision/archvision-backend/internal/handlers"
	"github.com/archvision/archvision-backend/internal/middleware"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
)

type RouterConfig struct {
	Log             *logger.Logger
	ProductHandler  *handlers.ProductHandler
	GenerateHandler *handlers.GenerateHandler
	AllowedOrigins  []string

	// MediaDir, when set, is served at /media for locally stored images.
	MediaDir string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))
	router.Use(otelgin.Middleware("archvision-backend"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/health/", handlers.HealthCheck)

	products := router.Group("/products")
	{
		products.POST("/", cfg.ProductHandler.AddProduct)
		products.POST("/find-similar/", cfg.ProductHandler.FindSimilar)
	}

	api := router.Group("/api")
	{
		api.POST("/generate-image/", cfg.GenerateHandler.GenerateImage)
	}

	if cfg.MediaDir != "" {
		router.Static(mediastore.MediaURLPath, cfg.MediaDir)
	}

	return router
}
