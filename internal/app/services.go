package app

import (
	"gorm.io/gorm"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
	"github.com/archvision/archvision-backend/internal/services"
)

type Services struct {
	Downloader services.ImageDownloadService
	Analysis   services.ImageAnalysisService
	Generation services.ImageGenerationService
	Product    services.ProductService
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	reposet Repos,
	clients Clients,
	store mediastore.Store,
) Services {
	log.Info("Wiring services...")
	downloader := services.NewImageDownloadService(log)
	analysis := services.NewImageAnalysisService(log, clients.OpenRouter, cfg.AnalysisModels)
	generation := services.NewImageGenerationService(log, clients.Replicate, store, downloader)
	product := services.NewProductService(db, log, reposet.Product, store, downloader, analysis, cfg.SimilarLimit)
	return Services{
		Downloader: downloader,
		Analysis:   analysis,
		Generation: generation,
		Product:    product,
	}
}
