package app

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/server"
)

func wireRouter(log *logger.Logger, cfg Config, handlerset Handlers) *gin.Engine {
	log.Info("Wiring router...")
	mediaDir := ""
	if strings.EqualFold(strings.TrimSpace(cfg.StorageMode), "local") || strings.TrimSpace(cfg.StorageMode) == "" {
		mediaDir = cfg.MediaDir
	}
	return server.NewRouter(server.RouterConfig{
		Log:             log,
		ProductHandler:  handlerset.Product,
		GenerateHandler: handlerset.Generate,
		AllowedOrigins:  cfg.AllowedOrigins,
		MediaDir:        mediaDir,
	})
}
