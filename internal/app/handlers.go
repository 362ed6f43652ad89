package app

import (
	"github.com/archvision/archvision-backend/internal/handlers"
	"github.com/archvision/archvision-backend/internal/platform/logger"
)

type Handlers struct {
	Product  *handlers.ProductHandler
	Generate *handlers.GenerateHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Product:  handlers.NewProductHandler(log, services.Product),
		Generate: handlers.NewGenerateHandler(log, services.Generation),
	}
}
