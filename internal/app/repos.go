package app

import (
	"gorm.io/gorm"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/repos"
)

type Repos struct {
	Product repos.ProductRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Product: repos.NewProductRepo(db, log),
	}
}
