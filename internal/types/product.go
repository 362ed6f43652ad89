package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product is a catalog entry whose image has been analyzed by the vision
// model. Features holds the model output verbatim (ImageFeatures schema).
type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceURL     string         `gorm:"column:source_url;uniqueIndex;not null" json:"source_url"`
	ImageFilename string         `gorm:"column:image_filename;uniqueIndex;not null" json:"image_filename"`
	Features      datatypes.JSON `gorm:"column:features" json:"features"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
