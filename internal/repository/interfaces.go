package repository

import (
	"time"

	"github.com/rockets-cn/allsky/internal/models"
)

// ImageRepository defines the interface for history index operations. The
// index must mirror the files on disk 1:1; callers reconcile on mismatch.
type ImageRepository interface {
	// Create operations
	Insert(img *models.ImageMetadata) error

	// Read operations
	GetByID(id string) (*models.ImageMetadata, error)
	GetAll(filter *models.ImageFilter) ([]models.ImageMetadata, error)
	Oldest(limit int) ([]models.ImageMetadata, error)
	Count() (int, error)
	CountSince(t time.Time) (int, error)
	TotalSize() (int64, error)
	Paths() ([]string, error)

	// Delete operations
	Delete(id string) error
	DeleteByPath(localPath string) error
}
