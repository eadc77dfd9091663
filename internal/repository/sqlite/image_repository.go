package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/models"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds a new image record to the index.
func (r *ImageRepository) Insert(img *models.ImageMetadata) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO images (id, captured_at, phase, local_path, web_path, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.ID, img.CapturedAt.UTC(), img.Phase.String(), img.LocalPath, img.WebPath, img.SizeBytes)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

// GetByID retrieves an image by its ID.
func (r *ImageRepository) GetByID(id string) (*models.ImageMetadata, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, captured_at, phase, local_path, web_path, size_bytes
		FROM images WHERE id = ?
	`, id)
	return scanImage(row)
}

// GetAll retrieves images matching the filter, newest first.
func (r *ImageRepository) GetAll(filter *models.ImageFilter) ([]models.ImageMetadata, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, captured_at, phase, local_path, web_path, size_bytes
		FROM images
		WHERE 1=1
	`
	args := []interface{}{}

	if filter != nil && !filter.From.IsZero() {
		query += " AND captured_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter != nil && !filter.To.IsZero() {
		query += " AND captured_at <= ?"
		args = append(args, filter.To.UTC())
	}

	query += " ORDER BY captured_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// Oldest retrieves up to limit images in capture order, oldest first. Used
// by the eviction policy.
func (r *ImageRepository) Oldest(limit int) ([]models.ImageMetadata, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, captured_at, phase, local_path, web_path, size_bytes
		FROM images ORDER BY captured_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// Count returns the number of indexed images.
func (r *ImageRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// CountSince returns the number of images captured at or after t.
func (r *ImageRepository) CountSince(t time.Time) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images WHERE captured_at >= ?`, t.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent images: %w", err)
	}
	return count, nil
}

// TotalSize returns the total bytes of all indexed images.
func (r *ImageRepository) TotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(size_bytes), 0) FROM images`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum image sizes: %w", err)
	}
	return size, nil
}

// Paths returns the local path of every indexed image.
func (r *ImageRepository) Paths() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT local_path FROM images`)
	if err != nil {
		return nil, fmt.Errorf("failed to query image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Delete removes an image record by its ID.
func (r *ImageRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// DeleteByPath removes an image record by its local path.
func (r *ImageRepository) DeleteByPath(localPath string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE local_path = ?`, localPath); err != nil {
		return fmt.Errorf("failed to delete image by path: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (*models.ImageMetadata, error) {
	var img models.ImageMetadata
	var phaseName string
	err := row.Scan(&img.ID, &img.CapturedAt, &phaseName, &img.LocalPath, &img.WebPath, &img.SizeBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	phase, err := astro.ParsePhase(phaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.Phase = phase
	return &img, nil
}

func scanImages(rows *sql.Rows) ([]models.ImageMetadata, error) {
	var images []models.ImageMetadata
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}
