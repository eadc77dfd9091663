package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/repository"
)

// ErrNotFound is returned when a requested image is absent from the index.
var ErrNotFound = errors.New("image not found")

// evictBatch bounds how many rows one eviction pass fetches at a time.
const evictBatch = 16

// Store is the bounded image-history retention engine. Files live under a
// date-partitioned tree (YYYY/MM/DD) and are mirrored 1:1 by the SQLite
// index. After every Record the store is back under both the count and the
// byte cap; eviction removes strictly oldest-first.
type Store struct {
	repo     repository.ImageRepository
	baseDir  string
	maxCount int
	maxBytes int64
	logger   *logger.Logger

	// mu serializes writes and eviction against reads of image bytes. It is
	// distinct from the camera lock, so storing one image never blocks the
	// next capture.
	mu sync.Mutex
}

// NewStore builds the retention engine over the given repository and image
// directory. Caps of zero disable the respective bound.
func NewStore(repo repository.ImageRepository, baseDir string, maxCount int, maxBytes int64, log *logger.Logger) *Store {
	return &Store{
		repo:     repo,
		baseDir:  baseDir,
		maxCount: maxCount,
		maxBytes: maxBytes,
		logger:   log,
	}
}

// Record writes the encoded image to its date-partitioned location, indexes
// it and enforces retention synchronously. The returned metadata is
// immutable.
func (s *Store) Record(jpeg []byte, capturedAt time.Time, phase astro.TwilightPhase) (*models.ImageMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dateDir := capturedAt.Format("2006/01/02")
	dir := filepath.Join(s.baseDir, filepath.FromSlash(dateDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("allsky_%s.jpg", capturedAt.Format("20060102_150405"))
	localPath := filepath.Join(dir, filename)
	// Filenames carry one-second resolution, so a second capture within the
	// same second would overwrite the first file and then collide on the
	// unique path index. Disambiguate with the image id.
	if _, err := os.Stat(localPath); err == nil {
		filename = fmt.Sprintf("allsky_%s_%s.jpg", capturedAt.Format("20060102_150405"), id[:8])
		localPath = filepath.Join(dir, filename)
	}
	if err := os.WriteFile(localPath, jpeg, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	meta := &models.ImageMetadata{
		ID:         id,
		CapturedAt: capturedAt,
		Phase:      phase,
		LocalPath:  localPath,
		WebPath:    "/images/" + dateDir + "/" + filename,
		SizeBytes:  int64(len(jpeg)),
	}

	if err := s.repo.Insert(meta); err != nil {
		// Keep index and filesystem consistent: drop the orphan file.
		os.Remove(localPath)
		return nil, err
	}

	if err := s.evictLocked(); err != nil {
		s.logger.Error("🗑 Eviction after record failed: %v", err)
	}

	return meta, nil
}

// evictLocked removes oldest entries (file and index row together) until the
// store is under both caps. Bounded by the index size.
func (s *Store) evictLocked() error {
	count, err := s.repo.Count()
	if err != nil {
		return err
	}
	totalBytes, err := s.repo.TotalSize()
	if err != nil {
		return err
	}

	for s.overBudget(count, totalBytes) {
		oldest, err := s.repo.Oldest(evictBatch)
		if err != nil {
			return err
		}
		if len(oldest) == 0 {
			return nil
		}
		for _, img := range oldest {
			if !s.overBudget(count, totalBytes) {
				return nil
			}
			if err := os.Remove(img.LocalPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove %s: %w", img.LocalPath, err)
			}
			if err := s.repo.Delete(img.ID); err != nil {
				return err
			}
			count--
			totalBytes -= img.SizeBytes
			s.logger.Info("🗑 Evicted %s (%d bytes)", img.LocalPath, img.SizeBytes)
		}
	}
	return nil
}

func (s *Store) overBudget(count int, totalBytes int64) bool {
	if s.maxCount > 0 && count > s.maxCount {
		return true
	}
	if s.maxBytes > 0 && totalBytes > s.maxBytes {
		return true
	}
	return false
}

// List returns stored image metadata matching the filter, newest first.
func (s *Store) List(filter *models.ImageFilter) ([]models.ImageMetadata, error) {
	return s.repo.GetAll(filter)
}

// Latest returns up to n most recent images.
func (s *Store) Latest(n int) ([]models.ImageMetadata, error) {
	return s.repo.GetAll(&models.ImageFilter{Limit: n})
}

// ReadImage returns the stored bytes and metadata for the given id. The copy
// is taken under the store lock so eviction cannot invalidate the read.
func (s *Store) ReadImage(id string) ([]byte, *models.ImageMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil {
		return nil, nil, ErrNotFound
	}
	data, err := os.ReadFile(meta.LocalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", meta.LocalPath, err)
	}
	return data, meta, nil
}

// Stats summarizes the index for the statistics and health endpoints.
func (s *Store) Stats() (*models.StorageStats, error) {
	count, err := s.repo.Count()
	if err != nil {
		return nil, err
	}
	totalBytes, err := s.repo.TotalSize()
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.CountSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	return &models.StorageStats{
		TotalImages:    count,
		TotalSizeBytes: totalBytes,
		Recent24h:      recent,
		MaxImages:      s.maxCount,
		MaxSizeBytes:   s.maxBytes,
	}, nil
}

// Reconcile restores the 1:1 invariant between index and filesystem after a
// restart: index rows without a file are dropped, files without a row are
// garbage-collected.
func (s *Store) Reconcile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.repo.Paths()
	if err != nil {
		return err
	}
	indexed := make(map[string]bool, len(paths))
	dropped := 0
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := s.repo.DeleteByPath(p); err != nil {
				return err
			}
			dropped++
			continue
		}
		indexed[p] = true
	}

	removed := 0
	err = filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".jpg") {
			return nil
		}
		if !indexed[path] {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk image directory: %w", err)
	}

	if dropped > 0 || removed > 0 {
		s.logger.Warning("🧹 Reconciled history: %d stale index entries, %d untracked files", dropped, removed)
	}
	return nil
}
