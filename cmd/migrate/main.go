package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/repository/sqlite"
	"github.com/rockets-cn/allsky/internal/station"
)

// Rebuilds the image index from an existing date-partitioned image tree,
// for deployments that predate the SQLite index or lost it.
func main() {
	imagesDir := flag.String("images", "all_sky_images", "Directory containing the image tree")
	dbPath := flag.String("db", filepath.Join("data", "allsky.db"), "Database path")
	flag.Parse()

	cfg := config.Load()
	st, err := station.New(cfg.StationName, cfg.StationLatitude, cfg.StationLongitude)
	if err != nil {
		log.Fatalf("Invalid station configuration: %v", err)
	}

	fmt.Printf("Indexing images from %s into %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewImageRepository(db)

	inserted := 0
	skipped := 0
	err = filepath.WalkDir(*imagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jpg") {
			return nil
		}

		capturedAt, err := parseFilename(d.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", d.Name(), err)
			skipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			log.Printf("⚠️  Failed to stat %s: %v", d.Name(), err)
			skipped++
			return nil
		}

		rel, err := filepath.Rel(*imagesDir, path)
		if err != nil {
			return err
		}
		phase, _ := astro.CurrentPhase(capturedAt, st)

		meta := &models.ImageMetadata{
			ID:         uuid.NewString(),
			CapturedAt: capturedAt,
			Phase:      phase,
			LocalPath:  path,
			WebPath:    "/images/" + filepath.ToSlash(rel),
			SizeBytes:  info.Size(),
		}
		if err := repo.Insert(meta); err != nil {
			log.Printf("⚠️  Failed to index %s: %v", d.Name(), err)
			skipped++
			return nil
		}
		inserted++
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan image directory: %v", err)
	}

	fmt.Printf("✅ Indexed %d images (%d skipped)\n", inserted, skipped)
}

// parseFilename extracts the capture time from allsky_YYYYMMDD_HHMMSS.jpg.
func parseFilename(name string) (time.Time, error) {
	base := strings.TrimSuffix(name, ".jpg")
	if !strings.HasPrefix(base, "allsky_") {
		return time.Time{}, fmt.Errorf("unexpected filename format")
	}
	return time.ParseInLocation("20060102_150405", strings.TrimPrefix(base, "allsky_"), time.Local)
}
