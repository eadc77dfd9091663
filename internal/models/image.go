package models

import (
	"time"

	"github.com/rockets-cn/allsky/internal/astro"
)

// ImageMetadata describes one stored all-sky capture. Records are immutable
// after creation and removed only by the retention eviction policy.
type ImageMetadata struct {
	ID         string             `json:"id"`
	CapturedAt time.Time          `json:"capturedAt"`
	Phase      astro.TwilightPhase `json:"phase"`
	LocalPath  string             `json:"localPath"`
	WebPath    string             `json:"webPath"`
	SizeBytes  int64              `json:"sizeBytes"`
}

// ImageFilter narrows history queries by capture time.
type ImageFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// StorageStats summarizes the history index.
type StorageStats struct {
	TotalImages    int   `json:"total_images"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	Recent24h      int   `json:"recent_24h"`
	MaxImages      int   `json:"max_images"`
	MaxSizeBytes   int64 `json:"max_size_bytes"`
}
