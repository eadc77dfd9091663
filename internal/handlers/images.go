package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/history"
)

// ListImagesHandler returns stored image metadata, newest first. Supports
// from/to (RFC 3339) and limit query parameters.
func ListImagesHandler(store *history.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := &models.ImageFilter{}

		if from := r.URL.Query().Get("from"); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				http.Error(w, "Invalid 'from' timestamp", http.StatusBadRequest)
				return
			}
			filter.From = t
		}
		if to := r.URL.Query().Get("to"); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				http.Error(w, "Invalid 'to' timestamp", http.StatusBadRequest)
				return
			}
			filter.To = t
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				http.Error(w, "Invalid 'limit'", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		images, err := store.List(filter)
		if err != nil {
			logger.Error("Failed to list images: %v", err)
			http.Error(w, "Failed to list images", http.StatusInternalServerError)
			return
		}
		if images == nil {
			images = []models.ImageMetadata{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(images)
	}
}

// GetImageHandler serves a stored JPEG by id.
func GetImageHandler(store *history.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing 'id'", http.StatusBadRequest)
			return
		}

		data, meta, err := store.ReadImage(id)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				http.Error(w, "Image not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to read image %s: %v", id, err)
			http.Error(w, "Failed to read image", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Captured-At", meta.CapturedAt.Format(time.RFC3339))
		w.Write(data)
	}
}

// ImageStatsHandler summarizes the stored history against its caps.
func ImageStatsHandler(store *history.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats()
		if err != nil {
			logger.Error("Failed to compute storage stats: %v", err)
			http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}
