package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
)

// CaptureNowHandler triggers a single on-demand capture and returns the
// finished JPEG. 409 while another capture holds the camera, 502 when the
// camera itself failed after all retries.
func CaptureNowHandler(sched *scheduler.Scheduler, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		meta, jpeg, err := sched.CaptureNow(r.Context())
		if err != nil {
			if errors.Is(err, camera.ErrBusy) {
				http.Error(w, "Camera busy", http.StatusConflict)
				return
			}
			var capErr *camera.CaptureError
			if errors.As(err, &capErr) {
				logger.Error("On-demand capture failed after %d attempts: %v", capErr.Attempts, capErr.Err)
				http.Error(w, "Camera capture failed", http.StatusBadGateway)
				return
			}
			logger.Error("On-demand capture failed: %v", err)
			http.Error(w, "Capture failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(jpeg)))
		w.Header().Set("X-Image-ID", meta.ID)
		w.Write(jpeg)
	}
}
