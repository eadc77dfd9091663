package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/history"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
)

type healthReport struct {
	Status    string               `json:"status"`
	Time      time.Time            `json:"time"`
	Camera    string               `json:"camera"`
	Scheduler schedulerStatus      `json:"scheduler"`
	Storage   *models.StorageStats `json:"storage,omitempty"`
	Modules   map[string]bool      `json:"modules"`
}

// HealthHandler reports camera, scheduler and storage status plus which
// optional overlay providers are configured.
func HealthHandler(arbiter *camera.Arbiter, sched *scheduler.Scheduler, store *history.Store, modules map[string]bool, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, enabled := sched.StateNow()
		report := healthReport{
			Status: "ok",
			Time:   time.Now().UTC(),
			Camera: arbiter.Status(),
			Scheduler: schedulerStatus{
				State:   state.String(),
				Enabled: enabled,
				Phase:   sched.PhaseNow().String(),
			},
			Modules: modules,
		}

		stats, err := store.Stats()
		if err != nil {
			logger.Error("Health check: storage stats failed: %v", err)
			report.Status = "degraded"
		} else {
			report.Storage = stats
		}
		if report.Camera == "offline" {
			report.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}
