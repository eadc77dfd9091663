package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
)

type schedulerStatus struct {
	State   string `json:"state"`
	Enabled bool   `json:"enabled"`
	Phase   string `json:"phase"`
}

// StartSchedulerHandler arms the capture scheduler.
func StartSchedulerHandler(sched *scheduler.Scheduler, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched.Start()
		logger.Info("▶️ Scheduler started")
		writeSchedulerStatus(w, sched)
	}
}

// StopSchedulerHandler disarms the scheduler. A capture already in flight
// finishes normally.
func StopSchedulerHandler(sched *scheduler.Scheduler, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched.Stop()
		logger.Info("⏹ Scheduler stopped")
		writeSchedulerStatus(w, sched)
	}
}

// SchedulerStatusHandler reports the scheduler state and the twilight phase
// a capture started now would use.
func SchedulerStatusHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSchedulerStatus(w, sched)
	}
}

func writeSchedulerStatus(w http.ResponseWriter, sched *scheduler.Scheduler) {
	state, enabled := sched.StateNow()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(schedulerStatus{
		State:   state.String(),
		Enabled: enabled,
		Phase:   sched.PhaseNow().String(),
	})
}
