package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
)

// GetSettingsHandler returns the per-phase camera settings currently in use.
func GetSettingsHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := sched.SnapshotNow()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap.Settings.All())
	}
}

// UpdateSettingsHandler atomically replaces the per-phase settings table.
// The body must name all five phases; a partial or out-of-range table is
// rejected whole with 400.
func UpdateSettingsHandler(sched *scheduler.Scheduler, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body map[string]config.PhaseSettings
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		perPhase := make(map[astro.TwilightPhase]config.PhaseSettings, len(body))
		for name, settings := range body {
			phase, err := astro.ParsePhase(name)
			if err != nil {
				http.Error(w, "Unknown phase: "+name, http.StatusBadRequest)
				return
			}
			perPhase[phase] = settings
		}

		table, err := config.NewSettingsTable(perPhase, cfg.ExposureMin, cfg.ExposureMax)
		if err != nil {
			if errors.Is(err, config.ErrInvalidSettings) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to apply settings", http.StatusInternalServerError)
			return
		}

		sched.ApplySettings(table)
		logger.Info("⚙️ Camera settings updated")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(table.All())
	}
}
