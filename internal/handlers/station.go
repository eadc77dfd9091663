package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
	"github.com/rockets-cn/allsky/internal/station"
)

type stationPayload struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GetStationHandler returns the observing station the scheduler is using.
func GetStationHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := sched.SnapshotNow()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stationPayload{
			Name:      snap.Station.Name,
			Latitude:  snap.Station.Latitude,
			Longitude: snap.Station.Longitude,
		})
	}
}

// UpdateStationHandler replaces the observing station. Out-of-range
// coordinates are rejected with 400 and the field that failed.
func UpdateStationHandler(sched *scheduler.Scheduler, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body stationPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		st, err := station.New(body.Name, body.Latitude, body.Longitude)
		if err != nil {
			var vErr *station.ValidationError
			if errors.As(err, &vErr) {
				http.Error(w, vErr.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Invalid station", http.StatusBadRequest)
			return
		}

		sched.SetStation(st)
		logger.Info("📍 Station updated: %s (%.4f, %.4f)", st.Name, st.Latitude, st.Longitude)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
