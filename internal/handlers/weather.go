package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/weather"
)

// WeatherHandler returns the latest weather readings used by the overlay.
// 503 when no provider is configured or the upstream is unreachable.
func WeatherHandler(provider weather.Provider, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			http.Error(w, "Weather provider not configured", http.StatusServiceUnavailable)
			return
		}

		data, err := provider.FetchCurrent()
		if err != nil {
			if errors.Is(err, weather.ErrUnavailable) {
				http.Error(w, "Weather unavailable", http.StatusServiceUnavailable)
				return
			}
			logger.Error("Weather fetch failed: %v", err)
			http.Error(w, "Weather fetch failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(data)
	}
}
