package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rockets-cn/allsky/internal/logger"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherMap fetches current conditions from the OpenWeatherMap API and
// caches them for the configured update interval. Without an API key the
// provider reports ErrUnavailable and the overlay degrades to placeholders.
type OpenWeatherMap struct {
	apiKey  string
	baseURL string
	coords  func() (lat, lon float64)
	client  *http.Client
	logger  *logger.Logger

	updateInterval time.Duration

	mu        sync.Mutex
	cached    Data
	fetchedAt time.Time
}

// NewOpenWeatherMap builds the provider. coords is read per fetch so station
// updates take effect without rebuilding the provider.
func NewOpenWeatherMap(apiKey string, updateInterval time.Duration, coords func() (float64, float64), log *logger.Logger) *OpenWeatherMap {
	return &OpenWeatherMap{
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		coords:         coords,
		client:         &http.Client{Timeout: 10 * time.Second},
		logger:         log,
		updateInterval: updateInterval,
	}
}

// FetchCurrent returns cached conditions when fresh, otherwise refetches
// with bounded retries. ErrUnavailable when unconfigured or the API keeps
// failing.
func (p *OpenWeatherMap) FetchCurrent() (Data, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.fetchedAt) < p.updateInterval {
		return p.cached, nil
	}

	lat, lon := p.coords()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := backoff.Retry(ctx, func() (Data, error) {
		return p.fetch(lat, lon)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		p.logger.Warning("🌦 Weather fetch failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.cached = data
	p.fetchedAt = time.Now()
	return data, nil
}

type owmResponse struct {
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Visibility int                `json:"visibility"`
	Rain       map[string]float64 `json:"rain"`
}

func (p *OpenWeatherMap) fetch(lat, lon float64) (Data, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%.4f", lat))
	query.Set("lon", fmt.Sprintf("%.4f", lon))
	query.Set("appid", p.apiKey)
	query.Set("units", "metric")

	resp, err := p.client.Get(p.baseURL + "/weather?" + query.Encode())
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned %s", resp.Status)
	}

	var parsed owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}
	return p.toData(&parsed), nil
}

func (p *OpenWeatherMap) toData(r *owmResponse) Data {
	data := Data{
		"Cloud Cover": fmt.Sprintf("%d%%", r.Clouds.All),
		"Humidity":    fmt.Sprintf("%.0f%%", r.Main.Humidity),
		"Pressure":    fmt.Sprintf("%.0f hPa", r.Main.Pressure),
		"Temperature": fmt.Sprintf("%.1f C", r.Main.Temp),
		"Wind Speed":  fmt.Sprintf("%.1f m/s", r.Wind.Speed),
		"Wind Gust":   fmt.Sprintf("%.1f m/s", r.Wind.Gust),
		"Rain Rate":   "0 mm/h",
	}
	if len(r.Weather) > 0 {
		data["Weather"] = r.Weather[0].Description
	}
	if r.Main.Humidity > 0 {
		data["Dew Point"] = fmt.Sprintf("%.1f C", dewPoint(r.Main.Temp, r.Main.Humidity))
	}
	if rain, ok := r.Rain["1h"]; ok {
		data["Rain Rate"] = fmt.Sprintf("%.1f mm/h", rain)
	}
	return data
}

// dewPoint applies the Magnus formula.
func dewPoint(tempC, humidity float64) float64 {
	gamma := math.Log(humidity/100) + 17.62*tempC/(243.12+tempC)
	return 243.12 * gamma / (17.62 - gamma)
}
