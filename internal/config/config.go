package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every operational tunable. Values come from environment
// variables (with .env support via the app entrypoint); nothing here is
// mutated after Load.
type Config struct {
	Port           int
	CameraIndex    int
	ImageDirectory string
	DatabasePath   string
	LogDirectory   string
	LogoPath       string

	// Scheduler
	CaptureInterval time.Duration // auto-capture tick period
	CooldownDelay   time.Duration // pause after each completed job

	// Camera arbiter
	CaptureAttempts int           // retry budget per capture job
	BackoffBase     time.Duration // first retry delay, doubles per attempt
	BackoffCap      time.Duration // ceiling for the retry delay
	LockWaitCeiling time.Duration // max wait for the camera lock before Busy

	// Device-supported exposure range, used to validate settings updates.
	ExposureMin float64
	ExposureMax float64

	// History retention
	MaxStoredImages int
	MaxStorageBytes int64
	JPEGQuality     int

	// Station defaults, replaceable at runtime through the API.
	StationName      string
	StationLatitude  float64
	StationLongitude float64

	// Optional collaborators
	WeatherAPIKey         string
	WeatherUpdateInterval time.Duration
	CompassHeading        float64
	CompassEnabled        bool
	StarMagnitudeLimit    float64
	StarMinAltitude       float64
	MaxStarLabels         int
}

// Load reads the configuration from the environment, falling back to the
// defaults of a typical single-camera deployment.
func Load() *Config {
	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		CameraIndex:    getEnvAsInt("CAMERA_INDEX", 0),
		ImageDirectory: getEnv("IMAGE_DIR", filepath.Join(".", "all_sky_images")),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "allsky.db")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogoPath:       getEnv("LOGO_PATH", ""),

		CaptureInterval: getEnvAsDuration("CAPTURE_INTERVAL", 60*time.Second),
		CooldownDelay:   getEnvAsDuration("COOLDOWN_DELAY", 2*time.Second),

		CaptureAttempts: getEnvAsInt("CAPTURE_ATTEMPTS", 5),
		BackoffBase:     getEnvAsDuration("BACKOFF_BASE", 500*time.Millisecond),
		BackoffCap:      getEnvAsDuration("BACKOFF_CAP", 8*time.Second),
		LockWaitCeiling: getEnvAsDuration("LOCK_WAIT_CEILING", 3*time.Second),

		ExposureMin: getEnvAsFloat("EXPOSURE_MIN", -13),
		ExposureMax: getEnvAsFloat("EXPOSURE_MAX", 30),

		MaxStoredImages: getEnvAsInt("MAX_STORED_IMAGES", 1000),
		MaxStorageBytes: getEnvAsInt64("MAX_STORAGE_BYTES", 4*1024*1024*1024),
		JPEGQuality:     getEnvAsInt("JPEG_QUALITY", 95),

		StationName:      getEnv("STATION_NAME", "AllSky Station"),
		StationLatitude:  getEnvAsFloat("STATION_LATITUDE", 31.2304),
		StationLongitude: getEnvAsFloat("STATION_LONGITUDE", 121.4737),

		WeatherAPIKey:         getEnv("WEATHER_API_KEY", ""),
		WeatherUpdateInterval: getEnvAsDuration("WEATHER_UPDATE_INTERVAL", 5*time.Minute),
		CompassHeading:        getEnvAsFloat("COMPASS_HEADING", 0),
		CompassEnabled:        os.Getenv("COMPASS_HEADING") != "",
		StarMagnitudeLimit:    getEnvAsFloat("STAR_MAGNITUDE_LIMIT", 4.0),
		StarMinAltitude:       getEnvAsFloat("STAR_MIN_ALTITUDE", 10.0),
		MaxStarLabels:         getEnvAsInt("MAX_STAR_LABELS", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
