package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/handlers"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/history"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
	"github.com/rockets-cn/allsky/internal/services/weather"
	ws "github.com/rockets-cn/allsky/internal/services/websocket"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Arbiter   *camera.Arbiter
	Scheduler *scheduler.Scheduler
	Store     *history.Store
	Hub       *ws.HubService
	Weather   weather.Provider
	Modules   map[string]bool
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers static file serving, the image tree and all API
// endpoints.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Static files and the stored image tree
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	mux.Handle("/images/", http.StripPrefix("/images/", http.FileServer(http.Dir(d.Config.ImageDirectory))))

	// Capture and scheduler
	mux.HandleFunc("/api/capture", handlers.CaptureNowHandler(d.Scheduler, d.Logger))
	mux.HandleFunc("/api/scheduler/start", handlers.StartSchedulerHandler(d.Scheduler, d.Logger))
	mux.HandleFunc("/api/scheduler/stop", handlers.StopSchedulerHandler(d.Scheduler, d.Logger))
	mux.HandleFunc("/api/scheduler/status", handlers.SchedulerStatusHandler(d.Scheduler))

	// Configuration
	mux.HandleFunc("/api/settings", methodSwitch(
		handlers.GetSettingsHandler(d.Scheduler),
		handlers.UpdateSettingsHandler(d.Scheduler, d.Config, d.Logger),
	))
	mux.HandleFunc("/api/station", methodSwitch(
		handlers.GetStationHandler(d.Scheduler),
		handlers.UpdateStationHandler(d.Scheduler, d.Logger),
	))

	// History
	mux.HandleFunc("/api/images", handlers.ListImagesHandler(d.Store, d.Logger))
	mux.HandleFunc("/api/images/view", handlers.GetImageHandler(d.Store, d.Logger))
	mux.HandleFunc("/api/images/stats", handlers.ImageStatsHandler(d.Store, d.Logger))

	// Status and providers
	mux.HandleFunc("/health", handlers.HealthHandler(d.Arbiter, d.Scheduler, d.Store, d.Modules, d.Logger))
	mux.HandleFunc("/api/weather", handlers.WeatherHandler(d.Weather, d.Logger))
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(d.Hub, d.Logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(d.Config))
	mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(d.Config))
	mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(d.Config))

	mux.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(d.Logger))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(d.Logger))
	mux.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(d.Logger))

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return mux
}

// methodSwitch routes GET to the reader and everything else to the writer,
// which does its own method validation.
func methodSwitch(get, other http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			get(w, r)
			return
		}
		other(w, r)
	}
}
