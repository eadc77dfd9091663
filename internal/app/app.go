package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/repository/sqlite"
	"github.com/rockets-cn/allsky/internal/routes"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/compass"
	"github.com/rockets-cn/allsky/internal/services/history"
	"github.com/rockets-cn/allsky/internal/services/overlay"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
	"github.com/rockets-cn/allsky/internal/services/weather"
	"github.com/rockets-cn/allsky/internal/services/websocket"
	"github.com/rockets-cn/allsky/internal/station"
)

// App wires the camera arbiter, scheduler, history store and HTTP surface
// together.
type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	arbiter    *camera.Arbiter
	compositor *overlay.Compositor
	store      *history.Store
	hub        *websocket.HubService
	scheduler  *scheduler.Scheduler
	weather    weather.Provider
	modules    map[string]bool
}

func NewApp() (*App, error) {
	godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogDirectory)

	st, err := station.New(cfg.StationName, cfg.StationLatitude, cfg.StationLongitude)
	if err != nil {
		return nil, fmt.Errorf("invalid station configuration: %w", err)
	}
	table, err := cfg.DefaultSettingsTable()
	if err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}

	if err := os.MkdirAll(cfg.ImageDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repo := sqlite.NewImageRepository(db)
	store := history.NewStore(repo, cfg.ImageDirectory, cfg.MaxStoredImages, cfg.MaxStorageBytes, log)

	device := camera.NewVideoDevice(cfg.CameraIndex)
	arbiter := camera.NewArbiter(device, cfg, log)
	compositor := overlay.NewCompositor(cfg.LogoPath, log)
	hub := websocket.NewHubService(log)

	// Optional collaborators: a missing key or heading disables the module,
	// the overlay degrades instead of failing.
	modules := map[string]bool{
		"weather": cfg.WeatherAPIKey != "",
		"compass": cfg.CompassEnabled,
		"stars":   true,
	}

	// sched is assigned below; the weather coords closure reads its snapshot
	// so station updates through the API reach the weather queries too.
	var sched *scheduler.Scheduler

	var weatherProvider weather.Provider
	if cfg.WeatherAPIKey != "" {
		coords := func() (float64, float64) {
			if sched == nil {
				return st.Latitude, st.Longitude
			}
			s := sched.SnapshotNow().Station
			return s.Latitude, s.Longitude
		}
		weatherProvider = weather.NewOpenWeatherMap(cfg.WeatherAPIKey, cfg.WeatherUpdateInterval, coords, log)
	}
	var compassProvider compass.Provider
	if cfg.CompassEnabled {
		compassProvider = compass.NewStaticProvider(cfg.CompassHeading, true)
	}
	catalog := astro.NewCatalog(cfg.StarMagnitudeLimit, cfg.StarMinAltitude)

	pipeline := scheduler.NewPipeline(arbiter, compositor, store, weatherProvider, compassProvider, catalog, cfg, log)
	sched = scheduler.NewScheduler(pipeline, cfg, st, table, log)
	sched.SetOnCapture(hub.BroadcastCapture)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		arbiter:    arbiter,
		compositor: compositor,
		store:      store,
		hub:        hub,
		scheduler:  sched,
		weather:    weatherProvider,
		modules:    modules,
	}, nil
}

func (a *App) Run() error {
	if err := a.store.Reconcile(); err != nil {
		a.logger.Warning("History reconcile failed: %v", err)
	}

	go a.hub.Run()
	go a.scheduler.Run(context.Background())
	a.scheduler.Start()

	router := routes.SetupRoutes(routes.Deps{
		Config:    a.config,
		Logger:    a.logger,
		Arbiter:   a.arbiter,
		Scheduler: a.scheduler,
		Store:     a.store,
		Hub:       a.hub,
		Weather:   a.weather,
		Modules:   a.modules,
	})

	fmt.Printf("🌌 AllSky Camera Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)
	fmt.Printf("🛰 Station: %s (%.4f, %.4f)\n", a.config.StationName, a.config.StationLatitude, a.config.StationLongitude)
	fmt.Printf("⏱ Capture interval: %s\n", a.config.CaptureInterval)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

// Close releases the camera, the logo and the database.
func (a *App) Close() {
	a.scheduler.Close()
	a.arbiter.Release()
	a.compositor.Close()
	a.db.Close()
}
