package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/history"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
	"github.com/rockets-cn/allsky/internal/station"
)

type stubDevice struct{}

func (stubDevice) Open() error                               { return nil }
func (stubDevice) Opened() bool                              { return false }
func (stubDevice) Apply(settings config.PhaseSettings) error { return nil }
func (stubDevice) Read() (gocv.Mat, error)                   { return gocv.Mat{}, nil }
func (stubDevice) Close() error                              { return nil }

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, snap *scheduler.Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error) {
	return &models.ImageMetadata{ID: "stub", CapturedAt: requestedAt, Phase: phase}, []byte("jpeg"), nil
}

type emptyRepo struct{}

func (emptyRepo) Insert(img *models.ImageMetadata) error { return nil }
func (emptyRepo) GetByID(id string) (*models.ImageMetadata, error) {
	return nil, nil
}
func (emptyRepo) GetAll(filter *models.ImageFilter) ([]models.ImageMetadata, error) {
	return nil, nil
}
func (emptyRepo) Oldest(limit int) ([]models.ImageMetadata, error) { return nil, nil }
func (emptyRepo) Count() (int, error)                              { return 0, nil }
func (emptyRepo) CountSince(t time.Time) (int, error)              { return 0, nil }
func (emptyRepo) TotalSize() (int64, error)                        { return 0, nil }
func (emptyRepo) Paths() ([]string, error)                         { return nil, nil }
func (emptyRepo) Delete(id string) error                           { return nil }
func (emptyRepo) DeleteByPath(localPath string) error              { return nil }

func testDeps(t *testing.T) Deps {
	t.Helper()
	cfg := &config.Config{
		CaptureInterval: time.Hour,
		CooldownDelay:   time.Millisecond,
		ExposureMin:     -13,
		ExposureMax:     30,
		ImageDirectory:  t.TempDir(),
		LogDirectory:    t.TempDir(),
	}
	log := logger.New(cfg.LogDirectory)
	st, err := station.New("Test", 31.2304, 121.4737)
	if err != nil {
		t.Fatalf("station.New failed: %v", err)
	}
	table, err := cfg.DefaultSettingsTable()
	if err != nil {
		t.Fatalf("DefaultSettingsTable failed: %v", err)
	}
	return Deps{
		Config:    cfg,
		Logger:    log,
		Arbiter:   camera.NewArbiter(stubDevice{}, cfg, log),
		Scheduler: scheduler.NewScheduler(stubRunner{}, cfg, st, table, log),
		Store:     history.NewStore(emptyRepo{}, cfg.ImageDirectory, 0, 0, log),
		Modules:   map[string]bool{"weather": false, "compass": false, "stars": true},
	}
}

func TestHealthRoute(t *testing.T) {
	router := SetupRoutes(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health returned %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestSchedulerStatusRoute(t *testing.T) {
	router := SetupRoutes(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/scheduler/status returned %d", rec.Code)
	}
}
