package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/scheduler"
	"github.com/rockets-cn/allsky/internal/station"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, snap *scheduler.Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error) {
	return &models.ImageMetadata{ID: "stub", CapturedAt: requestedAt, Phase: phase, SizeBytes: 4}, []byte("jpeg"), nil
}

func testScheduler(t *testing.T) (*scheduler.Scheduler, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		CaptureInterval: time.Hour,
		CooldownDelay:   time.Millisecond,
		ExposureMin:     -13,
		ExposureMax:     30,
	}
	st, err := station.New("Test", 31.2304, 121.4737)
	if err != nil {
		t.Fatalf("station.New failed: %v", err)
	}
	table, err := cfg.DefaultSettingsTable()
	if err != nil {
		t.Fatalf("DefaultSettingsTable failed: %v", err)
	}
	return scheduler.NewScheduler(stubRunner{}, cfg, st, table, logger.New(t.TempDir())), cfg
}

func TestGetSettings(t *testing.T) {
	sched, _ := testScheduler(t)
	rec := httptest.NewRecorder()
	GetSettingsHandler(sched)(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body map[string]config.PhaseSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["night"].Gain != 40 {
		t.Fatalf("unexpected night gain: %d", body["night"].Gain)
	}
}

func TestUpdateSettingsRejectsPartialTable(t *testing.T) {
	sched, cfg := testScheduler(t)
	payload := `{"night": {"exposure": 5, "gain": 40}}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(payload))
	UpdateSettingsHandler(sched, cfg, logger.New(t.TempDir()))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial table, got %d", rec.Code)
	}
	// The live table must be untouched.
	if sched.SnapshotNow().Settings.Get(astro.Day).Gain != 10 {
		t.Fatal("partial update mutated the live table")
	}
}

func TestUpdateSettingsRejectsUnknownPhase(t *testing.T) {
	sched, cfg := testScheduler(t)
	payload := `{"dusk": {"exposure": 5, "gain": 40}}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(payload))
	UpdateSettingsHandler(sched, cfg, logger.New(t.TempDir()))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown phase, got %d", rec.Code)
	}
}

func TestUpdateSettingsAppliesFullTable(t *testing.T) {
	sched, cfg := testScheduler(t)
	payload := `{
		"day": {"exposure": -5, "gain": 10},
		"civil": {"exposure": -2, "gain": 15},
		"nautical": {"exposure": 0, "gain": 20},
		"astronomical": {"exposure": 3, "gain": 30},
		"night": {"exposure": 8, "gain": 60}
	}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(payload))
	UpdateSettingsHandler(sched, cfg, logger.New(t.TempDir()))(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := sched.SnapshotNow().Settings.Get(astro.Night); got.Exposure != 8 || got.Gain != 60 {
		t.Fatalf("settings not applied: %+v", got)
	}
}

func TestUpdateStationValidation(t *testing.T) {
	sched, _ := testScheduler(t)
	payload := `{"name": "Nowhere", "latitude": 95, "longitude": 0}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/station", strings.NewReader(payload))
	UpdateStationHandler(sched, logger.New(t.TempDir()))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid latitude, got %d", rec.Code)
	}
	if sched.SnapshotNow().Station.Name != "Test" {
		t.Fatal("invalid update replaced the station")
	}
}

func TestUpdateStation(t *testing.T) {
	sched, _ := testScheduler(t)
	payload := `{"name": "Sydney", "latitude": -33.8688, "longitude": 151.2093}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/station", strings.NewReader(payload))
	UpdateStationHandler(sched, logger.New(t.TempDir()))(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if sched.SnapshotNow().Station.Name != "Sydney" {
		t.Fatal("station not applied")
	}
}

func TestSchedulerStartStopEndpoints(t *testing.T) {
	sched, _ := testScheduler(t)
	log := logger.New(t.TempDir())

	rec := httptest.NewRecorder()
	StartSchedulerHandler(sched, log)(rec, httptest.NewRequest(http.MethodPost, "/api/scheduler/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("start failed: %d", rec.Code)
	}

	var status struct {
		State   string `json:"state"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.State != "armed" || !status.Enabled {
		t.Fatalf("unexpected status after start: %+v", status)
	}

	rec = httptest.NewRecorder()
	StopSchedulerHandler(sched, log)(rec, httptest.NewRequest(http.MethodPost, "/api/scheduler/stop", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.State != "idle" || status.Enabled {
		t.Fatalf("unexpected status after stop: %+v", status)
	}
}

func TestStartSchedulerRejectsGet(t *testing.T) {
	sched, _ := testScheduler(t)
	rec := httptest.NewRecorder()
	StartSchedulerHandler(sched, logger.New(t.TempDir()))(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/start", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCaptureNowEndpoint(t *testing.T) {
	sched, _ := testScheduler(t)
	rec := httptest.NewRecorder()
	CaptureNowHandler(sched, logger.New(t.TempDir()))(rec, httptest.NewRequest(http.MethodPost, "/api/capture", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Body.String() != "jpeg" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
