package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/station"
)

// fakeRunner records what each job was handed and can be scripted to block
// or fail.
type fakeRunner struct {
	mu       sync.Mutex
	runs     int
	lastSnap *Snapshot
	lastSet  config.PhaseSettings
	err      error
	gate     chan struct{} // when set, Run blocks until the gate closes
}

func (r *fakeRunner) Run(ctx context.Context, snap *Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error) {
	r.mu.Lock()
	r.runs++
	r.lastSnap = snap
	r.lastSet = settings
	gate := r.gate
	err := r.err
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, nil, err
	}
	return &models.ImageMetadata{ID: "test", CapturedAt: requestedAt, Phase: phase, SizeBytes: 3}, []byte("jpg"), nil
}

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func newTestScheduler(t *testing.T, runner Runner) *Scheduler {
	t.Helper()
	cfg := &config.Config{
		CaptureInterval: time.Hour, // ticks driven manually via tick()
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
	s := NewScheduler(runner, cfg, st, table, logger.New(t.TempDir()))
	// Pin the clock and the phase so tests are independent of wall time.
	s.now = func() time.Time { return time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC) }
	s.phaseFunc = func(now time.Time, st station.Station) (astro.TwilightPhase, time.Time) {
		return astro.Night, now.Add(time.Hour)
	}
	return s
}

func waitForState(t *testing.T, s *Scheduler, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if state, _ := s.StateNow(); state == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	state, _ := s.StateNow()
	t.Fatalf("state never reached %s, stuck at %s", want, state)
}

func TestStartStopTransitions(t *testing.T) {
	s := newTestScheduler(t, &fakeRunner{})

	if state, enabled := s.StateNow(); state != StateIdle || enabled {
		t.Fatalf("expected idle/disabled initially, got %s/%v", state, enabled)
	}

	s.Start()
	if state, enabled := s.StateNow(); state != StateArmed || !enabled {
		t.Fatalf("expected armed/enabled after Start, got %s/%v", state, enabled)
	}

	s.Stop()
	if state, enabled := s.StateNow(); state != StateIdle || enabled {
		t.Fatalf("expected idle/disabled after Stop, got %s/%v", state, enabled)
	}
}

func TestTickCapturesWhenArmed(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, runner)

	s.tick(context.Background()) // idle, no capture
	if runner.runCount() != 0 {
		t.Fatal("tick captured while idle")
	}

	s.Start()
	s.tick(context.Background())
	if runner.runCount() != 1 {
		t.Fatalf("expected 1 run after armed tick, got %d", runner.runCount())
	}

	// Night settings from the default table reach the runner.
	if runner.lastSet.Gain != 40 {
		t.Fatalf("expected night gain 40, got %d", runner.lastSet.Gain)
	}

	waitForState(t, s, StateArmed) // cooldown elapses back to armed
}

func TestTickSkippedDuringCooldown(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, runner)
	s.cooldown = time.Hour // keep the scheduler parked in cooldown

	s.Start()
	s.tick(context.Background())
	if state, _ := s.StateNow(); state != StateCooldown {
		t.Fatalf("expected cooldown after capture, got %s", state)
	}

	s.tick(context.Background())
	if runner.runCount() != 1 {
		t.Fatalf("tick ran during cooldown: %d runs", runner.runCount())
	}
}

func TestCaptureNowWhileCapturing(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newTestScheduler(t, runner)

	done := make(chan struct{})
	go func() {
		s.CaptureNow(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for runner.runCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, _, err := s.CaptureNow(context.Background())
	if !errors.Is(err, camera.ErrBusy) {
		t.Fatalf("expected ErrBusy for overlapping manual capture, got %v", err)
	}

	close(gate)
	<-done
}

func TestCaptureNowFromIdle(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, runner)

	meta, jpeg, err := s.CaptureNow(context.Background())
	if err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if meta == nil || len(jpeg) == 0 {
		t.Fatal("expected metadata and bytes")
	}

	// Scheduler never started, so cooldown lands back in idle.
	waitForState(t, s, StateIdle)
}

func TestFailedCaptureKeepsSchedulerRunning(t *testing.T) {
	runner := &fakeRunner{err: errors.New("camera exploded")}
	s := newTestScheduler(t, runner)

	s.Start()
	s.tick(context.Background())
	waitForState(t, s, StateArmed)

	s.tick(context.Background())
	if runner.runCount() != 2 {
		t.Fatalf("scheduler stopped after failure: %d runs", runner.runCount())
	}
}

func TestStopDuringCaptureFinishesJob(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newTestScheduler(t, runner)

	s.Start()
	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for runner.runCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.Stop()
	if state, _ := s.StateNow(); state != StateCapturing {
		t.Fatalf("Stop interrupted an in-flight capture: %s", state)
	}

	close(gate)
	<-done
	waitForState(t, s, StateIdle)
}

func TestInFlightJobKeepsItsSnapshot(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newTestScheduler(t, runner)
	original := s.SnapshotNow()

	s.Start()
	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for runner.runCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Swap settings mid-job; the running job must keep the old snapshot.
	perPhase := config.DefaultSettings()
	perPhase[astro.Night] = config.PhaseSettings{Exposure: 10, Gain: 80}
	table, err := config.NewSettingsTable(perPhase, -13, 30)
	if err != nil {
		t.Fatalf("NewSettingsTable failed: %v", err)
	}
	s.ApplySettings(table)

	close(gate)
	<-done

	if runner.lastSnap != original {
		t.Fatal("in-flight job observed the swapped snapshot")
	}
	if s.SnapshotNow().Settings.Get(astro.Night).Gain != 80 {
		t.Fatal("new snapshot not visible to subsequent jobs")
	}
}

func TestStaleCooldownTimerIgnored(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, runner)
	s.cooldown = time.Hour // timers held off so generations can be exercised directly

	s.Start()
	s.tick(context.Background()) // job 1, cooldown generation 1
	if state, _ := s.StateNow(); state != StateCooldown {
		t.Fatalf("expected cooldown after first job, got %s", state)
	}

	// A manual capture is allowed from Cooldown and starts generation 2.
	if _, _, err := s.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow from cooldown failed: %v", err)
	}
	if state, _ := s.StateNow(); state != StateCooldown {
		t.Fatalf("expected cooldown after second job, got %s", state)
	}

	// Job 1's timer firing now must not cut job 2's cooldown short.
	s.endCooldown(1)
	if state, _ := s.StateNow(); state != StateCooldown {
		t.Fatalf("stale cooldown timer re-armed the scheduler: %s", state)
	}

	s.endCooldown(2)
	if state, _ := s.StateNow(); state != StateArmed {
		t.Fatalf("current cooldown timer did not re-arm: %s", state)
	}
}

func TestSetStationInvalidatesPhaseCache(t *testing.T) {
	s := newTestScheduler(t, &fakeRunner{})

	calls := 0
	s.phaseFunc = func(now time.Time, st station.Station) (astro.TwilightPhase, time.Time) {
		calls++
		return astro.Night, now.Add(time.Hour)
	}

	s.PhaseNow()
	s.PhaseNow()
	if calls != 1 {
		t.Fatalf("expected phase cached between calls, got %d computations", calls)
	}

	st, _ := station.New("Elsewhere", -33.8688, 151.2093)
	s.SetStation(st)
	s.PhaseNow()
	if calls != 2 {
		t.Fatalf("expected recomputation after station change, got %d", calls)
	}
}
