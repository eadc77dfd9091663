package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/station"
)

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateCapturing
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCapturing:
		return "capturing"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable bundle of the inputs a capture job depends on. A
// job keeps the snapshot it started with even if settings or station change
// mid-flight.
type Snapshot struct {
	Station  station.Station
	Settings *config.SettingsTable
}

// Runner executes one full capture job: acquire the camera, render overlays,
// encode and store. Implemented by the production pipeline and by fakes in
// tests.
type Runner interface {
	Run(ctx context.Context, snap *Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error)
}

// phaseRecheck bounds how long a phase decision is trusted when no boundary
// could be found (polar day or night).
const phaseRecheck = time.Hour

// Scheduler drives periodic captures through Idle, Armed, Capturing and
// Cooldown. All transitions happen under one mutex; the capture itself runs
// outside it.
type Scheduler struct {
	runner   Runner
	logger   *logger.Logger
	interval time.Duration
	cooldown time.Duration

	snap atomic.Pointer[Snapshot]

	mu          sync.Mutex
	state       State
	enabled     bool
	cooldownGen uint64
	phase       astro.TwilightPhase
	phaseValid  bool
	phaseExpiry time.Time

	onCapture func(*models.ImageMetadata, []byte)

	// Injected for tests.
	now       func() time.Time
	phaseFunc func(time.Time, station.Station) (astro.TwilightPhase, time.Time)

	stop     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(runner Runner, cfg *config.Config, st station.Station, table *config.SettingsTable, log *logger.Logger) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		logger:    log,
		interval:  cfg.CaptureInterval,
		cooldown:  cfg.CooldownDelay,
		state:     StateIdle,
		now:       time.Now,
		phaseFunc: astro.CurrentPhase,
		stop:      make(chan struct{}),
	}
	s.snap.Store(&Snapshot{Station: st, Settings: table})
	return s
}

// SetOnCapture installs the callback invoked after every successful capture,
// scheduled or manual. Must be called before Run.
func (s *Scheduler) SetOnCapture(fn func(*models.ImageMetadata, []byte)) {
	s.onCapture = fn
}

// Run drives the capture ticker until the context is cancelled or Close is
// called. Captures run on this goroutine, so a slow capture simply skips
// ticks rather than piling up jobs.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if !s.enabled || s.state != StateArmed {
		s.mu.Unlock()
		return
	}
	now := s.now()
	snap := s.snap.Load()
	phase := s.currentPhaseLocked(now, snap.Station)
	settings := snap.Settings.Get(phase)
	s.state = StateCapturing
	s.mu.Unlock()

	s.execute(ctx, snap, phase, settings, now)
}

// execute runs one job and walks the state machine through Cooldown back to
// Armed or Idle. A failed capture never stops the scheduler.
func (s *Scheduler) execute(ctx context.Context, snap *Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error) {
	meta, jpeg, err := s.runner.Run(ctx, snap, phase, settings, requestedAt)
	if err != nil {
		s.logger.Error("Capture job failed (phase %s): %v", phase, err)
	} else {
		s.logger.Info("📸 Captured %s (phase %s, %d bytes)", meta.ID, phase, meta.SizeBytes)
		if s.onCapture != nil {
			s.onCapture(meta, jpeg)
		}
	}

	s.mu.Lock()
	s.state = StateCooldown
	s.cooldownGen++
	gen := s.cooldownGen
	s.mu.Unlock()
	time.AfterFunc(s.cooldown, func() { s.endCooldown(gen) })
	return meta, jpeg, err
}

// endCooldown re-arms (or parks) the scheduler once the cooldown for the
// given generation elapses. A manual capture may start from Cooldown and
// begin a newer cooldown before an older timer fires; the generation check
// makes the stale timer a no-op.
func (s *Scheduler) endCooldown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCooldown || gen != s.cooldownGen {
		return
	}
	if s.enabled {
		s.state = StateArmed
	} else {
		s.state = StateIdle
	}
}

// CaptureNow runs a single on-demand capture regardless of whether the
// scheduler is started. Returns camera.ErrBusy if a job is already in
// flight.
func (s *Scheduler) CaptureNow(ctx context.Context) (*models.ImageMetadata, []byte, error) {
	s.mu.Lock()
	if s.state == StateCapturing {
		s.mu.Unlock()
		return nil, nil, camera.ErrBusy
	}
	now := s.now()
	snap := s.snap.Load()
	phase := s.currentPhaseLocked(now, snap.Station)
	settings := snap.Settings.Get(phase)
	s.state = StateCapturing
	s.mu.Unlock()

	return s.execute(ctx, snap, phase, settings, now)
}

// currentPhaseLocked returns the twilight phase for now, recomputing only
// when the cached phase has crossed its boundary. Caller holds s.mu.
func (s *Scheduler) currentPhaseLocked(now time.Time, st station.Station) astro.TwilightPhase {
	if s.phaseValid && now.Before(s.phaseExpiry) {
		return s.phase
	}
	phase, boundary := s.phaseFunc(now, st)
	s.phase = phase
	s.phaseValid = true
	if boundary.IsZero() {
		s.phaseExpiry = now.Add(phaseRecheck)
	} else {
		s.phaseExpiry = boundary
	}
	s.logger.Info("🌗 Twilight phase is %s until %s", phase, s.phaseExpiry.Format(time.RFC3339))
	return phase
}

// Start arms the scheduler. Safe to call repeatedly.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	if s.state == StateIdle {
		s.state = StateArmed
	}
}

// Stop disarms the scheduler. An in-flight capture is never interrupted; it
// finishes, cools down and lands in Idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	if s.state == StateArmed {
		s.state = StateIdle
	}
}

// ApplySettings swaps in a new settings table. Jobs already in flight keep
// the snapshot they started with.
func (s *Scheduler) ApplySettings(table *config.SettingsTable) {
	for {
		old := s.snap.Load()
		next := &Snapshot{Station: old.Station, Settings: table}
		if s.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetStation swaps in a new station and invalidates the cached phase, since
// phase boundaries depend on the coordinates.
func (s *Scheduler) SetStation(st station.Station) {
	for {
		old := s.snap.Load()
		next := &Snapshot{Station: st, Settings: old.Settings}
		if s.snap.CompareAndSwap(old, next) {
			break
		}
	}
	s.mu.Lock()
	s.phaseValid = false
	s.mu.Unlock()
}

// SnapshotNow returns the snapshot the next job would use.
func (s *Scheduler) SnapshotNow() *Snapshot {
	return s.snap.Load()
}

// StateNow reports the current lifecycle state and whether the scheduler is
// enabled.
func (s *Scheduler) StateNow() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.enabled
}

// PhaseNow returns the twilight phase a job started now would use.
func (s *Scheduler) PhaseNow() astro.TwilightPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap.Load()
	return s.currentPhaseLocked(s.now(), snap.Station)
}

// Close terminates the Run loop.
func (s *Scheduler) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
