package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gocv.io/x/gocv"

	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
)

// ErrBusy is returned when the camera lock cannot be acquired within the
// configured wait ceiling. Callers queue behind the lock up to that ceiling,
// then fail fast so interactive latency stays bounded.
var ErrBusy = errors.New("camera busy")

// CaptureError is the terminal failure returned once the retry budget is
// exhausted. Transient device failures never surface past the arbiter in any
// other form.
type CaptureError struct {
	Attempts int
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Arbiter is the exclusive-access gate around the physical camera. At most
// one capture operation touches the device at any instant; retries with
// exponential backoff happen inside the lock, and the lock is released on
// every exit path before the frame is handed to the caller.
type Arbiter struct {
	device Device
	logger *logger.Logger

	lock chan struct{} // capacity 1, represents ownership of the device

	waitCeiling time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewArbiter wraps the device with the retry/backoff policy from cfg.
func NewArbiter(device Device, cfg *config.Config, log *logger.Logger) *Arbiter {
	return &Arbiter{
		device:      device,
		logger:      log,
		lock:        make(chan struct{}, 1),
		waitCeiling: cfg.LockWaitCeiling,
		maxAttempts: cfg.CaptureAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}
}

// Capture serializes access to the device, applies the settings and reads
// one frame. Transient failures (open failure, read failure, empty frame)
// are retried with doubling delays up to the attempt budget; exhaustion
// yields a terminal *CaptureError. The returned frame is owned by the
// caller, which must Close it.
func (a *Arbiter) Capture(ctx context.Context, settings config.PhaseSettings) (gocv.Mat, error) {
	select {
	case a.lock <- struct{}{}:
	case <-time.After(a.waitCeiling):
		return gocv.Mat{}, ErrBusy
	case <-ctx.Done():
		return gocv.Mat{}, ctx.Err()
	}

	frame, attempts, err := a.captureLocked(ctx, settings)
	<-a.lock

	if err != nil {
		return gocv.Mat{}, &CaptureError{Attempts: attempts, Err: err}
	}
	return frame, nil
}

func (a *Arbiter) captureLocked(ctx context.Context, settings config.PhaseSettings) (gocv.Mat, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.backoffBase
	bo.MaxInterval = a.backoffCap
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempts := 0
	frame, err := backoff.Retry(ctx, func() (gocv.Mat, error) {
		attempts++
		frame, err := a.attempt(settings)
		if err != nil {
			a.logger.Warning("📷 Capture attempt %d/%d failed: %v", attempts, a.maxAttempts, err)
		}
		return frame, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(a.maxAttempts)))

	return frame, attempts, err
}

// attempt runs one full open/apply/read cycle. The handle is dropped on
// failure so the next attempt starts from a fresh open.
func (a *Arbiter) attempt(settings config.PhaseSettings) (gocv.Mat, error) {
	if err := a.device.Open(); err != nil {
		return gocv.Mat{}, err
	}
	if err := a.device.Apply(settings); err != nil {
		a.device.Close()
		return gocv.Mat{}, err
	}
	frame, err := a.device.Read()
	if err != nil {
		a.device.Close()
		return gocv.Mat{}, err
	}
	return frame, nil
}

// Status reports the device state without blocking behind an in-flight
// capture: "busy" while a capture holds the lock, otherwise "ready" or
// "offline" depending on the handle.
func (a *Arbiter) Status() string {
	select {
	case a.lock <- struct{}{}:
		opened := a.device.Opened()
		<-a.lock
		if opened {
			return "ready"
		}
		return "offline"
	default:
		return "busy"
	}
}

// Release closes the device handle. Called on shutdown.
func (a *Arbiter) Release() error {
	a.lock <- struct{}{}
	defer func() { <-a.lock }()
	return a.device.Close()
}
