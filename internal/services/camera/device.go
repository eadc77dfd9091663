package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/rockets-cn/allsky/internal/config"
)

// Device abstracts the physical capture hardware behind the arbiter. All
// calls happen under the arbiter's exclusive lock.
type Device interface {
	Open() error
	Opened() bool
	Apply(settings config.PhaseSettings) error
	Read() (gocv.Mat, error)
	Close() error
}

// VideoDevice drives a local camera through OpenCV. The handle is opened
// lazily and reopened after a failed read.
type VideoDevice struct {
	index   int
	capture *gocv.VideoCapture
	last    config.PhaseSettings
	hasLast bool
}

// NewVideoDevice wraps the camera at the given OS device index.
func NewVideoDevice(index int) *VideoDevice {
	return &VideoDevice{index: index}
}

// Open ensures the device handle exists and responds.
func (d *VideoDevice) Open() error {
	if d.capture != nil && d.capture.IsOpened() {
		return nil
	}
	capture, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return fmt.Errorf("camera %d: %w", d.index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("camera %d: device did not open", d.index)
	}
	d.capture = capture
	d.hasLast = false
	return nil
}

// Opened reports whether the device handle is live.
func (d *VideoDevice) Opened() bool {
	return d.capture != nil && d.capture.IsOpened()
}

// Apply sets exposure and gain, skipping the call when the settings are
// unchanged since the last apply on this handle.
func (d *VideoDevice) Apply(settings config.PhaseSettings) error {
	if d.capture == nil || !d.capture.IsOpened() {
		return fmt.Errorf("camera %d: not open", d.index)
	}
	if d.hasLast && d.last == settings {
		return nil
	}
	d.capture.Set(gocv.VideoCaptureExposure, settings.Exposure)
	d.capture.Set(gocv.VideoCaptureGain, float64(settings.Gain))
	d.last = settings
	d.hasLast = true
	return nil
}

// Read grabs one frame. An empty frame counts as a read failure so the
// caller's retry policy can kick in.
func (d *VideoDevice) Read() (gocv.Mat, error) {
	if d.capture == nil || !d.capture.IsOpened() {
		return gocv.Mat{}, fmt.Errorf("camera %d: not open", d.index)
	}
	frame := gocv.NewMat()
	if ok := d.capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("camera %d: failed to read frame", d.index)
	}
	return frame, nil
}

// Close releases the device handle.
func (d *VideoDevice) Close() error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	d.hasLast = false
	return err
}
