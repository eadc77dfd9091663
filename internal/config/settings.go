package config

import (
	"errors"
	"fmt"

	"github.com/rockets-cn/allsky/internal/astro"
)

// ErrInvalidSettings marks a rejected settings update. Wrapped errors carry
// the specific field and phase; the HTTP layer maps this to a 4xx response.
var ErrInvalidSettings = errors.New("invalid camera settings")

// PhaseSettings are the capture parameters applied for one twilight phase.
type PhaseSettings struct {
	Exposure float64 `json:"exposure"`
	Gain     int     `json:"gain"`
}

// SettingsTable maps every twilight phase to its capture parameters. Tables
// are immutable once built: updates construct a new table and swap it in as
// a whole, so readers never observe a partially applied change.
type SettingsTable struct {
	settings [5]PhaseSettings
}

// NewSettingsTable validates one entry per phase against the device exposure
// range and returns an immutable table. All five phases are required.
func NewSettingsTable(perPhase map[astro.TwilightPhase]PhaseSettings, exposureMin, exposureMax float64) (*SettingsTable, error) {
	var t SettingsTable
	for _, phase := range astro.Phases() {
		s, ok := perPhase[phase]
		if !ok {
			return nil, fmt.Errorf("%w: missing settings for phase %s", ErrInvalidSettings, phase)
		}
		if s.Exposure < exposureMin || s.Exposure > exposureMax {
			return nil, fmt.Errorf("%w: exposure %.1f for phase %s outside device range [%.1f, %.1f]",
				ErrInvalidSettings, s.Exposure, phase, exposureMin, exposureMax)
		}
		if s.Gain < 0 {
			return nil, fmt.Errorf("%w: gain %d for phase %s must be >= 0", ErrInvalidSettings, s.Gain, phase)
		}
		t.settings[phase] = s
	}
	return &t, nil
}

// Get returns the capture parameters for the given phase.
func (t *SettingsTable) Get(phase astro.TwilightPhase) PhaseSettings {
	return t.settings[phase]
}

// All returns the table keyed by phase name, for API responses.
func (t *SettingsTable) All() map[string]PhaseSettings {
	out := make(map[string]PhaseSettings, len(t.settings))
	for _, phase := range astro.Phases() {
		out[phase.String()] = t.settings[phase]
	}
	return out
}

// DefaultSettings are the stock per-phase parameters: short day exposures,
// progressively longer and higher-gain captures toward full night.
func DefaultSettings() map[astro.TwilightPhase]PhaseSettings {
	return map[astro.TwilightPhase]PhaseSettings{
		astro.Day:                  {Exposure: -5, Gain: 10},
		astro.CivilTwilight:        {Exposure: -2, Gain: 15},
		astro.NauticalTwilight:     {Exposure: 0, Gain: 20},
		astro.AstronomicalTwilight: {Exposure: 3, Gain: 30},
		astro.Night:                {Exposure: 5, Gain: 40},
	}
}

// DefaultSettingsTable builds the stock table against the configured device
// exposure range.
func (c *Config) DefaultSettingsTable() (*SettingsTable, error) {
	return NewSettingsTable(DefaultSettings(), c.ExposureMin, c.ExposureMax)
}
