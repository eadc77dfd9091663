package astro

import "fmt"

// TwilightPhase is one of the five solar-elevation bands used to select
// capture parameters. Phases are ordered by decreasing solar elevation.
type TwilightPhase int

const (
	Day TwilightPhase = iota
	CivilTwilight
	NauticalTwilight
	AstronomicalTwilight
	Night
)

// Solar elevation thresholds between phases, in degrees. A phase covers the
// half-open band [lower, upper): Day >= 0, Civil [-6, 0), Nautical [-12, -6),
// Astronomical [-18, -12), Night < -18.
const (
	CivilThreshold        = 0.0
	NauticalThreshold     = -6.0
	AstronomicalThreshold = -12.0
	NightThreshold        = -18.0
)

// PhaseForElevation maps a solar elevation in degrees to its twilight phase.
// Exactly one phase matches any elevation.
func PhaseForElevation(elevation float64) TwilightPhase {
	switch {
	case elevation >= CivilThreshold:
		return Day
	case elevation >= NauticalThreshold:
		return CivilTwilight
	case elevation >= AstronomicalThreshold:
		return NauticalTwilight
	case elevation >= NightThreshold:
		return AstronomicalTwilight
	default:
		return Night
	}
}

// Phases lists all five phases in elevation order, Day first.
func Phases() [5]TwilightPhase {
	return [5]TwilightPhase{Day, CivilTwilight, NauticalTwilight, AstronomicalTwilight, Night}
}

func (p TwilightPhase) String() string {
	switch p {
	case Day:
		return "day"
	case CivilTwilight:
		return "civil"
	case NauticalTwilight:
		return "nautical"
	case AstronomicalTwilight:
		return "astronomical"
	case Night:
		return "night"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase converts the wire/config name of a phase back to its value.
func ParsePhase(name string) (TwilightPhase, error) {
	switch name {
	case "day":
		return Day, nil
	case "civil":
		return CivilTwilight, nil
	case "nautical":
		return NauticalTwilight, nil
	case "astronomical":
		return AstronomicalTwilight, nil
	case "night":
		return Night, nil
	default:
		return Day, fmt.Errorf("unknown twilight phase %q", name)
	}
}

// MarshalJSON renders the phase by name so API payloads stay readable.
func (p TwilightPhase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts the phase name produced by MarshalJSON.
func (p *TwilightPhase) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("twilight phase must be a JSON string, got %s", data)
	}
	parsed, err := ParsePhase(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
