package astro

import (
	"testing"
	"time"

	"github.com/rockets-cn/allsky/internal/station"
)

func mustStation(t *testing.T, name string, lat, lon float64) station.Station {
	t.Helper()
	st, err := station.New(name, lat, lon)
	if err != nil {
		t.Fatalf("station.New failed: %v", err)
	}
	return st
}

func TestPhaseForElevation(t *testing.T) {
	cases := []struct {
		elevation float64
		want      TwilightPhase
	}{
		{10, Day},
		{0, Day},
		{-0.001, CivilTwilight},
		{-3, CivilTwilight},
		{-6, CivilTwilight},
		{-6.001, NauticalTwilight},
		{-10, NauticalTwilight},
		{-12, NauticalTwilight},
		{-15, AstronomicalTwilight},
		{-18, AstronomicalTwilight},
		{-18.001, Night},
		{-40, Night},
	}
	for _, tc := range cases {
		if got := PhaseForElevation(tc.elevation); got != tc.want {
			t.Errorf("PhaseForElevation(%v) = %s, want %s", tc.elevation, got, tc.want)
		}
	}
}

func TestSolarElevationMidnightNewYork(t *testing.T) {
	// Deep night in New York: well past astronomical dusk.
	st := mustStation(t, "New York", 40.7128, -74.0060)
	midnight := time.Date(2025, 1, 15, 5, 0, 0, 0, time.UTC) // 00:00 EST

	elevation := SolarElevation(midnight, st.Latitude, st.Longitude)
	if elevation >= -18 {
		t.Fatalf("expected sun below -18 at local midnight, got %.2f", elevation)
	}
	phase, _ := CurrentPhase(midnight, st)
	if phase != Night {
		t.Fatalf("expected night phase, got %s", phase)
	}
}

func TestSolarElevationNoonNewYork(t *testing.T) {
	st := mustStation(t, "New York", 40.7128, -74.0060)
	noon := time.Date(2025, 6, 21, 17, 0, 0, 0, time.UTC) // ~13:00 EDT

	elevation := SolarElevation(noon, st.Latitude, st.Longitude)
	if elevation <= 0 {
		t.Fatalf("expected sun above horizon at local noon, got %.2f", elevation)
	}
	phase, _ := CurrentPhase(noon, st)
	if phase != Day {
		t.Fatalf("expected day phase, got %s", phase)
	}
}

func TestCurrentPhaseDeterministic(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	p1, b1 := CurrentPhase(at, st)
	p2, b2 := CurrentPhase(at, st)
	if p1 != p2 || !b1.Equal(b2) {
		t.Fatalf("CurrentPhase not deterministic: (%s, %s) vs (%s, %s)", p1, b1, p2, b2)
	}
}

func TestCurrentPhaseBoundaryIsAhead(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	_, boundary := CurrentPhase(at, st)
	if boundary.IsZero() {
		t.Fatal("expected a boundary at mid latitude")
	}
	if !boundary.After(at) {
		t.Fatalf("boundary %s not after now %s", boundary, at)
	}
	if boundary.Sub(at) > BoundaryLookahead {
		t.Fatalf("boundary %s beyond lookahead window", boundary)
	}
}

func TestCurrentPhaseAtBoundaryAdvances(t *testing.T) {
	// Evaluating at the reported boundary must give a different phase,
	// otherwise the scheduler would spin on the same boundary forever.
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	phase, boundary := CurrentPhase(at, st)
	next, _ := CurrentPhase(boundary.Add(time.Second), st)
	if next == phase {
		t.Fatalf("phase did not change at boundary: still %s", phase)
	}
}

func TestCurrentPhasePolarSummerNoBoundary(t *testing.T) {
	// Midsummer at 80N: the sun never drops below the civil threshold, so
	// there is no boundary inside the lookahead window.
	st := mustStation(t, "Arctic", 80.0, 15.0)
	at := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

	phase, boundary := CurrentPhase(at, st)
	if phase != Day {
		t.Fatalf("expected polar day, got %s", phase)
	}
	if !boundary.IsZero() {
		t.Fatalf("expected zero boundary during polar day, got %s", boundary)
	}
}

func TestEveningPhaseProgression(t *testing.T) {
	// Scanning through an evening the phase sequence must only move darker:
	// day, civil, nautical, astronomical, night.
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	start := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC) // afternoon local

	seen := []TwilightPhase{}
	for offset := time.Duration(0); offset <= 8*time.Hour; offset += 5 * time.Minute {
		phase := PhaseForElevation(SolarElevation(start.Add(offset), st.Latitude, st.Longitude))
		if len(seen) == 0 || seen[len(seen)-1] != phase {
			seen = append(seen, phase)
		}
	}

	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("phase regressed during evening scan: %v", seen)
		}
	}
	if seen[0] != Day || seen[len(seen)-1] != Night {
		t.Fatalf("expected scan from day to night, got %v", seen)
	}
}

func TestSunTimes(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	at := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := SunTimes(at, st.Latitude, st.Longitude)
	if !ok {
		t.Fatal("expected sunrise/sunset at mid latitude")
	}
	if !sunset.After(sunrise) {
		t.Fatalf("sunset %s not after sunrise %s", sunset, sunrise)
	}
	if sunset.Sub(sunrise) < 8*time.Hour || sunset.Sub(sunrise) > 16*time.Hour {
		t.Fatalf("implausible day length: %s", sunset.Sub(sunrise))
	}
}

func TestSunTimesPolarNight(t *testing.T) {
	_, _, ok := SunTimes(time.Date(2025, 12, 21, 12, 0, 0, 0, time.UTC), 80.0, 15.0)
	if ok {
		t.Fatal("expected no sunrise/sunset during polar night")
	}
}

func TestParsePhaseRoundTrip(t *testing.T) {
	for _, phase := range Phases() {
		parsed, err := ParsePhase(phase.String())
		if err != nil {
			t.Fatalf("ParsePhase(%q) failed: %v", phase.String(), err)
		}
		if parsed != phase {
			t.Fatalf("round trip mismatch: %s != %s", parsed, phase)
		}
	}
	if _, err := ParsePhase("dusk"); err == nil {
		t.Fatal("expected error for unknown phase name")
	}
}
