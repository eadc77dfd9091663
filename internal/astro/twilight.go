package astro

import (
	"time"

	"github.com/rockets-cn/allsky/internal/station"
)

// BoundaryLookahead bounds the search for the next phase change. At polar
// latitudes a single phase can persist beyond this window; the calculator
// then reports no boundary instead of searching forever.
const BoundaryLookahead = 48 * time.Hour

const boundaryScanStep = time.Minute

// CurrentPhase returns the twilight phase at now for the given station and
// the earliest future instant at which the phase changes. The returned time
// is zero when no boundary occurs within BoundaryLookahead. Pure and
// deterministic: repeated calls with the same arguments give the same result.
func CurrentPhase(now time.Time, st station.Station) (TwilightPhase, time.Time) {
	phase := PhaseForElevation(SolarElevation(now, st.Latitude, st.Longitude))
	return phase, nextBoundary(now, st, phase)
}

// nextBoundary scans forward in coarse steps until the phase differs, then
// bisects down to one-second precision. The scan is bounded by
// BoundaryLookahead so polar latitudes cannot loop indefinitely.
func nextBoundary(now time.Time, st station.Station, current TwilightPhase) time.Time {
	limit := now.Add(BoundaryLookahead)
	prev := now
	for t := now.Add(boundaryScanStep); !t.After(limit); t = t.Add(boundaryScanStep) {
		if PhaseForElevation(SolarElevation(t, st.Latitude, st.Longitude)) != current {
			return bisectBoundary(prev, t, st, current)
		}
		prev = t
	}
	return time.Time{}
}

func bisectBoundary(lo, hi time.Time, st station.Station, current TwilightPhase) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if PhaseForElevation(SolarElevation(mid, st.Latitude, st.Longitude)) != current {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}
