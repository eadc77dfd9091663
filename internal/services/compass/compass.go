package compass

import "errors"

// ErrUnavailable signals that no mount heading is known. The compass overlay
// then renders north-up instead of failing.
var ErrUnavailable = errors.New("compass heading unavailable")

// Provider is an optional collaborator reporting the camera mount heading in
// degrees clockwise from true north.
type Provider interface {
	FetchCurrent() (float64, error)
}

// StaticProvider reports a fixed heading from configuration. Stations with a
// rigid mount set COMPASS_HEADING once at install time.
type StaticProvider struct {
	heading    float64
	configured bool
}

// NewStaticProvider returns a provider for the configured heading; with
// configured false it always reports ErrUnavailable.
func NewStaticProvider(headingDeg float64, configured bool) *StaticProvider {
	return &StaticProvider{heading: headingDeg, configured: configured}
}

// FetchCurrent returns the configured heading.
func (p *StaticProvider) FetchCurrent() (float64, error) {
	if !p.configured {
		return 0, ErrUnavailable
	}
	return p.heading, nil
}
