package weather

import "errors"

// ErrUnavailable signals that no weather data can be served right now. The
// capture pipeline treats it as a degraded overlay layer, never a failure.
var ErrUnavailable = errors.New("weather data unavailable")

// Data holds display-ready current conditions keyed by overlay panel item.
type Data map[string]string

// PanelItems is the fixed overlay panel layout. Items without data render as
// "N/A" so the panel is never silently shorter.
var PanelItems = []string{
	"Cloud Cover",
	"Humidity",
	"Dew Point",
	"Pressure",
	"Wind Speed",
	"Wind Gust",
	"SkyTemperature",
	"Temperature",
	"Sky Quality",
	"Rain Rate",
}

// Provider is an optional collaborator supplying current conditions. The
// core functions with it absent or failing.
type Provider interface {
	FetchCurrent() (Data, error)
}
