package station

import "fmt"

// Station is an immutable snapshot of the observer location. It is replaced
// wholesale when the operator updates the configuration, never mutated in
// place, so in-flight capture jobs keep the location they started with.
type Station struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ValidationError describes a rejected station field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid station %s: %s", e.Field, e.Reason)
}

// New validates the observer location and returns an immutable Station.
func New(name string, latitude, longitude float64) (Station, error) {
	if name == "" {
		return Station{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if latitude < -90 || latitude > 90 {
		return Station{}, &ValidationError{Field: "latitude", Reason: fmt.Sprintf("%.4f outside [-90, 90]", latitude)}
	}
	if longitude < -180 || longitude > 180 {
		return Station{}, &ValidationError{Field: "longitude", Reason: fmt.Sprintf("%.4f outside [-180, 180]", longitude)}
	}
	return Station{Name: name, Latitude: latitude, Longitude: longitude}, nil
}
