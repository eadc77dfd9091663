package station

import (
	"errors"
	"testing"
)

func TestNewValidStation(t *testing.T) {
	st, err := New("Shanghai", 31.2304, 121.4737)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if st.Name != "Shanghai" || st.Latitude != 31.2304 || st.Longitude != 121.4737 {
		t.Fatalf("unexpected station: %+v", st)
	}
}

func TestNewRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name    string
		station string
		lat     float64
		lon     float64
		field   string
	}{
		{"empty name", "", 0, 0, "name"},
		{"lat too high", "bad", 90.1, 0, "latitude"},
		{"lat too low", "bad", -90.1, 0, "latitude"},
		{"lon too high", "bad", 0, 180.1, "longitude"},
		{"lon too low", "bad", 0, -180.1, "longitude"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.station, tc.lat, tc.lon)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, vErr.Field)
			}
		})
	}
}

func TestNewAcceptsBoundaryValues(t *testing.T) {
	if _, err := New("pole", 90, 180); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
	if _, err := New("antipole", -90, -180); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
}
