package astro

import (
	"math"
	"sort"
	"time"

	"github.com/rockets-cn/allsky/internal/station"
)

// Star is one catalog entry with J2000 equatorial coordinates in degrees.
type Star struct {
	Name      string
	RA        float64
	Dec       float64
	Magnitude float64
}

// brightStars is a fixed subset of the brightest Hipparcos stars. Enough for
// orientation labels on an all-sky frame; full catalog identification is out
// of scope.
var brightStars = []Star{
	{"Sirius", 101.287, -16.716, -1.46},
	{"Canopus", 95.988, -52.696, -0.74},
	{"Arcturus", 213.915, 19.182, -0.05},
	{"Vega", 279.234, 38.784, 0.03},
	{"Capella", 79.172, 45.998, 0.08},
	{"Rigel", 78.634, -8.202, 0.13},
	{"Procyon", 114.825, 5.225, 0.34},
	{"Betelgeuse", 88.793, 7.407, 0.50},
	{"Achernar", 24.429, -57.237, 0.46},
	{"Hadar", 210.956, -60.373, 0.61},
	{"Altair", 297.696, 8.868, 0.77},
	{"Aldebaran", 68.980, 16.509, 0.85},
	{"Antares", 247.352, -26.432, 1.09},
	{"Spica", 201.298, -11.161, 1.04},
	{"Pollux", 116.329, 28.026, 1.14},
	{"Fomalhaut", 344.413, -29.622, 1.16},
	{"Deneb", 310.358, 45.280, 1.25},
	{"Regulus", 152.093, 11.967, 1.35},
	{"Adhara", 104.656, -28.972, 1.50},
	{"Castor", 113.650, 31.888, 1.57},
}

// StarLabel is a named annotation anchored at pixel coordinates.
type StarLabel struct {
	Name string
	X    int
	Y    int
}

// Catalog provides star annotations for captured frames. It is an optional
// collaborator: a nil *Catalog simply yields no labels.
type Catalog struct {
	maxMagnitude float64
	minAltitude  float64
}

// NewCatalog bounds the annotation set by apparent magnitude and minimum
// altitude above the horizon.
func NewCatalog(maxMagnitude, minAltitude float64) *Catalog {
	return &Catalog{maxMagnitude: maxMagnitude, minAltitude: minAltitude}
}

// Labels projects the visible catalog stars onto a zenith-centered all-sky
// frame of the given size. Brightest stars first, capped at maxStars.
func (c *Catalog) Labels(t time.Time, st station.Station, width, height, maxStars int) []StarLabel {
	if c == nil || width <= 0 || height <= 0 {
		return nil
	}

	type candidate struct {
		star    Star
		alt, az float64
	}
	var visible []candidate
	for _, s := range brightStars {
		if s.Magnitude > c.maxMagnitude {
			continue
		}
		alt, az := horizontal(s.RA, s.Dec, st.Latitude, st.Longitude, t)
		if alt < c.minAltitude {
			continue
		}
		visible = append(visible, candidate{star: s, alt: alt, az: az})
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].star.Magnitude < visible[j].star.Magnitude })

	// Zenith at the image center, horizon at the edge of the inscribed
	// circle; radial distance is linear in zenith angle.
	cx, cy := float64(width)/2, float64(height)/2
	scale := math.Min(float64(width), float64(height)) / 2

	var labels []StarLabel
	for _, v := range visible {
		if maxStars > 0 && len(labels) >= maxStars {
			break
		}
		r := (90 - v.alt) / 90 * scale
		x := int(cx + r*math.Sin(rad(v.az)))
		y := int(cy - r*math.Cos(rad(v.az)))
		if x < 0 || x >= width || y < 0 || y >= height {
			continue
		}
		labels = append(labels, StarLabel{Name: v.star.Name, X: x, Y: y})
	}
	return labels
}

// horizontal converts equatorial coordinates (degrees) to altitude/azimuth
// for an observer, azimuth measured clockwise from north.
func horizontal(ra, dec, latitude, longitude float64, t time.Time) (alt, az float64) {
	jd := julianDay(t.UTC())
	gmst := math.Mod(280.46061837+360.98564736629*(jd-2451545.0), 360)
	if gmst < 0 {
		gmst += 360
	}
	lst := math.Mod(gmst+longitude+360, 360)
	ha := math.Mod(lst-ra+360, 360)

	sinAlt := math.Sin(rad(dec))*math.Sin(rad(latitude)) +
		math.Cos(rad(dec))*math.Cos(rad(latitude))*math.Cos(rad(ha))
	sinAlt = math.Max(-1, math.Min(1, sinAlt))
	alt = deg(math.Asin(sinAlt))

	cosAz := (math.Sin(rad(dec)) - sinAlt*math.Sin(rad(latitude))) /
		(math.Cos(rad(alt)) * math.Cos(rad(latitude)))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	az = deg(math.Acos(cosAz))
	if math.Sin(rad(ha)) > 0 {
		az = 360 - az
	}
	return alt, az
}
