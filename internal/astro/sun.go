package astro

import (
	"math"
	"time"
)

// Solar position from the NOAA low-accuracy formulas. Accuracy is well within
// a tenth of a degree, far tighter than the 6-degree twilight bands it feeds.

func julianDay(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000.0 + 2440587.5
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// solarCoordinates returns the sun's declination (degrees) and the equation
// of time (minutes) for the given instant.
func solarCoordinates(t time.Time) (declination, eqOfTime float64) {
	jc := (julianDay(t.UTC()) - 2451545.0) / 36525.0

	meanLong := math.Mod(280.46646+jc*(36000.76983+jc*0.0003032), 360)
	meanAnom := 357.52911 + jc*(35999.05029-0.0001537*jc)
	eccent := 0.016708634 - jc*(0.000042037+0.0000001267*jc)

	eqCtr := math.Sin(rad(meanAnom))*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(rad(2*meanAnom))*(0.019993-0.000101*jc) +
		math.Sin(rad(3*meanAnom))*0.000289
	trueLong := meanLong + eqCtr
	appLong := trueLong - 0.00569 - 0.00478*math.Sin(rad(125.04-1934.136*jc))

	meanObliq := 23 + (26+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813))))/60/60
	obliqCorr := meanObliq + 0.00256*math.Cos(rad(125.04-1934.136*jc))

	declination = deg(math.Asin(math.Sin(rad(obliqCorr)) * math.Sin(rad(appLong))))

	vary := math.Tan(rad(obliqCorr/2)) * math.Tan(rad(obliqCorr/2))
	eqOfTime = 4 * deg(vary*math.Sin(2*rad(meanLong))-
		2*eccent*math.Sin(rad(meanAnom))+
		4*eccent*vary*math.Sin(rad(meanAnom))*math.Cos(2*rad(meanLong))-
		0.5*vary*vary*math.Sin(4*rad(meanLong))-
		1.25*eccent*eccent*math.Sin(2*rad(meanAnom)))
	return declination, eqOfTime
}

// SolarElevation computes the geometric elevation of the sun in degrees for
// an observer at the given coordinates. Pure and deterministic; atmospheric
// refraction is ignored since the twilight thresholds are geometric.
func SolarElevation(t time.Time, latitude, longitude float64) float64 {
	utc := t.UTC()
	declination, eqOfTime := solarCoordinates(utc)

	minutes := float64(utc.Hour())*60 + float64(utc.Minute()) + float64(utc.Second())/60
	trueSolarTime := math.Mod(minutes+eqOfTime+4*longitude+1440, 1440)
	hourAngle := trueSolarTime/4 - 180
	if hourAngle < -180 {
		hourAngle += 360
	}

	cosZenith := math.Sin(rad(latitude))*math.Sin(rad(declination)) +
		math.Cos(rad(latitude))*math.Cos(rad(declination))*math.Cos(rad(hourAngle))
	cosZenith = math.Max(-1, math.Min(1, cosZenith))
	return 90 - deg(math.Acos(cosZenith))
}

// SunTimes returns sunrise and sunset (UTC) for the calendar date of t at the
// given coordinates. ok is false during polar day or polar night, when the
// sun never crosses the horizon.
func SunTimes(t time.Time, latitude, longitude float64) (sunrise, sunset time.Time, ok bool) {
	utc := t.UTC()
	noonGuess := time.Date(utc.Year(), utc.Month(), utc.Day(), 12, 0, 0, 0, time.UTC)
	declination, eqOfTime := solarCoordinates(noonGuess)

	// Standard sunrise zenith of 90.833 degrees accounts for refraction and
	// the solar disc radius.
	cosHA := math.Cos(rad(90.833))/(math.Cos(rad(latitude))*math.Cos(rad(declination))) -
		math.Tan(rad(latitude))*math.Tan(rad(declination))
	if cosHA < -1 || cosHA > 1 {
		return time.Time{}, time.Time{}, false
	}
	haSunrise := deg(math.Acos(cosHA))

	solarNoon := 720 - 4*longitude - eqOfTime // minutes after midnight UTC
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	sunrise = midnight.Add(time.Duration((solarNoon - 4*haSunrise) * float64(time.Minute)))
	sunset = midnight.Add(time.Duration((solarNoon + 4*haSunrise) * float64(time.Minute)))
	return sunrise, sunset, true
}
