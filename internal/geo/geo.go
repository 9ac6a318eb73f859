package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by default.
const EarthRadiusMeters = 6371000.0

// Calculator computes great-circle distances on a sphere of the
// configured radius.
type Calculator struct {
	RadiusMeters float64
}

// NewCalculator returns a Calculator using the mean Earth radius.
func NewCalculator() *Calculator {
	return &Calculator{RadiusMeters: EarthRadiusMeters}
}

// Distance returns the Haversine distance in meters between two
// coordinate pairs, rounded to 6 decimal places. It is symmetric and
// zero for identical points.
func (c *Calculator) Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	rLat1 := toRadians(lat1)
	rLat2 := toRadians(lat2)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	d := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))

	return round6(c.RadiusMeters * d)
}

// ValidCoordinates reports whether lat/lon fall in the valid
// geographic ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
