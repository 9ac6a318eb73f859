package geo

import (
	"math"
	"testing"
)

func TestDistanceSamePoint(t *testing.T) {
	c := NewCalculator()
	if d := c.Distance(-34.603722, -58.381592, -34.603722, -58.381592); d != 0 {
		t.Errorf("expected 0 for identical points, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	c := NewCalculator()
	d1 := c.Distance(51.5074, -0.1278, 40.7128, -74.0060)
	d2 := c.Distance(40.7128, -74.0060, 51.5074, -0.1278)
	if d1 != d2 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceOneDegreeLongitudeAtEquator(t *testing.T) {
	c := NewCalculator()
	d := c.Distance(0, 0, 0, 1)
	// 1 degree of longitude at the equator is ~111.195 km.
	if math.Abs(d-111195) > 10 {
		t.Errorf("expected ~111195m, got %f", d)
	}
}

func TestDistanceShortHop(t *testing.T) {
	c := NewCalculator()
	d := c.Distance(-34.603722, -58.381592, -34.605123, -58.383456)
	if math.Abs(d-215.34) > 1.0 {
		t.Errorf("expected ~215.34m, got %f", d)
	}
}

func TestDistanceCustomRadius(t *testing.T) {
	c := &Calculator{RadiusMeters: EarthRadiusMeters * 2}
	base := NewCalculator().Distance(0, 0, 0, 1)
	if d := c.Distance(0, 0, 0, 1); math.Abs(d-2*base) > 0.01 {
		t.Errorf("doubling the radius should double the distance: %f vs %f", d, base)
	}
}

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{-90, -180, true},
		{90, 180, true},
		{-90.0001, 0, false},
		{90.0001, 0, false},
		{0, -180.0001, false},
		{0, 180.0001, false},
	}
	for _, tc := range cases {
		if got := ValidCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("ValidCoordinates(%f, %f) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}
