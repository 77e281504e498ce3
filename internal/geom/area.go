package geom

import "math"

// EarthRadius is the WGS84 equatorial radius in meters.
const EarthRadius = 6378137.0

// Area returns the approximate geodesic area of mp in square meters. Holes
// are subtracted from their shells.
func Area(mp MultiPolygon) float64 {
	total := 0.0
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		a := math.Abs(ringArea(poly[0]))
		for _, hole := range poly[1:] {
			a -= math.Abs(ringArea(hole))
		}
		if a > 0 {
			total += a
		}
	}
	return total
}

// ringArea is the spherical excess approximation of Chamberlain and
// Duquette (2007), the same one Mapbox and Turf use.
func ringArea(ring Ring) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	total := 0.0
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]
		p3 := ring[(i+2)%n]
		total += (rad(p3[0]) - rad(p1[0])) * math.Sin(rad(p2[1]))
	}
	return total * EarthRadius * EarthRadius / 2
}
