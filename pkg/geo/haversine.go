// Package geo holds the distance functions used for heuristics and segment costs.
// Points are orb.Point values in [lng, lat] order.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

const degToRad = math.Pi / 180

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b orb.Point) float64 {
	lat1r := a[1] * degToRad
	lat2r := b[1] * degToRad
	dLat := (b[1] - a[1]) * degToRad
	dLon := (b[0] - a[0]) * degToRad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// EquirectangularDist returns an approximate distance in meters.
// Roughly 3x faster than Haversine and accurate to <0.5% for points a few
// kilometers apart. Use for ranking candidates, not for edge costs.
func EquirectangularDist(a, b orb.Point) float64 {
	x := (b[0] - a[0]) * math.Cos((a[1]+b[1])/2*degToRad) * degToRad
	y := (b[1] - a[1]) * degToRad
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// LineLength returns the haversine length of a polyline in meters.
func LineLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Haversine(ls[i-1], ls[i])
	}
	return total
}
