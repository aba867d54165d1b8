package routing

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"geopath/pkg/geo"
	"geopath/pkg/graph"
)

// ErrEmptyLookup is returned by Nearest when the graph has no located nodes.
var ErrEmptyLookup = errors.New("no located nodes to snap to")

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 6_371_000.0 * math.Pi / 180

// Candidate is a graph node chosen for a query point.
type Candidate struct {
	Node   uint32
	ID     string
	Point  orb.Point
	Meters float64 // approximate distance from the query point
}

// CoordinateLookup finds the graph node closest to an arbitrary point. It
// indexes every located node once at construction and is read-only after.
type CoordinateLookup struct {
	tr   rtree.RTreeG[uint32]
	g    *graph.Graph
	size int
}

// NewCoordinateLookup indexes the located nodes of g.
func NewCoordinateLookup(g *graph.Graph) *CoordinateLookup {
	l := &CoordinateLookup{g: g}
	for i := range uint32(g.NodeCount()) {
		p, ok := g.Coordinate(i)
		if !ok {
			continue
		}
		pt := [2]float64{p[0], p[1]}
		l.tr.Insert(pt, pt, i)
		l.size++
	}
	return l
}

// Len returns the number of indexed nodes.
func (l *CoordinateLookup) Len() int { return l.size }

// Nearest returns the node closest to p.
//
// The tree orders candidates by planar distance in degrees. Candidates are
// ranked by equirectangular meters, and the walk stops once no remaining
// candidate can beat the best one.
func (l *CoordinateLookup) Nearest(p orb.Point) (Candidate, error) {
	if l.size == 0 {
		return Candidate{}, ErrEmptyLookup
	}
	target := [2]float64{p[0], p[1]}
	// Minimum meters one degree of planar distance can span near p, with
	// slack for the latitude change across the candidates visited.
	scale := 0.9 * metersPerDegree * math.Max(math.Cos(p[1]*math.Pi/180), 0.01)

	best := Candidate{Meters: math.Inf(1)}
	l.tr.Nearby(
		func(min, max [2]float64, _ uint32, _ bool) float64 {
			return boxDist(target, min, max)
		},
		func(min, _ [2]float64, node uint32, dist float64) bool {
			if dist*scale > best.Meters {
				return false
			}
			q := orb.Point{min[0], min[1]}
			if m := geo.EquirectangularDist(p, q); m < best.Meters {
				best = Candidate{Node: node, Point: q, Meters: m}
			}
			return true
		},
	)
	best.ID = l.g.NodeID(best.Node)
	return best, nil
}

// boxDist is the planar distance from p to the box [min, max].
func boxDist(p, min, max [2]float64) float64 {
	var dx, dy float64
	switch {
	case p[0] < min[0]:
		dx = min[0] - p[0]
	case p[0] > max[0]:
		dx = p[0] - max[0]
	}
	switch {
	case p[1] < min[1]:
		dy = min[1] - p[1]
	case p[1] > max[1]:
		dy = p[1] - max[1]
	}
	return math.Sqrt(dx*dx + dy*dy)
}
