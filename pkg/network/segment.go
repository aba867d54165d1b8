// Package network models raw line segments of a geographic network before
// they become graph edges: direction tags, per-direction costs, GeoJSON
// decoding and duplicate cleansing.
package network

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property keys recognised on GeoJSON features.
const (
	CostKey         = "_cost"
	ForwardCostKey  = "_forward_cost"
	BackwardCostKey = "_backward_cost"
	DirectionKey    = "_direction"
	IDKey           = "_id"
)

var (
	ErrMissingCost     = errors.New("segment has no valid cost")
	ErrMissingGeometry = errors.New("segment has no endpoints")
)

// Direction says which ways a segment can be traversed relative to the
// order of its coordinates.
type Direction uint8

const (
	Both Direction = iota
	Forward
	Backward
	// None is only produced by the cleanser for a segment that lost both sides.
	None
)

// ParseDirection maps a _direction tag to a Direction. Unknown and empty
// values mean Both.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "forward":
		return Forward
	case "b", "backward":
		return Backward
	default:
		return Both
	}
}

// Forward reports whether the segment is traversable start to end.
func (d Direction) Forward() bool { return d == Both || d == Forward }

// Backward reports whether the segment is traversable end to start.
func (d Direction) Backward() bool { return d == Both || d == Backward }

func (d Direction) String() string {
	switch d {
	case Forward:
		return "f"
	case Backward:
		return "b"
	case None:
		return "none"
	default:
		return "all"
	}
}

// NodeKey is the node identity of a coordinate: "lng,lat" with the shortest
// exact decimal form of each value.
func NodeKey(p orb.Point) string {
	return strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
}

// Segment is one raw network line as supplied by an ingestion source.
type Segment struct {
	// From and To override the endpoint identities derived from Coordinates.
	From, To string

	Coordinates orb.LineString

	// Cost is the base cost. ForwardCost and BackwardCost override it per
	// direction when positive.
	Cost         float64
	ForwardCost  float64
	BackwardCost float64

	Direction  Direction
	Properties geojson.Properties
}

// Start returns the identity of the first endpoint.
func (s *Segment) Start() string {
	if s.From != "" {
		return s.From
	}
	if len(s.Coordinates) == 0 {
		return ""
	}
	return NodeKey(s.Coordinates[0])
}

// End returns the identity of the last endpoint.
func (s *Segment) End() string {
	if s.To != "" {
		return s.To
	}
	if len(s.Coordinates) == 0 {
		return ""
	}
	return NodeKey(s.Coordinates[len(s.Coordinates)-1])
}

// ForwardCostValue is the effective cost of traversing start to end.
func (s *Segment) ForwardCostValue() float64 {
	if validCost(s.ForwardCost) && s.ForwardCost > 0 {
		return s.ForwardCost
	}
	return s.Cost
}

// BackwardCostValue is the effective cost of traversing end to start.
func (s *Segment) BackwardCostValue() float64 {
	if validCost(s.BackwardCost) && s.BackwardCost > 0 {
		return s.BackwardCost
	}
	return s.Cost
}

// Geometric reports whether the segment carries a usable line geometry.
func (s *Segment) Geometric() bool {
	return len(s.Coordinates) >= 2
}

// Validate checks the fields required to turn the segment into edges.
func (s *Segment) Validate() error {
	if !validCost(s.Cost) {
		return ErrMissingCost
	}
	if s.Start() == "" || s.End() == "" {
		return ErrMissingGeometry
	}
	if !s.Geometric() && (s.From == "" || s.To == "") {
		return ErrMissingGeometry
	}
	return nil
}

// ID returns the caller supplied edge identifier, or nil.
func (s *Segment) ID() any {
	if s.Properties == nil {
		return nil
	}
	return s.Properties[IDKey]
}

func (s *Segment) clone() Segment {
	c := *s
	if s.Coordinates != nil {
		c.Coordinates = s.Coordinates.Clone()
	}
	if s.Properties != nil {
		c.Properties = s.Properties.Clone()
	}
	return c
}

func validCost(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0
}
