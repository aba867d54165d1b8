package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrInvalidCost = errors.New("edge cost must be a finite non-negative number")
	ErrEmptyNode   = errors.New("node identity must not be empty")
)

// Edge is one traversable direction of a stored segment.
type Edge struct {
	From uint32
	To   uint32
	Cost float64

	// Endpoint coordinates, copied from the node table at insertion. Zero
	// when the node has no known location.
	FromCoord orb.Point
	ToCoord   orb.Point

	// Attr indexes the geometry and property tables. Both directions of a
	// bidirectional segment share one entry.
	Attr uint32
	// Reverse marks traversal against the stored geometry orientation.
	Reverse bool
}

// Attributes describe a segment passed to AddEdge.
type Attributes struct {
	Cost       float64
	Geometry   orb.LineString
	Properties geojson.Properties
}

// Graph is an adjacency list over string node identities. Identities are
// mapped to dense uint32 indices owned by the graph.
//
// A Graph is safe for concurrent reads. Mutation must not overlap with queries.
type Graph struct {
	nodes     []string
	index     map[string]uint32
	coords    []orb.Point
	located   []bool
	adjacency [][]Edge
	numEdges  int

	// Per-segment attribute tables, indexed by Edge.Attr.
	geometry   []orb.LineString
	properties []geojson.Properties

	// nonGeometric is set once any segment arrives without geometry and is
	// never cleared.
	nonGeometric bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]uint32)}
}

// AddEdge appends an edge from -> to, and to -> from as well when undirected.
// Both records share cost, geometry and properties. A missing or degenerate
// geometry marks the whole graph as non-geometric.
func (g *Graph) AddEdge(from, to string, attrs Attributes, undirected bool) error {
	if from == "" || to == "" {
		return ErrEmptyNode
	}
	if !validCost(attrs.Cost) {
		return fmt.Errorf("edge %s -> %s: %w (got %v)", from, to, ErrInvalidCost, attrs.Cost)
	}
	u, v, attr := g.addSegment(from, to, attrs.Geometry, attrs.Properties)
	g.link(u, v, attrs.Cost, attr, false)
	if undirected {
		g.link(v, u, attrs.Cost, attr, true)
	}
	return nil
}

// addSegment registers the endpoints and attribute row of a segment.
func (g *Graph) addSegment(from, to string, geom orb.LineString, props geojson.Properties) (uint32, uint32, uint32) {
	u := g.node(from)
	v := g.node(to)
	if len(geom) >= 2 {
		g.locate(u, geom[0])
		g.locate(v, geom[len(geom)-1])
	} else {
		geom = nil
		g.nonGeometric = true
	}
	attr := uint32(len(g.geometry))
	g.geometry = append(g.geometry, geom)
	g.properties = append(g.properties, props)
	return u, v, attr
}

func (g *Graph) link(u, v uint32, cost float64, attr uint32, reverse bool) {
	g.adjacency[u] = append(g.adjacency[u], Edge{
		From:      u,
		To:        v,
		Cost:      cost,
		FromCoord: g.coords[u],
		ToCoord:   g.coords[v],
		Attr:      attr,
		Reverse:   reverse,
	})
	g.numEdges++
}

// node returns the index of id, registering it on first sight.
func (g *Graph) node(id string) uint32 {
	if g.index == nil {
		g.index = make(map[string]uint32)
	}
	if idx, ok := g.index[id]; ok {
		return idx
	}
	idx := uint32(len(g.nodes))
	g.index[id] = idx
	g.nodes = append(g.nodes, id)
	g.coords = append(g.coords, orb.Point{})
	g.located = append(g.located, false)
	g.adjacency = append(g.adjacency, nil)
	return idx
}

// locate records the first known coordinate of a node.
func (g *Graph) locate(idx uint32, p orb.Point) {
	if !g.located[idx] {
		g.coords[idx] = p
		g.located[idx] = true
	}
}

// NodeCount returns the number of distinct node identities.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of directed edge records.
func (g *Graph) EdgeCount() int { return g.numEdges }

// SegmentCount returns the number of attribute rows.
func (g *Graph) SegmentCount() int { return len(g.geometry) }

// Lookup returns the index of a node identity.
func (g *Graph) Lookup(id string) (uint32, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// NodeID returns the identity of the node at idx.
func (g *Graph) NodeID(idx uint32) string { return g.nodes[idx] }

// Coordinate returns the location of the node at idx, if known.
func (g *Graph) Coordinate(idx uint32) (orb.Point, bool) {
	return g.coords[idx], g.located[idx]
}

// EdgesFrom returns the outgoing edges of node idx. The slice must not be modified.
func (g *Graph) EdgesFrom(idx uint32) []Edge { return g.adjacency[idx] }

// Geometry returns the stored geometry of a segment in input orientation.
func (g *Graph) Geometry(attr uint32) orb.LineString { return g.geometry[attr] }

// Properties returns the property bag of a segment.
func (g *Graph) Properties(attr uint32) geojson.Properties { return g.properties[attr] }

// IsGeometric reports whether every segment carried geometry.
func (g *Graph) IsGeometric() bool { return !g.nonGeometric }

func validCost(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0
}
