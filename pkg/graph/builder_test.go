package graph

import (
	"io"
	"log"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geopath/pkg/network"
)

var quiet = LoadOptions{Logger: log.New(io.Discard, "", 0)}

func segment(id string, cost float64, dir network.Direction, coords ...orb.Point) network.Segment {
	return network.Segment{
		Coordinates: orb.LineString(coords),
		Cost:        cost,
		Direction:   dir,
		Properties:  geojson.Properties{network.IDKey: id},
	}
}

func edgeTo(t *testing.T, g *Graph, from, to string) Edge {
	t.Helper()
	u, ok := g.Lookup(from)
	require.True(t, ok, "node %s", from)
	v, ok := g.Lookup(to)
	require.True(t, ok, "node %s", to)
	var found []Edge
	for _, e := range g.EdgesFrom(u) {
		if e.To == v {
			found = append(found, e)
		}
	}
	require.Len(t, found, 1, "edges %s -> %s", from, to)
	return found[0]
}

func TestAddEdgeDirected(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", Attributes{Cost: 1}, false))

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	a, _ := g.Lookup("A")
	b, _ := g.Lookup("B")
	assert.Len(t, g.EdgesFrom(a), 1)
	assert.Empty(t, g.EdgesFrom(b))
	assert.False(t, g.IsGeometric())
}

func TestAddEdgeUndirected(t *testing.T) {
	g := New()
	geom := orb.LineString{{0, 0}, {0.5, 0}, {1, 0}}
	require.NoError(t, g.AddEdge("A", "B", Attributes{
		Cost:       2,
		Geometry:   geom,
		Properties: geojson.Properties{"_id": "ab"},
	}, true))

	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.IsGeometric())

	fwd := edgeTo(t, g, "A", "B")
	bwd := edgeTo(t, g, "B", "A")
	assert.Equal(t, fwd.Attr, bwd.Attr)
	assert.False(t, fwd.Reverse)
	assert.True(t, bwd.Reverse)
	assert.Equal(t, 2.0, bwd.Cost)
	assert.Equal(t, orb.Point{0, 0}, fwd.FromCoord)
	assert.Equal(t, orb.Point{1, 0}, fwd.ToCoord)
	assert.Equal(t, orb.Point{1, 0}, bwd.FromCoord)
	assert.Equal(t, geom, g.Geometry(fwd.Attr))
	assert.Equal(t, "ab", g.Properties(bwd.Attr)["_id"])
}

func TestAddEdgeInvalid(t *testing.T) {
	g := New()
	assert.ErrorIs(t, g.AddEdge("A", "B", Attributes{Cost: -1}, false), ErrInvalidCost)
	assert.ErrorIs(t, g.AddEdge("A", "B", Attributes{Cost: math.NaN()}, false), ErrInvalidCost)
	assert.ErrorIs(t, g.AddEdge("A", "B", Attributes{Cost: math.Inf(1)}, false), ErrInvalidCost)
	assert.ErrorIs(t, g.AddEdge("", "B", Attributes{Cost: 1}, false), ErrEmptyNode)
	assert.Zero(t, g.NodeCount())
	assert.Zero(t, g.EdgeCount())
}

func TestLoadSegmentsAsymmetricCosts(t *testing.T) {
	s := segment("ab", 3, network.Both, orb.Point{0, 0}, orb.Point{1, 1})
	s.ForwardCost, s.BackwardCost = 2, 5
	// A parallel copy that is cheaper only backward.
	dup := segment("ab2", 4, network.Both, orb.Point{0, 0}, orb.Point{1, 1})

	g, stats := FromSegments([]network.Segment{s, dup}, quiet)

	assert.Equal(t, 2, stats.Segments)
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 2, stats.PrunedDirections)

	a, b := network.NodeKey(orb.Point{0, 0}), network.NodeKey(orb.Point{1, 1})
	fwd := edgeTo(t, g, a, b)
	bwd := edgeTo(t, g, b, a)
	assert.Equal(t, 2.0, fwd.Cost)
	assert.Equal(t, "ab", g.Properties(fwd.Attr)[network.IDKey])
	assert.Equal(t, 4.0, bwd.Cost)
	assert.Equal(t, "ab2", g.Properties(bwd.Attr)[network.IDKey])
	assert.True(t, bwd.Reverse)
}

func TestLoadSegmentsOneWay(t *testing.T) {
	g, _ := FromSegments([]network.Segment{
		segment("f", 1, network.Forward, orb.Point{0, 0}, orb.Point{1, 0}),
		segment("b", 1, network.Backward, orb.Point{1, 0}, orb.Point{2, 0}),
	}, quiet)

	assert.Equal(t, 2, g.EdgeCount())
	edgeTo(t, g, "0,0", "1,0")
	e := edgeTo(t, g, "2,0", "1,0")
	assert.True(t, e.Reverse)
}

func TestLoadSegmentsNonGeometric(t *testing.T) {
	g, stats := FromSegments([]network.Segment{
		segment("geo", 1, network.Both, orb.Point{0, 0}, orb.Point{1, 0}),
		{From: "1,0", To: "depot", Cost: 1, Properties: geojson.Properties{network.IDKey: "bare"}},
	}, quiet)

	assert.Equal(t, 2, stats.Segments)
	assert.False(t, g.IsGeometric())
	depot, ok := g.Lookup("depot")
	require.True(t, ok)
	_, located := g.Coordinate(depot)
	assert.False(t, located)

	// Later geometric edges never restore the flag.
	require.NoError(t, g.AddEdge("depot", "2,0", Attributes{Cost: 1, Geometry: orb.LineString{{5, 5}, {2, 0}}}, false))
	assert.False(t, g.IsGeometric())
}

func TestLoadSegmentsSkipsMalformed(t *testing.T) {
	segs := []network.Segment{
		segment("nocost", math.NaN(), network.Both, orb.Point{0, 0}, orb.Point{1, 0}),
		segment("ok", 1, network.Both, orb.Point{0, 0}, orb.Point{1, 0}),
	}
	for _, opts := range []LoadOptions{quiet, {SkipCleanse: true, Logger: quiet.Logger}} {
		g, stats := FromSegments(segs, opts)
		assert.Equal(t, 1, stats.Malformed)
		assert.Equal(t, 1, stats.Segments)
		assert.Equal(t, 2, g.EdgeCount())
		assert.True(t, g.IsGeometric())
	}
}

func TestLoadGeoJSON(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.LineString{{0, 0}, {1, 0}})
	f.Properties["_cost"] = 1.5
	f.Properties["_direction"] = "f"
	fc.Append(f)

	g := New()
	stats := g.LoadGeoJSON(fc, quiet)
	assert.Equal(t, 1, stats.Edges)
	assert.Equal(t, 1.5, edgeTo(t, g, "0,0", "1,0").Cost)
}
