package routing

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geopath/pkg/geo"
	"geopath/pkg/graph"
	"geopath/pkg/network"
	"geopath/pkg/queue"
)

var quiet = graph.LoadOptions{Logger: log.New(io.Discard, "", 0)}

// sevenNodes is the directed network
//
//	A->B(1) B->C(1) C->D(0.9) C->E(0.5) C->F(0.8) D->G(0.7) E->G(0.5) F->G(0.6)
func sevenNodes(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, e := range []struct {
		from, to string
		cost     float64
	}{
		{"A", "B", 1}, {"B", "C", 1}, {"C", "D", 0.9}, {"C", "E", 0.5},
		{"C", "F", 0.8}, {"D", "G", 0.7}, {"E", "G", 0.5}, {"F", "G", 0.6},
	} {
		require.NoError(t, g.AddEdge(e.from, e.to, graph.Attributes{
			Cost:       e.cost,
			Properties: geojson.Properties{network.IDKey: e.from + e.to},
		}, false))
	}
	return g
}

// grid builds an n x n bidirectional street grid with edges costed by length
// in meters, plus optional random detour factors.
func grid(t *testing.T, n int, rng *rand.Rand) *graph.Graph {
	t.Helper()
	// Integer division keeps node keys like "103.801,1.3" exact.
	pt := func(i, j int) orb.Point { return orb.Point{float64(103800+i) / 1000, float64(1300+j) / 1000} }
	var segs []network.Segment
	add := func(a, b orb.Point, id string) {
		ls := orb.LineString{a, {(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}, b}
		factor := 1.0
		if rng != nil {
			factor += rng.Float64() * 2
		}
		segs = append(segs, network.Segment{
			Coordinates: ls,
			Cost:        geo.LineLength(ls) * factor,
			Properties:  geojson.Properties{network.IDKey: id},
		})
	}
	for i := range n {
		for j := range n {
			if i+1 < n {
				add(pt(i, j), pt(i+1, j), fmt.Sprintf("h%d_%d", i, j))
			}
			if j+1 < n {
				add(pt(i, j), pt(i, j+1), fmt.Sprintf("v%d_%d", i, j))
			}
		}
	}
	g, _ := graph.FromSegments(segs, quiet)
	return g
}

func TestFindSevenNodeNetwork(t *testing.T) {
	f := NewFinder(sevenNodes(t))

	res, err := f.Find("A", "G", DefaultOutputs()...)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.InDelta(t, 3.0, res.TotalCost, 1e-12)
	assert.Equal(t, []string{"A", "B", "C", "E", "G"}, res.Nodes)
	assert.Equal(t, []any{"AB", "BC", "CE", "EG"}, res.EdgeIDs)
	require.NotNil(t, res.Path)
	assert.Empty(t, res.Path.Features, "graph built without geometry")
}

func TestFindDirectedHasNoReversePath(t *testing.T) {
	f := NewFinder(sevenNodes(t))

	res, err := f.Find("G", "A", NodeList, EdgeIDList, GeoJSONPath)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Zero(t, res.TotalCost)
	assert.NotNil(t, res.Nodes)
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.EdgeIDs)
	assert.Empty(t, res.Path.Features)
}

func TestFindUnknownNode(t *testing.T) {
	f := NewFinder(sevenNodes(t))

	_, err := f.Find("A", "Z")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorContains(t, err, `"Z"`)

	_, err = f.Find("nowhere", "A")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Zero(t, f.open.Stats(), "no search work before validation")
}

func TestFindStartEqualsEnd(t *testing.T) {
	g := grid(t, 3, nil)
	f := NewFinder(g, FinderOptions{Heuristic: StraightLine(1)})

	// Warm up so counters would show stale work if they were not reset.
	_, err := f.Find("103.8,1.3", "103.802,1.302")
	require.NoError(t, err)

	res, err := f.Find("103.801,1.301", "103.801,1.301", DefaultOutputs()...)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Zero(t, res.TotalCost)
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.EdgeIDs)
	assert.Empty(t, res.Path.Features)
	assert.Equal(t, queue.Stats{}, f.open.Stats())
	assert.Equal(t, SearchStats{}, f.Stats())
}

func TestFindAsymmetricCosts(t *testing.T) {
	s := network.Segment{
		Coordinates:  orb.LineString{{0, 0}, {1, 0}},
		Cost:         3,
		ForwardCost:  2,
		BackwardCost: 5,
		Properties:   geojson.Properties{network.IDKey: "ab"},
	}
	g, _ := graph.FromSegments([]network.Segment{s}, quiet)
	f := NewFinder(g)

	res, err := f.Find("0,0", "1,0", EdgeIDList)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.TotalCost)
	assert.Equal(t, []any{"ab"}, res.EdgeIDs)

	res, err = f.Find("1,0", "0,0", EdgeIDList)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.TotalCost)
	assert.Equal(t, []any{"ab"}, res.EdgeIDs)
}

func TestFindParallelEdgesPickCheapest(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddEdge("A", "B", graph.Attributes{Cost: 5, Properties: geojson.Properties{"_id": "slow"}}, false))
	require.NoError(t, g.AddEdge("A", "B", graph.Attributes{Cost: 3, Properties: geojson.Properties{"_id": "fast"}}, false))

	res, err := NewFinder(g).Find("A", "B", EdgeIDList)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.TotalCost)
	assert.Equal(t, []any{"fast"}, res.EdgeIDs)
}

func TestFindSelfLoopAndZeroCost(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddEdge("A", "A", graph.Attributes{Cost: 0}, true))
	require.NoError(t, g.AddEdge("A", "B", graph.Attributes{Cost: 0}, false))
	require.NoError(t, g.AddEdge("B", "C", graph.Attributes{Cost: 2}, false))

	res, err := NewFinder(g).Find("A", "C", NodeList)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.TotalCost)
	assert.Equal(t, []string{"A", "B", "C"}, res.Nodes)
}

func TestGeoJSONPathOrientation(t *testing.T) {
	// a -> b stored forward, c -> b stored so the route walks it backward.
	segs := []network.Segment{
		{Coordinates: orb.LineString{{0, 0}, {0.5, 0.1}, {1, 0}}, Cost: 1, Properties: geojson.Properties{"_id": "ab"}},
		{Coordinates: orb.LineString{{2, 0}, {1.5, -0.1}, {1, 0}}, Cost: 1, Properties: geojson.Properties{"_id": "cb"}},
	}
	g, _ := graph.FromSegments(segs, quiet)

	res, err := NewFinder(g).Find("0,0", "2,0", GeoJSONPath, EdgeIDList)
	require.NoError(t, err)
	require.Len(t, res.Path.Features, 2)

	assert.Equal(t, orb.LineString{{0, 0}, {0.5, 0.1}, {1, 0}}, res.Path.Features[0].Geometry)
	assert.Equal(t, orb.LineString{{1, 0}, {1.5, -0.1}, {2, 0}}, res.Path.Features[1].Geometry)
	assert.Equal(t, "cb", res.Path.Features[1].Properties["_id"])
	assert.Equal(t, orb.LineString{{0, 0}, {0.5, 0.1}, {1, 0}, {1.5, -0.1}, {2, 0}}, PathCoordinates(res.Path))

	// Stored geometry keeps its input orientation.
	cb := g.EdgesFrom(mustLookup(t, g, "1,0"))
	for _, e := range cb {
		if e.Reverse {
			assert.Equal(t, orb.Point{2, 0}, g.Geometry(e.Attr)[0])
		}
	}

	// Output features do not alias graph storage.
	res.Path.Features[0].Properties["_id"] = "changed"
	res.Path.Features[0].Geometry.(orb.LineString)[0] = orb.Point{9, 9}
	again, err := NewFinder(g).Find("0,0", "2,0", GeoJSONPath)
	require.NoError(t, err)
	assert.Equal(t, "ab", again.Path.Features[0].Properties["_id"])
	assert.Equal(t, orb.Point{0, 0}, again.Path.Features[0].Geometry.(orb.LineString)[0])
}

func mustLookup(t *testing.T, g *graph.Graph, id string) uint32 {
	t.Helper()
	idx, ok := g.Lookup(id)
	require.True(t, ok)
	return idx
}

func TestPathCostMatchesEdgeSum(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	g := grid(t, 8, rng)
	f := NewFinder(g)

	costByID := make(map[any]float64)
	for u := range uint32(g.NodeCount()) {
		for _, e := range g.EdgesFrom(u) {
			costByID[g.Properties(e.Attr)[network.IDKey]] = e.Cost
		}
	}

	res, err := f.Find("103.8,1.3", "103.807,1.307", DefaultOutputs()...)
	require.NoError(t, err)
	require.True(t, res.Found)

	var sum float64
	for _, id := range res.EdgeIDs {
		sum += costByID[id]
	}
	assert.InDelta(t, res.TotalCost, sum, 1e-6)

	var geoSum float64
	for _, feat := range res.Path.Features {
		geoSum += costByID[feat.Properties[network.IDKey]]
	}
	assert.InDelta(t, res.TotalCost, geoSum, 1e-6)
	assert.Len(t, res.Nodes, len(res.EdgeIDs)+1)
	assert.Equal(t, "103.8,1.3", res.Nodes[0])
	assert.Equal(t, "103.807,1.307", res.Nodes[len(res.Nodes)-1])
}

func TestAStarMatchesDijkstra(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	g := grid(t, 10, rng)
	dijkstra := NewFinder(g)
	astar := NewFinder(g, FinderOptions{Heuristic: StraightLine(1)})

	var dijkstraPops, astarPops int
	for range 50 {
		a := g.NodeID(uint32(rng.IntN(g.NodeCount())))
		b := g.NodeID(uint32(rng.IntN(g.NodeCount())))

		want, err := dijkstra.Find(a, b)
		require.NoError(t, err)
		dijkstraPops += dijkstra.Stats().Pops
		got, err := astar.Find(a, b)
		require.NoError(t, err)
		astarPops += astar.Stats().Pops

		assert.Equal(t, want.Found, got.Found)
		assert.InDelta(t, want.TotalCost, got.TotalCost, 1e-6, "%s -> %s", a, b)
	}
	assert.LessOrEqual(t, astarPops, dijkstraPops)
}

func TestRepeatedQueriesReuseState(t *testing.T) {
	g := grid(t, 6, rand.New(rand.NewPCG(1, 2)))
	f := NewFinder(g)
	fresh := func(a, b string) float64 {
		res, err := NewFinder(g).Find(a, b)
		require.NoError(t, err)
		return res.TotalCost
	}

	pairs := [][2]string{
		{"103.8,1.3", "103.805,1.305"},
		{"103.805,1.305", "103.8,1.3"},
		{"103.802,1.3", "103.802,1.304"},
		{"103.8,1.3", "103.805,1.305"},
	}
	allocated := 0
	for _, p := range pairs {
		res, err := f.Find(p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, fresh(p[0], p[1]), res.TotalCost, 1e-9)
		allocated = max(allocated, f.pool.Allocated())
	}
	assert.LessOrEqual(t, f.pool.Allocated(), g.NodeCount())
	assert.Equal(t, allocated, f.pool.Allocated())
}

func TestFinderDefaultOutputs(t *testing.T) {
	f := NewFinder(sevenNodes(t), FinderOptions{Outputs: []Builder{NodeList}})
	res, err := f.Find("A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, res.Nodes)
	assert.Nil(t, res.EdgeIDs)
	assert.Nil(t, res.Path)
}

func TestFindContextCanceled(t *testing.T) {
	f := NewFinder(grid(t, 4, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FindContext(ctx, "103.8,1.3", "103.803,1.303")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeuristicIgnoredOnNonGeometricGraph(t *testing.T) {
	g := sevenNodes(t)
	called := false
	f := NewFinder(g, FinderOptions{Heuristic: func(a, b orb.Point) float64 {
		called = true
		return math.Inf(1)
	}})
	res, err := f.Find("A", "G")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.TotalCost, 1e-12)
	assert.False(t, called)
}

func TestPathsIndependentOfGraphMutationAfterFinder(t *testing.T) {
	g := sevenNodes(t)
	f := NewFinder(g)
	require.NoError(t, g.AddEdge("A", "G", graph.Attributes{Cost: 0.5}, false))
	require.NoError(t, g.AddEdge("G", "H", graph.Attributes{Cost: 1}, false))

	res, err := f.Find("A", "H", NodeList)
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.TotalCost)
	assert.Equal(t, []string{"A", "G", "H"}, res.Nodes)
}
