package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"geopath/pkg/geo"
	"geopath/pkg/graph"
	"geopath/pkg/queue"
)

// ErrNodeNotFound is returned when a query names a node the graph does not have.
var ErrNodeNotFound = errors.New("origin or destination does not exist on graph")

// cancelCheckInterval is the number of pops between context checks.
const cancelCheckInterval = 256

// Heuristic estimates the remaining cost from one point to another. It must
// never overestimate for results to stay optimal.
type Heuristic func(from, to orb.Point) float64

// StraightLine returns a heuristic for graphs whose costs are at least
// costPerMeter per meter of great-circle distance. The estimate is scaled by
// 0.99 to absorb rounding in segment lengths.
func StraightLine(costPerMeter float64) Heuristic {
	return func(from, to orb.Point) float64 {
		return 0.99 * costPerMeter * geo.Haversine(from, to)
	}
}

// FinderOptions configures a Finder.
type FinderOptions struct {
	// Heuristic turns the search into A*. Nil runs Dijkstra. It is ignored on
	// non-geometric graphs, where node locations may be missing.
	Heuristic Heuristic
	// Outputs are applied when Find is called without explicit builders.
	Outputs []Builder
}

// SearchStats describes the work done by the last search.
type SearchStats struct {
	Pushes      int
	Pops        int
	Updates     int
	Relaxations int
	Settled     int
}

// Finder runs shortest path queries on one graph. It owns its queue and
// node-state pool, so a Finder must not be shared between goroutines; use
// one Finder per goroutine over the same read-only graph.
type Finder struct {
	g         *graph.Graph
	heuristic Heuristic
	outputs   []Builder

	pool  *NodeStatePool
	open  *queue.Heap[*NodeState]
	stats SearchStats
}

// NewFinder creates a Finder over g.
func NewFinder(g *graph.Graph, opts ...FinderOptions) *Finder {
	var o FinderOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	f := &Finder{
		g:         g,
		heuristic: o.Heuristic,
		outputs:   o.Outputs,
		pool:      NewNodeStatePool(g.NodeCount()),
	}
	if f.heuristic != nil && g.IsGeometric() {
		f.open = queue.New(byScore, 64)
	} else {
		f.heuristic = nil
		f.open = queue.New(byDistance, 64)
	}
	return f
}

func byDistance(a, b *NodeState) bool { return a.Distance < b.Distance }

func byScore(a, b *NodeState) bool { return a.Score < b.Score }

// Find returns the cheapest path from start to end. Unknown identities fail
// with ErrNodeNotFound before any search work. An unreachable end is not an
// error: the result has Found false and empty artifacts.
func (f *Finder) Find(start, end string, outputs ...Builder) (*Result, error) {
	return f.FindContext(context.Background(), start, end, outputs...)
}

// FindContext is Find with cancellation checked every few hundred pops.
func (f *Finder) FindContext(ctx context.Context, start, end string, outputs ...Builder) (*Result, error) {
	s, ok := f.g.Lookup(start)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, start)
	}
	e, ok := f.g.Lookup(end)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, end)
	}
	if len(outputs) == 0 {
		outputs = f.outputs
	}

	f.stats = SearchStats{}
	f.open.ResetStats()

	trace := &Trace{Graph: f.g, Start: start, End: end}
	if s != e {
		goal, err := f.search(ctx, s, e)
		if err != nil {
			return nil, err
		}
		trace.Goal = goal
	}
	return trace.result(outputs), nil
}

// Stats returns counters for the last search.
func (f *Finder) Stats() SearchStats { return f.stats }

// search runs Dijkstra or A* from s and returns the settled state of e, or
// nil when e is unreachable.
func (f *Finder) search(ctx context.Context, s, e uint32) (*NodeState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.pool.Reset()
	f.open.Reset()
	defer f.collectStats()

	// The graph may have lost its geometry since the Finder was made.
	heuristic := f.heuristic
	if !f.g.IsGeometric() {
		heuristic = nil
	}
	var goal orb.Point
	if heuristic != nil {
		goal, _ = f.g.Coordinate(e)
	}
	estimate := func(p orb.Point) float64 {
		if heuristic == nil {
			return 0
		}
		return heuristic(p, goal)
	}

	startPoint, _ := f.g.Coordinate(s)
	first := f.pool.Create(s, 0, estimate(startPoint))
	first.Opened = true
	f.open.Push(first)

	for f.open.Len() > 0 {
		current := f.open.Pop()
		if f.stats.Pops++; f.stats.Pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if current.Node == e {
			current.Visited = true
			f.stats.Settled++
			return current, nil
		}

		edges := f.g.EdgesFrom(current.Node)
		for i := range edges {
			edge := &edges[i]
			next := f.pool.Get(edge.To)
			if next != nil && next.Visited {
				continue
			}
			f.stats.Relaxations++
			proposed := current.Distance + edge.Cost
			if next == nil {
				next = f.pool.Create(edge.To, Unreached, estimate(edge.ToCoord))
			}
			if proposed < next.Distance {
				next.Distance = proposed
				next.Score = proposed + next.Heuristic
				next.Parent = current
				next.Via = edge
				if next.Opened {
					f.open.Update(next.heapIndex)
				} else {
					next.Opened = true
					f.open.Push(next)
				}
			}
		}
		current.Visited = true
		f.stats.Settled++
	}
	return nil, nil
}

func (f *Finder) collectStats() {
	qs := f.open.Stats()
	f.stats.Pushes = qs.Pushes
	f.stats.Updates = qs.Updates
}
