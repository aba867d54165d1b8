package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"geopath/pkg/graph"
)

var (
	// ErrNoRoute is returned when no route exists between the two points.
	ErrNoRoute = errors.New("no route found")
	// ErrPointTooFar is returned when the query point is too far from any node.
	ErrPointTooFar = errors.New("point too far from network")
)

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

func (ll LatLng) Point() orb.Point { return orb.Point{ll.Lng, ll.Lat} }

// RouteResult is the output of a coordinate route query.
type RouteResult struct {
	Start, End Candidate
	*Result
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng, outputs ...Builder) (*RouteResult, error)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Heuristic Heuristic
	// MaxSnapMeters rejects query points farther than this from every node.
	// Zero disables the check.
	MaxSnapMeters float64
	// Outputs are used when Route is called without builders.
	Outputs []Builder
}

// Engine implements Router on a read-only graph. Each concurrent query takes
// its own Finder from a pool.
type Engine struct {
	g       *graph.Graph
	lookup  *CoordinateLookup
	opts    EngineOptions
	finders sync.Pool
}

// NewEngine creates a routing engine and indexes the graph's node locations.
func NewEngine(g *graph.Graph, opts EngineOptions) *Engine {
	if opts.Outputs == nil {
		opts.Outputs = DefaultOutputs()
	}
	e := &Engine{
		g:      g,
		lookup: NewCoordinateLookup(g),
		opts:   opts,
	}
	e.finders.New = func() any {
		return NewFinder(g, FinderOptions{Heuristic: opts.Heuristic, Outputs: opts.Outputs})
	}
	return e
}

// Lookup returns the engine's coordinate index.
func (e *Engine) Lookup() *CoordinateLookup { return e.lookup }

// Route snaps both points to their nearest nodes and finds the cheapest path.
func (e *Engine) Route(ctx context.Context, start, end LatLng, outputs ...Builder) (*RouteResult, error) {
	// Step 1: Snap points to nearest nodes.
	startSnap, err := e.snap(start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	endSnap, err := e.snap(end)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	// Step 2: Search with a pooled Finder.
	f := e.finders.Get().(*Finder)
	defer e.finders.Put(f)

	res, err := f.FindContext(ctx, startSnap.ID, endSnap.ID, outputs...)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, ErrNoRoute
	}
	return &RouteResult{Start: startSnap, End: endSnap, Result: res}, nil
}

func (e *Engine) snap(ll LatLng) (Candidate, error) {
	c, err := e.lookup.Nearest(ll.Point())
	if err != nil {
		return Candidate{}, err
	}
	if e.opts.MaxSnapMeters > 0 && c.Meters > e.opts.MaxSnapMeters {
		return Candidate{}, fmt.Errorf("%w: nearest node %.0f m away", ErrPointTooFar, c.Meters)
	}
	return c, nil
}
