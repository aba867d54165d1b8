package routing

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geopath/pkg/graph"
	"geopath/pkg/network"
)

// Result is the outcome of one query. TotalCost is always set. The artifact
// fields are nil unless their builder ran, and empty when there is no path
// or start equals end.
type Result struct {
	TotalCost float64
	Found     bool

	Path    *geojson.FeatureCollection
	EdgeIDs []any
	Nodes   []string
}

// Trace is the finished search handed to output builders.
type Trace struct {
	Graph      *graph.Graph
	Start, End string
	// Goal is the settled state of End, nil when End was not reached or
	// Start equals End.
	Goal *NodeState
}

// Builder adds one artifact to a result by walking the trace.
type Builder func(t *Trace, r *Result)

func (t *Trace) result(outputs []Builder) *Result {
	r := &Result{Found: t.Start == t.End || t.Goal != nil}
	Cost(t, r)
	for _, b := range outputs {
		b(t, r)
	}
	return r
}

// Edges walks predecessors back from the goal and returns the traversed
// edges in travel order.
func (t *Trace) Edges() []*graph.Edge {
	var edges []*graph.Edge
	for s := t.Goal; s != nil && s.Via != nil; s = s.Parent {
		edges = append(edges, s.Via)
	}
	slices.Reverse(edges)
	return edges
}

// Cost sets TotalCost to the goal distance, or 0 without a path. It is
// applied to every result.
func Cost(t *Trace, r *Result) {
	if t.Goal == nil {
		r.TotalCost = 0
		return
	}
	r.TotalCost = t.Goal.Distance
}

// EdgeIDList collects the _id property of every traversed segment.
func EdgeIDList(t *Trace, r *Result) {
	edges := t.Edges()
	r.EdgeIDs = make([]any, 0, len(edges))
	for _, e := range edges {
		var id any
		if props := t.Graph.Properties(e.Attr); props != nil {
			id = props[network.IDKey]
		}
		r.EdgeIDs = append(r.EdgeIDs, id)
	}
}

// NodeList collects node identities from start to end inclusive.
func NodeList(t *Trace, r *Result) {
	r.Nodes = []string{}
	if t.Goal == nil {
		return
	}
	for s := t.Goal; s != nil; s = s.Parent {
		r.Nodes = append(r.Nodes, t.Graph.NodeID(s.Node))
	}
	slices.Reverse(r.Nodes)
}

// GeoJSONPath emits one LineString feature per traversed edge carrying the
// segment's properties. Coordinates follow travel direction, so an edge
// walked against its stored orientation is emitted reversed. The collection
// is empty when the graph is non-geometric.
func GeoJSONPath(t *Trace, r *Result) {
	r.Path = geojson.NewFeatureCollection()
	if !t.Graph.IsGeometric() {
		return
	}
	for _, e := range t.Edges() {
		ls := t.Graph.Geometry(e.Attr).Clone()
		if e.Reverse {
			ls.Reverse()
		}
		f := geojson.NewFeature(ls)
		if props := t.Graph.Properties(e.Attr); props != nil {
			f.Properties = props.Clone()
		}
		r.Path.Append(f)
	}
}

// DefaultOutputs returns every builder.
func DefaultOutputs() []Builder {
	return []Builder{EdgeIDList, NodeList, GeoJSONPath}
}

// PathCoordinates joins the features of a path into one line, dropping the
// repeated point where consecutive edges meet.
func PathCoordinates(fc *geojson.FeatureCollection) orb.LineString {
	if fc == nil {
		return nil
	}
	var out orb.LineString
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if len(out) > 0 && len(ls) > 0 && out[len(out)-1] == ls[0] {
			ls = ls[1:]
		}
		out = append(out, ls...)
	}
	return out
}
