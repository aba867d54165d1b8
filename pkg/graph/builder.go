package graph

import (
	"log"

	"github.com/paulmach/orb/geojson"

	"geopath/pkg/network"
)

// LoadOptions configures bulk segment import.
type LoadOptions struct {
	// SkipCleanse imports segments as given. Malformed segments are still dropped.
	SkipCleanse bool
	// MutateInputs is passed to network.Cleanse.
	MutateInputs bool
	Logger       *log.Logger
}

// LoadStats summarizes a bulk import.
type LoadStats struct {
	network.CleanseStats
	Segments int // segments inserted
	Edges    int // directed edge records created
}

// LoadSegments cleanses segs and inserts every surviving segment. Each
// usable direction becomes one edge record at its direction specific cost.
func (g *Graph) LoadSegments(segs []network.Segment, opts ...LoadOptions) LoadStats {
	var o LoadOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}

	var stats LoadStats
	if o.SkipCleanse {
		stats.Input = len(segs)
		kept := make([]network.Segment, 0, len(segs))
		for i := range segs {
			if err := segs[i].Validate(); err != nil {
				logger.Printf("graph: skipping segment %d (id=%v): %v", i, segs[i].ID(), err)
				stats.Malformed++
				continue
			}
			kept = append(kept, segs[i])
		}
		segs = kept
		stats.Output = len(segs)
	} else {
		segs, stats.CleanseStats = network.Cleanse(segs, network.CleanseOptions{
			MutateInputs: o.MutateInputs,
			Logger:       logger,
		})
	}

	before := g.numEdges
	for i := range segs {
		s := &segs[i]
		if !s.Direction.Forward() && !s.Direction.Backward() {
			continue
		}
		u, v, attr := g.addSegment(s.Start(), s.End(), s.Coordinates, s.Properties)
		if s.Direction.Forward() {
			g.link(u, v, s.ForwardCostValue(), attr, false)
		}
		if s.Direction.Backward() {
			g.link(v, u, s.BackwardCostValue(), attr, true)
		}
		stats.Segments++
	}
	stats.Edges = g.numEdges - before
	return stats
}

// LoadGeoJSON decodes fc with network.FromFeatureCollection and loads the result.
func (g *Graph) LoadGeoJSON(fc *geojson.FeatureCollection, opts ...LoadOptions) LoadStats {
	return g.LoadSegments(network.FromFeatureCollection(fc), opts...)
}

// FromSegments builds a new graph from segs.
func FromSegments(segs []network.Segment, opts ...LoadOptions) (*Graph, LoadStats) {
	g := New()
	stats := g.LoadSegments(segs, opts...)
	return g, stats
}
