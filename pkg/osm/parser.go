// Package osm turns OpenStreetMap extracts into line network segments.
package osm

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"geopath/pkg/geo"
	"geopath/pkg/network"
)

// Property keys written on every segment besides network.IDKey.
const (
	HighwayKey = "highway"
	WayKey     = "osm_way"
)

// drivable lists highway tag values accessible by car.
var drivable = map[string]bool{
	"motorway": true, "motorway_link": true,
	"trunk": true, "trunk_link": true,
	"primary": true, "primary_link": true,
	"secondary": true, "secondary_link": true,
	"tertiary": true, "tertiary_link": true,
	"unclassified": true, "residential": true,
	"living_street": true, "service": true,
}

// drivableWay reports whether cars may use the way.
func drivableWay(tags osm.Tags) bool {
	if !drivable[tags.Find("highway")] || tags.Find("area") == "yes" {
		return false
	}
	switch tags.Find("access") {
	case "no", "private":
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// wayDirection maps highway and oneway tags to the directions a way may be
// traveled in, relative to its node order. ok is false when neither is.
func wayDirection(tags osm.Tags) (dir network.Direction, ok bool) {
	fwd, bwd := true, true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		bwd = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		fwd, bwd = true, false
	case "-1", "reverse":
		fwd, bwd = false, true
	case "no":
		fwd, bwd = true, true
	case "reversible":
		// Time dependent.
		fwd, bwd = false, false
	}

	switch {
	case fwd && bwd:
		return network.Both, true
	case fwd:
		return network.Forward, true
	case bwd:
		return network.Backward, true
	}
	return network.None, false
}

// way is a drivable way kept between passes.
type way struct {
	id    osm.WayID
	nodes []osm.NodeID
	dir   network.Direction
	tag   string
}

// ParseOptions configures the readers.
type ParseOptions struct {
	// Bound, when non-empty, keeps only segments with both ends inside it.
	Bound  orb.Bound
	Logger *log.Logger
}

// ParseStats summarizes an import.
type ParseStats struct {
	Ways         int
	Segments     int
	MissingNodes int // segments dropped for an unresolved node reference
	OutsideBound int
	Degenerate   int // consecutive nodes at the same position
}

// ParsePBF reads a PBF extract and returns one segment per consecutive node
// pair of every drivable way. The reader is scanned twice, ways first, so
// only referenced node coordinates are held in memory.
func ParsePBF(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) ([]network.Segment, ParseStats, error) {
	opt := options(opts)

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	ways, err := collectWays(scanner)
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("pass 1 (ways): %w", err)
	}

	referenced := make(map[osm.NodeID]struct{})
	for _, w := range ways {
		for _, id := range w.nodes {
			referenced[id] = struct{}{}
		}
	}
	opt.Logger.Printf("osm: pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referenced))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, ParseStats{}, fmt.Errorf("seek for pass 2: %w", err)
	}

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	coords := make(map[osm.NodeID]orb.Point, len(referenced))
	err = scan(scanner, func(o osm.Object) {
		if n, ok := o.(*osm.Node); ok {
			if _, needed := referenced[n.ID]; needed {
				coords[n.ID] = orb.Point{n.Lon, n.Lat}
			}
		}
	})
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	opt.Logger.Printf("osm: pass 2 complete: %d node coordinates collected", len(coords))

	segs, stats := buildSegments(ways, coords, opt)
	return segs, stats, nil
}

// ParseXML reads an OSM XML document in a single pass.
func ParseXML(ctx context.Context, r io.Reader, opts ...ParseOptions) ([]network.Segment, ParseStats, error) {
	opt := options(opts)

	coords := make(map[osm.NodeID]orb.Point)
	var ways []way
	err := scan(osmxml.New(ctx, r), func(o osm.Object) {
		switch v := o.(type) {
		case *osm.Node:
			coords[v.ID] = orb.Point{v.Lon, v.Lat}
		case *osm.Way:
			if w, ok := toWay(v); ok {
				ways = append(ways, w)
			}
		}
	})
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("osm xml: %w", err)
	}

	segs, stats := buildSegments(ways, coords, opt)
	return segs, stats, nil
}

func options(opts []ParseOptions) ParseOptions {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = log.Default()
	}
	return opt
}

func scan(s osm.Scanner, fn func(osm.Object)) error {
	defer s.Close()
	for s.Scan() {
		fn(s.Object())
	}
	return s.Err()
}

func collectWays(s osm.Scanner) ([]way, error) {
	var ways []way
	err := scan(s, func(o osm.Object) {
		if v, ok := o.(*osm.Way); ok {
			if w, ok := toWay(v); ok {
				ways = append(ways, w)
			}
		}
	})
	return ways, err
}

func toWay(w *osm.Way) (way, bool) {
	if len(w.Nodes) < 2 || !drivableWay(w.Tags) {
		return way{}, false
	}
	dir, ok := wayDirection(w.Tags)
	if !ok {
		return way{}, false
	}
	ids := make([]osm.NodeID, len(w.Nodes))
	for i, wn := range w.Nodes {
		ids[i] = wn.ID
	}
	return way{id: w.ID, nodes: ids, dir: dir, tag: w.Tags.Find("highway")}, true
}

// buildSegments splits ways at every node. Cost is the segment length in
// meters.
func buildSegments(ways []way, coords map[osm.NodeID]orb.Point, opt ParseOptions) ([]network.Segment, ParseStats) {
	bounded := opt.Bound != orb.Bound{}
	stats := ParseStats{Ways: len(ways)}
	var segs []network.Segment

	for _, w := range ways {
		for i := 0; i+1 < len(w.nodes); i++ {
			a, okA := coords[w.nodes[i]]
			b, okB := coords[w.nodes[i+1]]
			switch {
			case !okA || !okB:
				stats.MissingNodes++
				continue
			case bounded && (!opt.Bound.Contains(a) || !opt.Bound.Contains(b)):
				stats.OutsideBound++
				continue
			case a == b:
				stats.Degenerate++
				continue
			}

			segs = append(segs, network.Segment{
				Coordinates: orb.LineString{a, b},
				Cost:        geo.Haversine(a, b),
				Direction:   w.dir,
				Properties: geojson.Properties{
					network.IDKey: fmt.Sprintf("%d:%d", w.id, i),
					HighwayKey:    w.tag,
					WayKey:        int64(w.id),
				},
			})
		}
	}
	stats.Segments = len(segs)

	if stats.MissingNodes > 0 {
		opt.Logger.Printf("osm: skipped %d segments with missing node coordinates", stats.MissingNodes)
	}
	if stats.OutsideBound > 0 {
		opt.Logger.Printf("osm: filtered %d segments outside bound", stats.OutsideBound)
	}
	opt.Logger.Printf("osm: built %d segments from %d ways", stats.Segments, stats.Ways)
	return segs, stats
}
