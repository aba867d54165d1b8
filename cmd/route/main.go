// Command route answers a single shortest path query offline and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"

	"geopath/pkg/graph"
	"geopath/pkg/network"
	"geopath/pkg/routing"
)

type output struct {
	Found     bool                       `json:"found"`
	TotalCost float64                    `json:"total_cost"`
	EdgeIDs   []any                      `json:"edge_ids"`
	Nodes     []string                   `json:"nodes"`
	Path      *geojson.FeatureCollection `json:"path"`

	Stats     routing.SearchStats `json:"stats"`
	LatencyUs int64               `json:"latency_us"`
}

func main() {
	graphPath := flag.String("graph", "", "Path to preprocessed graph binary")
	networkPath := flag.String("network", "", "Path to a GeoJSON network (alternative to -graph)")
	from := flag.String("from", "", "Origin node identity, e.g. \"103.8,1.3\"")
	to := flag.String("to", "", "Destination node identity")
	start := flag.String("start", "", "Origin coordinate lat,lng, snapped to the nearest node")
	end := flag.String("end", "", "Destination coordinate lat,lng, snapped to the nearest node")
	costPerMeter := flag.Float64("astar-cost-per-meter", 0, "Lowest cost per meter of any edge, enables A* (0 = Dijkstra)")
	flag.Parse()

	g, err := load(*graphPath, *networkPath)
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}

	var heuristic routing.Heuristic
	if *costPerMeter > 0 {
		heuristic = routing.StraightLine(*costPerMeter)
	}

	if *start != "" || *end != "" {
		s, errS := parseLatLng(*start)
		e, errE := parseLatLng(*end)
		if errS != nil || errE != nil {
			log.Fatalf("Invalid -start/-end (expected lat,lng): %v", firstErr(errS, errE))
		}
		lookup := routing.NewCoordinateLookup(g)
		cs, err := lookup.Nearest(s.Point())
		if err != nil {
			log.Fatalf("Snap start: %v", err)
		}
		ce, err := lookup.Nearest(e.Point())
		if err != nil {
			log.Fatalf("Snap end: %v", err)
		}
		log.Printf("Snapped start to %s (%.1f m), end to %s (%.1f m)", cs.ID, cs.Meters, ce.ID, ce.Meters)
		*from, *to = cs.ID, ce.ID
	}
	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "Usage: route (-graph graph.bin | -network net.geojson) (-from id -to id | -start lat,lng -end lat,lng)")
		os.Exit(1)
	}

	f := routing.NewFinder(g, routing.FinderOptions{Heuristic: heuristic})
	t0 := time.Now()
	res, err := f.FindContext(context.Background(), *from, *to)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	out := output{
		Found:     res.Found,
		TotalCost: res.TotalCost,
		EdgeIDs:   res.EdgeIDs,
		Nodes:     res.Nodes,
		Path:      res.Path,
		Stats:     f.Stats(),
		LatencyUs: time.Since(t0).Microseconds(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
	if !res.Found {
		os.Exit(2)
	}
}

func load(graphPath, networkPath string) (*graph.Graph, error) {
	if graphPath != "" {
		return graph.ReadFile(graphPath)
	}
	if networkPath == "" {
		return nil, fmt.Errorf("one of -graph or -network is required")
	}
	f, err := os.Open(networkPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	segs, err := network.ReadGeoJSON(f)
	if err != nil {
		return nil, err
	}
	g, stats := graph.FromSegments(segs)
	log.Printf("Loaded %d segments (%d malformed, %d removed): %d nodes, %d edges",
		stats.Input, stats.Malformed, stats.Removed, g.NodeCount(), g.EdgeCount())
	return g, nil
}

func parseLatLng(s string) (routing.LatLng, error) {
	var ll routing.LatLng
	_, err := fmt.Sscanf(s, "%f,%f", &ll.Lat, &ll.Lng)
	return ll, err
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
