package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"geopath/pkg/api"
	"geopath/pkg/graph"
	"geopath/pkg/routing"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to preprocessed graph binary")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	costPerMeter := flag.Float64("astar-cost-per-meter", 0, "Lowest cost per meter of any edge, enables A* (0 = Dijkstra)")
	maxSnap := flag.Float64("max-snap-meters", 1000, "Reject query points farther than this from the network (0 = unlimited)")
	flag.Parse()

	start := time.Now()

	// Load graph.
	log.Printf("Loading graph from %s...", *graphPath)
	g, err := graph.ReadFile(*graphPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	log.Printf("Loaded: %d nodes, %d edges, %d segments (geometric=%v)",
		g.NodeCount(), g.EdgeCount(), g.SegmentCount(), g.IsGeometric())

	opts := routing.EngineOptions{MaxSnapMeters: *maxSnap}
	if *costPerMeter > 0 {
		opts.Heuristic = routing.StraightLine(*costPerMeter)
		log.Printf("Using A* with %.4g cost per meter", *costPerMeter)
	}

	log.Println("Building R-tree spatial index...")
	engine := routing.NewEngine(g, opts)
	log.Printf("Indexed %d located nodes", engine.Lookup().Len())

	log.Printf("Ready in %s", time.Since(start).Round(time.Millisecond))

	// Setup HTTP server.
	cfg := api.DefaultConfig(fmt.Sprintf(":%d", *port))
	cfg.CORSOrigin = *corsOrigin

	stats := api.StatsResponse{
		NumNodes:    g.NodeCount(),
		NumEdges:    g.EdgeCount(),
		NumSegments: g.SegmentCount(),
		Geometric:   g.IsGeometric(),
	}

	handlers := api.NewHandlers(engine, engine.Lookup(), stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
