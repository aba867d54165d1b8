package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"geopath/pkg/graph"
	"geopath/pkg/network"
	osmparser "geopath/pkg/osm"
)

func main() {
	input := flag.String("input", "", "Path to a .geojson/.json network, an .osm XML file or an .osm.pbf extract")
	output := flag.String("output", "graph.bin", "Output binary graph file path")
	bbox := flag.String("bbox", "", "OSM bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	costProperty := flag.String("cost-property", "", "GeoJSON property holding segment cost (default _cost)")
	largest := flag.Bool("largest-component", false, "Keep only the largest weakly connected component")
	mutate := flag.Bool("mutate-inputs", false, "Let the cleanser rewrite decoded segments in place")
	export := flag.String("export-geojson", "", "Also write the cleansed network as GeoJSON to this path")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <network.geojson|file.osm|file.osm.pbf> [--output graph.bin] [--bbox minLat,minLng,maxLat,maxLng] [--largest-component]")
		os.Exit(1)
	}

	var bound orb.Bound
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v", err)
		}
		bound = orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", minLat, maxLat, minLng, maxLng)
	}

	start := time.Now()

	// Step 1: Read raw segments.
	log.Printf("Reading %s...", *input)
	segs, err := readSegments(*input, bound, *costProperty)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	log.Printf("Read %d raw segments", len(segs))

	// Step 2: Cleanse and build graph.
	log.Println("Cleansing network...")
	segs, stats := network.Cleanse(segs, network.CleanseOptions{MutateInputs: *mutate})
	log.Printf("Cleansed: %d malformed, %d directions pruned, %d segments removed, %d kept",
		stats.Malformed, stats.PrunedDirections, stats.Removed, stats.Output)

	log.Println("Building graph...")
	g, _ := graph.FromSegments(segs, graph.LoadOptions{SkipCleanse: true})
	log.Printf("Graph: %d nodes, %d edges, %d segments (geometric=%v)",
		g.NodeCount(), g.EdgeCount(), g.SegmentCount(), g.IsGeometric())

	// Step 3: Optionally extract largest connected component.
	if *largest && g.NodeCount() > 0 {
		log.Println("Extracting largest connected component...")
		nodes := graph.LargestComponent(g)
		log.Printf("Largest component: %d nodes (%.1f%%)", len(nodes), float64(len(nodes))/float64(g.NodeCount())*100)
		g = graph.FilterToComponent(g, nodes)
		log.Printf("Filtered graph: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}

	// Step 4: Serialize to binary.
	log.Printf("Writing binary to %s...", *output)
	if err := graph.WriteFile(*output, g); err != nil {
		log.Fatalf("Failed to write binary: %v", err)
	}

	if *export != "" {
		if err := exportGeoJSON(*export, segs); err != nil {
			log.Fatalf("Failed to export GeoJSON: %v", err)
		}
		log.Printf("Exported cleansed network to %s", *export)
	}

	info, _ := os.Stat(*output)
	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f MB)", elapsed.Round(time.Millisecond), *output, float64(info.Size())/(1024*1024))
}

func readSegments(path string, bound orb.Bound, costProperty string) ([]network.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts := osmparser.ParseOptions{Bound: bound}
	switch {
	case strings.HasSuffix(path, ".pbf"):
		segs, _, err := osmparser.ParsePBF(context.Background(), f, opts)
		return segs, err
	case strings.HasSuffix(path, ".osm"):
		segs, _, err := osmparser.ParseXML(context.Background(), f, opts)
		return segs, err
	default:
		return network.ReadGeoJSON(f, network.DecodeOptions{CostProperty: costProperty})
	}
}

// exportGeoJSON writes the cleansed network back out as a FeatureCollection.
func exportGeoJSON(path string, segs []network.Segment) error {
	data, err := network.ToFeatureCollection(segs).MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
