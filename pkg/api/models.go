package api

import "github.com/paulmach/orb/geojson"

// Output names accepted in RouteRequest.Outputs.
const (
	OutputEdgeIDs = "edge_ids"
	OutputNodes   = "nodes"
	OutputPath    = "path"
)

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Start LatLngJSON `json:"start"`
	End   LatLngJSON `json:"end"`
	// Outputs selects artifacts; empty means all of them.
	Outputs []string `json:"outputs,omitempty"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SnapJSON is the network node a query point was snapped to.
type SnapJSON struct {
	Node   string     `json:"node"`
	Point  LatLngJSON `json:"point"`
	Meters float64    `json:"distance_meters"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	TotalCost float64                    `json:"total_cost"`
	Start     SnapJSON                   `json:"start"`
	End       SnapJSON                   `json:"end"`
	EdgeIDs   []any                      `json:"edge_ids,omitempty"`
	Nodes     []string                   `json:"nodes,omitempty"`
	Path      *geojson.FeatureCollection `json:"path,omitempty"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes    int  `json:"num_nodes"`
	NumEdges    int  `json:"num_edges"`
	NumSegments int  `json:"num_segments"`
	Geometric   bool `json:"geometric"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
