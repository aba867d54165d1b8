package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"

	"geopath/pkg/routing"
)

// Locator snaps a point to the nearest network node.
type Locator interface {
	Nearest(p orb.Point) (routing.Candidate, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router  routing.Router
	locator Locator
	stats   StatsResponse
}

// NewHandlers creates handlers with the given router. locator may be nil,
// which disables the nearest node endpoint.
func NewHandlers(router routing.Router, locator Locator, stats StatsResponse) *Handlers {
	return &Handlers{
		router:  router,
		locator: locator,
		stats:   stats,
	}
}

// RegisterRoutes mounts the handlers under /api/v1.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/route", h.HandleRoute).Methods(http.MethodPost)
	v1.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	if h.locator != nil {
		v1.HandleFunc("/nearest/{lng}/{lat}", h.HandleNearest).Methods(http.MethodGet)
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}
	outputs, err := parseOutputs(req.Outputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_outputs", "outputs")
		return
	}

	result, err := h.router.Route(r.Context(),
		routing.LatLng{Lat: req.Start.Lat, Lng: req.Start.Lng},
		routing.LatLng{Lat: req.End.Lat, Lng: req.End.Lng},
		outputs...)
	if err != nil {
		switch {
		case errors.Is(err, routing.ErrPointTooFar):
			writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_network", "")
		case errors.Is(err, routing.ErrNoRoute):
			writeError(w, http.StatusNotFound, "no_route_found", "")
		case errors.Is(err, routing.ErrEmptyLookup):
			writeError(w, http.StatusServiceUnavailable, "empty_network", "")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	resp := RouteResponse{
		TotalCost: result.TotalCost,
		Start:     snapJSON(result.Start),
		End:       snapJSON(result.End),
		EdgeIDs:   result.EdgeIDs,
		Nodes:     result.Nodes,
		Path:      result.Path,
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleNearest handles GET /api/v1/nearest/{lng}/{lat}.
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lng, errLng := strconv.ParseFloat(vars["lng"], 64)
	lat, errLat := strconv.ParseFloat(vars["lat"], 64)
	ll := LatLngJSON{Lat: lat, Lng: lng}
	if errLng != nil || errLat != nil || validateCoord(ll) != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return
	}

	c, err := h.locator.Nearest(orb.Point{lng, lat})
	if err != nil {
		if errors.Is(err, routing.ErrEmptyLookup) {
			writeError(w, http.StatusServiceUnavailable, "empty_network", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, snapJSON(c))
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats)
}

// parseOutputs maps requested output names to builders. Empty selects all.
func parseOutputs(names []string) ([]routing.Builder, error) {
	if len(names) == 0 {
		return routing.DefaultOutputs(), nil
	}
	builders := make([]routing.Builder, 0, len(names))
	for _, name := range names {
		switch name {
		case OutputEdgeIDs:
			builders = append(builders, routing.EdgeIDList)
		case OutputNodes:
			builders = append(builders, routing.NodeList)
		case OutputPath:
			builders = append(builders, routing.GeoJSONPath)
		default:
			return nil, errors.New("unknown output " + strconv.Quote(name))
		}
	}
	return builders, nil
}

func snapJSON(c routing.Candidate) SnapJSON {
	return SnapJSON{
		Node:   c.ID,
		Point:  LatLngJSON{Lat: c.Point[1], Lng: c.Point[0]},
		Meters: c.Meters,
	}
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field})
}
