package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geocached/internal/geo"
	"github.com/mohammed-shakir/geocached/internal/hotness"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

const (
	maxBodyBytes = 1 << 20
	// a quarter of the equator; larger circles only add wraparound ambiguity
	maxRadiusMeters = 10_018_754.0
)

type handlers struct {
	log     *slog.Logger
	store   ObjectStore
	ids     objectid.Generator
	hot     hotness.Ranker
	hotTopN int
}

type createRequest struct {
	ID      string          `json:"id"`
	Lat     *float64        `json:"lat"`
	Lon     *float64        `json:"lon"`
	Payload json.RawMessage `json:"payload"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type objectResponse struct {
	ID      string          `json:"id"`
	Lat     float64         `json:"lat"`
	Lon     float64         `json:"lon"`
	GeoHash string          `json:"geohash"`
	Payload json.RawMessage `json:"payload"`
}

type queryHit struct {
	ID        string          `json:"id"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	DistanceM float64         `json:"distance_m"`
	Payload   json.RawMessage `json:"payload"`
}

type queryResponse struct {
	Count   int        `json:"count"`
	Objects []queryHit `json:"objects"`
}

type statsResponse struct {
	Entries   int              `json:"entries"`
	Cells     int              `json:"cells"`
	Precision uint             `json:"precision"`
	Hot       []hotness.Scored `json:"hot,omitempty"`
}

func (h *handlers) createObject(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := location(req.Lat, req.Lon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("null")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = h.ids.New()
	} else if err := objectid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !h.store.Insert(id, req.Payload, loc) {
		writeError(w, http.StatusConflict, fmt.Errorf("object %q already exists", id))
		return
	}
	h.log.DebugContext(r.Context(), "object created", "id", id, "loc", loc.String())
	w.Header().Set("Location", "/objects/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) getObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payload, ok := h.store.Retrieve(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("object %q not found", id))
		return
	}
	e, ok := h.store.Locate(id)
	if !ok {
		// removed between the two reads
		writeError(w, http.StatusNotFound, fmt.Errorf("object %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, objectResponse{
		ID:      id,
		Lat:     e.Location.Lat,
		Lon:     e.Location.Lon,
		GeoHash: e.GeoHash,
		Payload: payload,
	})
}

func (h *handlers) deleteObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Remove(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("object %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) moveObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req locationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := location(req.Lat, req.Lon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.store.UpdateLocation(id, loc) {
		writeError(w, http.StatusNotFound, fmt.Errorf("object %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCircle(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	matches := h.store.Query(c)
	out := queryResponse{Count: len(matches), Objects: make([]queryHit, 0, len(matches))}
	for _, m := range matches {
		out.Objects = append(out.Objects, queryHit{
			ID:        m.ID,
			Lat:       m.Location.Lat,
			Lon:       m.Location.Lon,
			DistanceM: geo.Distance(m.Location, c.Center),
			Payload:   m.Payload,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	out := statsResponse{
		Entries:   h.store.Size(),
		Cells:     h.store.Cells(),
		Precision: h.store.Precision(),
	}
	if h.hot != nil && h.hotTopN > 0 {
		out.Hot = h.hot.Top(h.hotTopN)
	}
	writeJSON(w, http.StatusOK, out)
}

// ParseCircle reads lat, lon and radius (meters) from the query string.
func ParseCircle(r *http.Request) (geo.Circle, error) {
	q := r.URL.Query()
	lat, err := requiredFloat(q.Get("lat"), "lat")
	if err != nil {
		return geo.Circle{}, err
	}
	lon, err := requiredFloat(q.Get("lon"), "lon")
	if err != nil {
		return geo.Circle{}, err
	}
	radius, err := requiredFloat(q.Get("radius"), "radius")
	if err != nil {
		return geo.Circle{}, err
	}
	center := geo.Location{Lat: lat, Lon: lon}
	if err := center.Validate(); err != nil {
		return geo.Circle{}, err
	}
	if radius < 0 || radius > maxRadiusMeters {
		return geo.Circle{}, fmt.Errorf("radius must be in [0,%.0f] meters", maxRadiusMeters)
	}
	return geo.Circle{Center: center, Radius: radius}, nil
}

func requiredFloat(v, name string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse float: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be finite", name)
	}
	return f, nil
}

func location(lat, lon *float64) (geo.Location, error) {
	if lat == nil || lon == nil {
		return geo.Location{}, errors.New("lat and lon are required")
	}
	loc := geo.Location{Lat: *lat, Lon: *lon}
	if err := loc.Validate(); err != nil {
		return geo.Location{}, err
	}
	return loc, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
