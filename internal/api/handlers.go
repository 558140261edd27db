package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Krugou/aurorawatcher/internal/feeds"
	"github.com/Krugou/aurorawatcher/internal/history"
	"github.com/Krugou/aurorawatcher/internal/sightings"
	"github.com/Krugou/aurorawatcher/internal/stations"
	"github.com/Krugou/aurorawatcher/internal/watcher"
)

// SolarClient provides solar wind telemetry. Satisfied by feeds.Client.
type SolarClient interface {
	GetSolarWind(ctx context.Context) (*feeds.SolarWind, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	History       *history.Store
	Sightings     sightings.Store
	Watcher       *watcher.Watcher
	Solar         SolarClient
	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	StoragePath   string
	Version       string
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	entryCount, err := h.History.Count()
	if err != nil {
		h.Logger.Warn("health: reading history index failed", "error", err)
	}

	sightingCount, err := h.Sightings.CountSince(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		h.Logger.Warn("health: counting sightings failed", "error", err)
	}

	resp := map[string]any{
		"status":  "ok",
		"version": h.Version,
		"uptime":  formatUptime(time.Since(h.StartTime)),
		"storage": map[string]any{
			"driver": h.StorageDriver,
			"path":   h.StoragePath,
		},
		"history_entries": entryCount,
		"sightings_24h":   sightingCount,
	}

	if last, ok := h.Watcher.LastSummary(); ok {
		resp["last_run"] = last
	}

	writeJSON(w, http.StatusOK, resp)
}

// Summary handles GET /api/v1/summary
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	last, ok := h.Watcher.LastSummary()
	if !ok {
		writeError(w, http.StatusNotFound, "no run completed yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// ListStations handles GET /api/v1/stations
func (h *Handlers) ListStations(w http.ResponseWriter, r *http.Request) {
	type stationResponse struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	result := make([]stationResponse, 0, len(stations.DefaultTable))
	for _, st := range stations.DefaultTable {
		result = append(result, stationResponse{Name: st.Name, Latitude: st.Latitude, Longitude: st.Longitude})
	}
	writeJSON(w, http.StatusOK, result)
}

// NearestStation handles GET /api/v1/stations/nearest?lat=..&lon=..
func (h *Handlers) NearestStation(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	st, ok := stations.Nearest(lat, lon, stations.DefaultTable)
	if !ok {
		writeError(w, http.StatusNotFound, "no stations configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        st.Name,
		"latitude":    st.Latitude,
		"longitude":   st.Longitude,
		"distance_km": stations.Haversine(lat, lon, st.Latitude, st.Longitude),
	})
}

// HistoryEntries handles GET /api/v1/history?cam=..&hours=..
func (h *Handlers) HistoryEntries(w http.ResponseWriter, r *http.Request) {
	camID := r.URL.Query().Get("cam")

	window := time.Duration(0)
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	entries, err := h.History.Entries(camID, window)
	if err != nil {
		h.Logger.Error("reading history entries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListSightings handles GET /api/v1/sightings?limit=..
func (h *Handlers) ListSightings(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be 1-100")
			return
		}
		limit = n
	}

	result, err := h.Sightings.RecentSightings(r.Context(), limit)
	if err != nil {
		h.Logger.Error("listing sightings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sightings")
		return
	}
	if result == nil {
		result = []sightings.Sighting{}
	}
	writeJSON(w, http.StatusOK, result)
}

// ReportSighting handles POST /api/v1/sightings
func (h *Handlers) ReportSighting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Note      string  `json:"note"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Latitude < -90 || req.Latitude > 90 {
		writeError(w, http.StatusBadRequest, "latitude out of range")
		return
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "longitude out of range")
		return
	}
	if len(req.Note) > 500 {
		writeError(w, http.StatusBadRequest, "note too long (max 500)")
		return
	}

	sg := sightings.Sighting{
		Timestamp: time.Now().UTC(),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Note:      req.Note,
	}
	if err := h.Sightings.SaveSighting(r.Context(), &sg); err != nil {
		h.Logger.Error("saving sighting failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save sighting")
		return
	}

	writeJSON(w, http.StatusCreated, sg)
}

// SolarWind handles GET /api/v1/solarwind
func (h *Handlers) SolarWind(w http.ResponseWriter, r *http.Request) {
	sw, err := h.Solar.GetSolarWind(r.Context())
	if err != nil {
		h.Logger.Warn("solar wind fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "solar wind feed unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
