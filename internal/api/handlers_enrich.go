package api

import (
	"context"
	"log"
	"net/http"
)

// Enrichment sweeps run detached from the request; a bulk geocode of a
// few hundred rows takes minutes at 1 req/s.

func (s *Server) handleGeocodeBulk(w http.ResponseWriter, r *http.Request) {
	batchSize := parseIntParam(r, "batch_size", 50)
	go func() {
		if _, err := s.geocoder.BulkGeocode(context.Background(), batchSize); err != nil {
			log.Printf("[api] bulk geocode failed: %v", err)
		}
	}()
	writeAccepted(w, map[string]interface{}{
		"message":    "bulk geocoding started",
		"batch_size": batchSize,
	})
}

func (s *Server) handleGeocodeSingle(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeAPIError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	lat, lon, ok, err := s.geocoder.Geocode(r.Context(), address, r.URL.Query().Get("municipality"), r.URL.Query().Get("district"))
	if err != nil {
		writeAPIError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !ok {
		writeAPIError(w, http.StatusNotFound, "address could not be resolved")
		return
	}
	writeAPIResponse(w, map[string]float64{"latitude": lat, "longitude": lon}, nil)
}

func (s *Server) handleGeocodeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetGeocodeStats(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAPIResponse(w, stats, nil)
}

func (s *Server) handleRuianBulk(w http.ResponseWriter, r *http.Request) {
	batchSize := parseIntParam(r, "batch_size", 50)
	overwriteNotFound := parseBoolParam(r, "overwrite_not_found")
	go func() {
		if _, err := s.cadastre.BulkProcess(context.Background(), batchSize, overwriteNotFound); err != nil {
			log.Printf("[api] bulk cadastre lookup failed: %v", err)
		}
	}()
	writeAccepted(w, map[string]interface{}{
		"message":             "bulk cadastre lookup started",
		"batch_size":          batchSize,
		"overwrite_not_found": overwriteNotFound,
	})
}

func (s *Server) handleRuianSingle(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	municipality := r.URL.Query().Get("municipality")
	if address == "" && municipality == "" {
		writeAPIError(w, http.StatusBadRequest, "address or municipality parameter is required")
		return
	}
	if municipality != "" {
		address = municipality
	}
	writeAPIResponse(w, s.cadastre.Lookup(r.Context(), address), nil)
}

func (s *Server) handleRuianStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CadastreStats(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAPIResponse(w, stats, nil)
}
