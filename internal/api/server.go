// Package api is the control surface: trigger and inspect scrape
// jobs, kick off enrichment sweeps, manage the live scheduler. Every
// long-running operation is dispatched to a background goroutine and
// acknowledged immediately; nothing here blocks on scraping.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"realscan/internal/eventbus"
	"realscan/internal/geocode"
	"realscan/internal/models"
	"realscan/internal/repository"
	"realscan/internal/ruian"
	"realscan/internal/runner"
	"realscan/internal/scheduler"
)

// Store is the slice of the repository the handlers read and write.
type Store interface {
	CreateJob(ctx context.Context, sourceCodes []string, fullRescan bool) (*models.ScrapeJob, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapeJob, error)
	ListJobs(ctx context.Context, limit, offset int, status string) ([]*models.ScrapeJob, error)
	GetGeocodeStats(ctx context.Context) (*repository.GeocodeStats, error)
	CadastreStats(ctx context.Context) (map[string]int, error)
	GetStatusSummary(ctx context.Context) (*repository.StatusSummary, error)
}

// JobRunner executes a created job; the production implementation is
// *runner.Runner.
type JobRunner interface {
	Execute(ctx context.Context, jobID uuid.UUID, req runner.Request) error
}

// Geocoder is the reverse-geocoding client surface.
type Geocoder interface {
	Geocode(ctx context.Context, locationText, municipality, district string) (lat, lon float64, ok bool, err error)
	BulkGeocode(ctx context.Context, batchSize int) (geocode.BulkResult, error)
}

// CadastreClient is the RÚIAN lookup surface.
type CadastreClient interface {
	Lookup(ctx context.Context, address string) *ruian.Result
	BulkProcess(ctx context.Context, batchSize int, overwriteNotFound bool) (ruian.BulkResult, error)
}

type Server struct {
	store    Store
	runner   JobRunner
	sched    *scheduler.Scheduler // nil when disabled
	geocoder Geocoder
	cadastre CadastreClient
	bus      *eventbus.Bus
	hub      *wsHub

	httpServer  *http.Server
	statusCache struct {
		mu        sync.Mutex
		payload   []byte
		expiresAt time.Time
	}
}

// NewServer wires the control surface. sched may be nil (scheduler
// disabled); bus may be nil (no websocket event feed).
func NewServer(store Store, jobRunner JobRunner, sched *scheduler.Scheduler,
	geocoder Geocoder, cadastre CadastreClient, bus *eventbus.Bus, port string) *Server {

	s := &Server{
		store:    store,
		runner:   jobRunner,
		sched:    sched,
		geocoder: geocoder,
		cadastre: cadastre,
		bus:      bus,
	}
	if bus != nil {
		s.hub = newWSHub()
	}

	r := mux.NewRouter()
	r.Use(commonMiddleware)
	r.Use(rateLimitMiddleware)
	s.registerRoutes(r)

	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	return s
}

func (s *Server) Start() error {
	if s.bus != nil {
		go s.runEventFeed()
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus serves a cached aggregate view; the summary query
// joins every table, so a 10s cache keeps dashboards cheap.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.statusCache.mu.Lock()
	if now.Before(s.statusCache.expiresAt) && len(s.statusCache.payload) > 0 {
		cached := append([]byte(nil), s.statusCache.payload...)
		s.statusCache.mu.Unlock()
		w.Write(cached)
		return
	}
	s.statusCache.mu.Unlock()

	payload, err := s.buildStatusPayload(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.statusCache.mu.Lock()
	s.statusCache.payload = payload
	s.statusCache.expiresAt = time.Now().Add(10 * time.Second)
	s.statusCache.mu.Unlock()

	w.Write(payload)
}

func (s *Server) buildStatusPayload(ctx context.Context) ([]byte, error) {
	summary, err := s.store.GetStatusSummary(ctx)
	if err != nil {
		return nil, err
	}

	resp := map[string]interface{}{
		"status":          "ok",
		"total_listings":  summary.TotalListings,
		"active_listings": summary.ActiveListings,
		"sources":         summary.Sources,
		"last_job":        summary.LastJob,
		"generated_at":    time.Now().UTC().Format(time.RFC3339),
	}

	// Enrichment coverage is informative but not worth failing the
	// whole endpoint over.
	if gs, err := s.store.GetGeocodeStats(ctx); err == nil {
		resp["geocode"] = gs
	}
	if cs, err := s.store.CadastreStats(ctx); err == nil {
		resp["cadastre"] = cs
	}

	scheduleState := "disabled"
	if s.sched != nil {
		scheduleState = "enabled"
		resp["schedules"] = s.sched.Jobs()
	}
	resp["scheduler"] = scheduleState

	return json.Marshal(resp)
}
