package api

import "github.com/gorilla/mux"

func (s *Server) registerRoutes(r *mux.Router) {
	auth := newAuthMiddlewareFromEnv()

	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/events", s.handleEvents).Methods("GET", "OPTIONS")

	r.Handle("/v1/scrape/run", auth.wrap(s.handleScrapeRun)).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/scrape/jobs", s.handleListJobs).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/scrape/jobs/{id}", s.handleGetJob).Methods("GET", "OPTIONS")

	r.HandleFunc("/v1/geocode/bulk", s.handleGeocodeBulk).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/geocode/single", s.handleGeocodeSingle).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/geocode/stats", s.handleGeocodeStats).Methods("GET", "OPTIONS")

	r.HandleFunc("/v1/ruian/bulk", s.handleRuianBulk).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/ruian/single", s.handleRuianSingle).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/ruian/stats", s.handleRuianStats).Methods("GET", "OPTIONS")

	r.HandleFunc("/v1/schedule/jobs", s.handleScheduleJobs).Methods("GET", "OPTIONS")
	r.Handle("/v1/schedule/jobs/{id}/pause", auth.wrap(s.handleSchedulePause)).Methods("PUT", "OPTIONS")
	r.Handle("/v1/schedule/jobs/{id}/resume", auth.wrap(s.handleScheduleResume)).Methods("PUT", "OPTIONS")
	r.Handle("/v1/schedule/jobs/{id}/cron", auth.wrap(s.handleScheduleCron)).Methods("PUT", "OPTIONS")
	r.Handle("/v1/schedule/trigger-now", auth.wrap(s.handleScheduleTrigger)).Methods("POST", "OPTIONS")
}
