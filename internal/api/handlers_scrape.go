package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"realscan/internal/eventbus"
	"realscan/internal/models"
	"realscan/internal/runner"
	"realscan/internal/scrape"
)

type scrapeRunRequest struct {
	SourceCodes []string `json:"source_codes"`
	FullRescan  bool     `json:"full_rescan"`
}

// handleScrapeRun enqueues a scrape job and returns immediately; the
// runner executes on a background goroutine detached from the request
// context.
func (s *Server) handleScrapeRun(w http.ResponseWriter, r *http.Request) {
	var req scrapeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	known := map[string]bool{}
	for _, code := range scrape.Codes() {
		known[code] = true
	}
	for _, code := range req.SourceCodes {
		if !known[code] {
			writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("unknown source code %q", code))
			return
		}
	}

	job, err := s.store.CreateJob(r.Context(), req.SourceCodes, req.FullRescan)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.dispatchJob(job.ID, runner.Request{SourceCodes: req.SourceCodes, FullRescan: req.FullRescan})

	writeAccepted(w, map[string]interface{}{
		"job_id":  job.ID,
		"status":  models.JobQueued,
		"message": "scrape job queued",
	})
}

func (s *Server) dispatchJob(jobID uuid.UUID, req runner.Request) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type:      eventbus.EventJobQueued,
			JobID:     jobID.String(),
			Timestamp: time.Now().UTC(),
			Data:      map[string]interface{}{"source_codes": req.SourceCodes, "full_rescan": req.FullRescan},
		})
	}
	go func() {
		if err := s.runner.Execute(context.Background(), jobID, req); err != nil {
			log.Printf("[api] scrape job %s failed: %v", jobID, err)
		}
	}()
}

// EnqueueScheduled is the scheduler's entry point: it creates a job
// the same way the HTTP handler does. Fires are logged, never
// propagated; the scheduler has nobody to report to.
func (s *Server) EnqueueScheduled(fullRescan bool) {
	job, err := s.store.CreateJob(context.Background(), nil, fullRescan)
	if err != nil {
		log.Printf("[api] failed to create scheduled job: %v", err)
		return
	}
	log.Printf("[api] scheduled scrape job %s created (full_rescan=%v)", job.ID, fullRescan)
	s.dispatchJob(job.ID, runner.Request{FullRescan: fullRescan})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed job id")
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeAPIError(w, http.StatusNotFound, "job not found")
		return
	}
	writeAPIResponse(w, job, nil)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidJobStatus(status) {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	jobs, err := s.store.ListJobs(r.Context(), limit, offset, status)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAPIResponse(w, jobs, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
		"count":  len(jobs),
	})
}
