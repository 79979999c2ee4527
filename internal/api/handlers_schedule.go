package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// requireScheduler guards the schedule endpoints; a disabled
// scheduler is indistinguishable from a missing resource.
func (s *Server) requireScheduler(w http.ResponseWriter) bool {
	if s.sched == nil {
		writeAPIError(w, http.StatusNotFound, "scheduler is disabled")
		return false
	}
	return true
}

func (s *Server) handleScheduleJobs(w http.ResponseWriter, r *http.Request) {
	if !s.requireScheduler(w) {
		return
	}
	writeAPIResponse(w, s.sched.Jobs(), nil)
}

func (s *Server) handleSchedulePause(w http.ResponseWriter, r *http.Request) {
	if !s.requireScheduler(w) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.sched.Pause(id); err != nil {
		writeAPIError(w, http.StatusNotFound, err.Error())
		return
	}
	writeAPIResponse(w, map[string]string{"id": id, "state": "paused"}, nil)
}

func (s *Server) handleScheduleResume(w http.ResponseWriter, r *http.Request) {
	if !s.requireScheduler(w) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.sched.Resume(id); err != nil {
		writeAPIError(w, http.StatusNotFound, err.Error())
		return
	}
	writeAPIResponse(w, map[string]string{"id": id, "state": "active"}, nil)
}

func (s *Server) handleScheduleCron(w http.ResponseWriter, r *http.Request) {
	if !s.requireScheduler(w) {
		return
	}
	id := mux.Vars(r)["id"]
	expr := r.URL.Query().Get("cron")
	if expr == "" {
		writeAPIError(w, http.StatusBadRequest, "cron parameter is required")
		return
	}
	if err := s.sched.Reschedule(id, expr); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeAPIResponse(w, map[string]string{"id": id, "cron": expr}, nil)
}

func (s *Server) handleScheduleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.requireScheduler(w) {
		return
	}
	fullRescan := parseBoolParam(r, "full_rescan")
	if err := s.sched.TriggerNow(fullRescan); err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAccepted(w, map[string]interface{}{
		"message":     "scrape triggered",
		"full_rescan": fullRescan,
	})
}
