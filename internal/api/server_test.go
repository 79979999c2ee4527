package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"realscan/internal/geocode"
	"realscan/internal/models"
	"realscan/internal/repository"
	"realscan/internal/ruian"
	"realscan/internal/runner"
	"realscan/internal/scheduler"
)

type fakeStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.ScrapeJob
	created []*models.ScrapeJob
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[uuid.UUID]*models.ScrapeJob{}}
}

func (s *fakeStore) CreateJob(ctx context.Context, sourceCodes []string, fullRescan bool) (*models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.ScrapeJob{
		ID:          uuid.New(),
		SourceCodes: sourceCodes,
		FullRescan:  fullRescan,
		Status:      models.JobQueued,
		CreatedAt:   time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	s.created = append(s.created, job)
	return job, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id], nil
}

func (s *fakeStore) ListJobs(ctx context.Context, limit, offset int, status string) ([]*models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ScrapeJob{}
	for _, j := range s.jobs {
		if status == "" || j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeStore) GetGeocodeStats(ctx context.Context) (*repository.GeocodeStats, error) {
	return &repository.GeocodeStats{Total: 10, WithCoords: 7, Missing: 3}, nil
}

func (s *fakeStore) CadastreStats(ctx context.Context) (map[string]int, error) {
	return map[string]int{"found": 5, "missing": 2}, nil
}

func (s *fakeStore) GetStatusSummary(ctx context.Context) (*repository.StatusSummary, error) {
	return &repository.StatusSummary{TotalListings: 10, ActiveListings: 8}, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []runner.Request
}

func (r *fakeRunner) Execute(ctx context.Context, jobID uuid.UUID, req runner.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, req)
	return nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(ctx context.Context, locationText, municipality, district string) (float64, float64, bool, error) {
	if locationText == "Znojmo" {
		return 48.8555, 16.0488, true, nil
	}
	return 0, 0, false, nil
}

func (fakeGeocoder) BulkGeocode(ctx context.Context, batchSize int) (geocode.BulkResult, error) {
	return geocode.BulkResult{}, nil
}

type fakeCadastre struct{}

func (fakeCadastre) Lookup(ctx context.Context, address string) *ruian.Result {
	return &ruian.Result{AddressSearched: address, FetchStatus: models.CadastreNotFound}
}

func (fakeCadastre) BulkProcess(ctx context.Context, batchSize int, overwriteNotFound bool) (ruian.BulkResult, error) {
	return ruian.BulkResult{}, nil
}

func newTestServer(t *testing.T, sched *scheduler.Scheduler) (*Server, *fakeStore, *fakeRunner) {
	t.Helper()
	store := newFakeStore()
	run := &fakeRunner{}
	s := NewServer(store, run, sched, fakeGeocoder{}, fakeCadastre{}, nil, "0")
	return s, store, run
}

var reqSeq atomic.Int64

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	// Unique client IP per request keeps these out of each other's
	// rate-limit buckets.
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", reqSeq.Add(1)%250))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestScrapeRunQueuesJob(t *testing.T) {
	s, store, run := newTestServer(t, nil)

	rec := doRequest(s, "POST", "/v1/scrape/run", `{"source_codes":["REMAX"],"full_rescan":false}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	if data["status"] != models.JobQueued {
		t.Errorf("status field = %v", data["status"])
	}
	if _, err := uuid.Parse(data["job_id"].(string)); err != nil {
		t.Errorf("job_id %v is not a uuid", data["job_id"])
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d jobs, want 1", len(store.created))
	}

	// The runner is dispatched asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for run.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if run.count() != 1 {
		t.Fatal("runner was never dispatched")
	}
}

func TestScrapeRunRejectsUnknownSource(t *testing.T) {
	s, store, _ := newTestServer(t, nil)

	rec := doRequest(s, "POST", "/v1/scrape/run", `{"source_codes":["BOGUS"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(store.created) != 0 {
		t.Error("job was created for an unknown source")
	}
}

func TestScrapeRunRejectsMalformedBody(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	if rec := doRequest(s, "POST", "/v1/scrape/run", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	s, store, _ := newTestServer(t, nil)
	job, _ := store.CreateJob(context.Background(), nil, false)

	if rec := doRequest(s, "GET", "/v1/scrape/jobs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", rec.Code)
	}
	if rec := doRequest(s, "GET", "/v1/scrape/jobs/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	rec := doRequest(s, "GET", "/v1/scrape/jobs/"+job.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	got := env.Data.(map[string]interface{})
	if got["job_id"] != job.ID.String() {
		t.Errorf("job_id = %v, want %s", got["job_id"], job.ID)
	}
}

func TestListJobsRejectsUnknownStatus(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	if rec := doRequest(s, "GET", "/v1/scrape/jobs?status=Bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := doRequest(s, "GET", "/v1/scrape/jobs?status=Succeeded", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGeocodeSingle(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	if rec := doRequest(s, "GET", "/v1/geocode/single", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing address status = %d, want 400", rec.Code)
	}
	if rec := doRequest(s, "GET", "/v1/geocode/single?address=Atlantis", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unresolved address status = %d, want 404", rec.Code)
	}

	rec := doRequest(s, "GET", "/v1/geocode/single?address=Znojmo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	coords := env.Data.(map[string]interface{})
	if coords["latitude"].(float64) != 48.8555 {
		t.Errorf("latitude = %v", coords["latitude"])
	}
}

func TestBulkEndpointsAcknowledgeImmediately(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	if rec := doRequest(s, "POST", "/v1/geocode/bulk?batch_size=5", ""); rec.Code != http.StatusAccepted {
		t.Errorf("geocode bulk status = %d, want 202", rec.Code)
	}
	if rec := doRequest(s, "POST", "/v1/ruian/bulk?overwrite_not_found=true", ""); rec.Code != http.StatusAccepted {
		t.Errorf("ruian bulk status = %d, want 202", rec.Code)
	}
}

func TestScheduleEndpointsWhenDisabled(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/v1/schedule/jobs"},
		{"PUT", "/v1/schedule/jobs/daily_scrape/pause"},
		{"POST", "/v1/schedule/trigger-now"},
	} {
		if rec := doRequest(s, tc.method, tc.path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestScheduleLifecycleOverHTTP(t *testing.T) {
	sched, err := scheduler.New(func(bool) {}, "", "")
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	s, _, _ := newTestServer(t, sched)

	rec := doRequest(s, "GET", "/v1/schedule/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if n := len(env.Data.([]interface{})); n != 2 {
		t.Errorf("schedule list has %d entries, want 2", n)
	}

	if rec := doRequest(s, "PUT", "/v1/schedule/jobs/daily_scrape/pause", ""); rec.Code != http.StatusOK {
		t.Errorf("pause status = %d", rec.Code)
	}
	if rec := doRequest(s, "PUT", "/v1/schedule/jobs/daily_scrape/cron?cron=bad", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad cron status = %d, want 400", rec.Code)
	}
	if rec := doRequest(s, "PUT", "/v1/schedule/jobs/daily_scrape/cron?cron=15+4+*+*+*", ""); rec.Code != http.StatusOK {
		t.Errorf("reschedule status = %d", rec.Code)
	}
}

func TestHealthAndStatus(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	if rec := doRequest(s, "GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec := doRequest(s, "GET", "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if payload["scheduler"] != "disabled" {
		t.Errorf("scheduler state = %v", payload["scheduler"])
	}
	if payload["total_listings"].(float64) != 10 {
		t.Errorf("total_listings = %v", payload["total_listings"])
	}
}
