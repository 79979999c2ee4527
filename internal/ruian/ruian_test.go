package ruian

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"realscan/internal/models"
	"realscan/internal/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	targets []repository.CadastreTarget
	upserts []models.ListingCadastreData
}

func (s *fakeStore) ListingsWithoutCadastre(ctx context.Context, limit int, retryNotFound bool) ([]repository.CadastreTarget, error) {
	if limit < len(s.targets) {
		return s.targets[:limit], nil
	}
	return s.targets, nil
}

func (s *fakeStore) UpsertCadastre(ctx context.Context, data *models.ListingCadastreData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, *data)
	return nil
}

func testClient(t *testing.T, store Store, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(store)
	c.findURL = srv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestSearchAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		locationText string
		municipality string
		want         string
	}{
		{"municipality wins", "Hodonice, okres Znojmo", "Hodonice", "Hodonice"},
		{"strips okres", "Hodonice, okres Znojmo", "", "Hodonice"},
		{"strips kraj", "Znojmo, Jihomoravský kraj", "", "Znojmo"},
		{"keeps plain address", "Dyjákovice 12", "", "Dyjákovice 12"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SearchAddress(tt.locationText, tt.municipality); got != tt.want {
				t.Errorf("SearchAddress(%q, %q) = %q, want %q",
					tt.locationText, tt.municipality, got, tt.want)
			}
		})
	}
}

func TestExtractKod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		attrs map[string]interface{}
		want  string
	}{
		{"uppercase string", map[string]interface{}{"KOD": "12345678"}, "12345678"},
		{"numeric value", map[string]interface{}{"kod": float64(4242)}, "4242"},
		{"fallback key order", map[string]interface{}{"OBJECTID": "99", "KOD": "11"}, "11"},
		{"non-numeric rejected", map[string]interface{}{"KOD": "abc"}, ""},
		{"nothing usable", map[string]interface{}{"NAZEV": "Znojmo"}, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractKod(tt.attrs); got != tt.want {
				t.Errorf("extractKod = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLookupFound(t *testing.T) {
	t.Parallel()

	c := testClient(t, &fakeStore{}, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("searchText"); got != "Hodonice" {
			t.Errorf("searchText = %q", got)
		}
		w.Write([]byte(`{"results":[{"attributes":{"KOD":"21734567"}}]}`))
	})

	res := c.Lookup(context.Background(), "Hodonice")
	if res.FetchStatus != models.CadastreFound {
		t.Fatalf("status = %q, want found", res.FetchStatus)
	}
	if res.RuianKod != "21734567" {
		t.Errorf("kod = %q", res.RuianKod)
	}
	want := "https://nahlizenidokn.cuzk.cz/ZobrazitMapu/Basic?typeCode=adresniMisto&id=K21734567"
	if res.CadastreURL != want {
		t.Errorf("cadastre url = %q, want %q", res.CadastreURL, want)
	}
	if len(res.Raw) == 0 {
		t.Error("raw response not retained")
	}
}

func TestLookupOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"empty result set", 200, `{"results":[]}`, models.CadastreNotFound},
		{"malformed payload", 200, `<html>maintenance</html>`, models.CadastreError},
		{"server error", 404, `{}`, models.CadastreError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := testClient(t, &fakeStore{}, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			if res := c.Lookup(context.Background(), "Znojmo"); res.FetchStatus != tt.want {
				t.Errorf("status = %q, want %q", res.FetchStatus, tt.want)
			}
		})
	}
}

func TestBulkProcessUpsertsEveryOutcome(t *testing.T) {
	t.Parallel()

	store := &fakeStore{targets: []repository.CadastreTarget{
		{ListingID: 1, Municipality: "Hodonice"},
		{ListingID: 2, LocationText: "Atlantis"},
	}}
	c := testClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("searchText") == "Hodonice" {
			w.Write([]byte(`{"results":[{"attributes":{"KOD":"123"}}]}`))
			return
		}
		w.Write([]byte(`{"results":[]}`))
	})

	res, err := c.BulkProcess(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("BulkProcess: %v", err)
	}
	if res.Processed != 2 || res.Found != 1 || res.NotFound != 1 {
		t.Errorf("BulkProcess = %+v", res)
	}
	// Outcomes are persisted either way so re-runs skip them.
	if len(store.upserts) != 2 {
		t.Fatalf("upserted %d rows, want 2", len(store.upserts))
	}
	byID := map[int64]models.ListingCadastreData{}
	for _, u := range store.upserts {
		byID[u.ListingID] = u
	}
	if byID[1].FetchStatus != models.CadastreFound || byID[1].RuianKod != "123" {
		t.Errorf("listing 1 outcome = %+v", byID[1])
	}
	if byID[2].FetchStatus != models.CadastreNotFound {
		t.Errorf("listing 2 outcome = %+v", byID[2])
	}
}

func TestBulkProcessIdempotentWhenNothingPending(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := testClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		t.Error("bulk sweep hit the API with nothing to do")
	})
	res, err := c.BulkProcess(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("BulkProcess: %v", err)
	}
	if res.Processed != 0 || len(store.upserts) != 0 {
		t.Errorf("sweep with empty backlog did work: %+v", res)
	}
}
