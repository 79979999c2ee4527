package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"realscan/internal/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	targets []repository.CoordTarget
	writes  map[int64][2]float64
	sources map[int64]string
}

func newFakeStore(targets ...repository.CoordTarget) *fakeStore {
	return &fakeStore{
		targets: targets,
		writes:  map[int64][2]float64{},
		sources: map[int64]string{},
	}
}

func (s *fakeStore) ListingsWithoutCoords(ctx context.Context, limit int) ([]repository.CoordTarget, error) {
	if limit < len(s.targets) {
		return s.targets[:limit], nil
	}
	return s.targets, nil
}

func (s *fakeStore) SetListingCoords(ctx context.Context, listingID int64, lat, lon float64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[listingID] = [2]float64{lat, lon}
	s.sources[listingID] = source
	return nil
}

// testClient points a Client at a stub Nominatim and removes the
// throttle so tests run fast.
func testClient(t *testing.T, store Store, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(store)
	c.baseURL = srv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c, srv
}

func TestBuildQueries(t *testing.T) {
	t.Parallel()

	got := buildQueries("Hodonice, okres Znojmo", "Hodonice", "Znojmo")
	want := []string{
		"Hodonice, okres Znojmo, Znojmo, Czech Republic",
		"Hodonice, Znojmo, Czech Republic",
		"Hodonice, Czech Republic",
		"Znojmo, Czech Republic",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildQueries = %#v, want %#v", got, want)
	}

	// Blank inputs produce no empty queries and no duplicates.
	got = buildQueries("", "Znojmo", "Znojmo")
	want = []string{"Znojmo, Czech Republic", "Znojmo, Znojmo, Czech Republic"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildQueries sparse = %#v, want %#v", got, want)
	}

	if qs := buildQueries("", "", ""); len(qs) != 0 {
		t.Errorf("buildQueries empty input = %#v", qs)
	}
}

func TestGeocodeFallsBackToLessSpecificQuery(t *testing.T) {
	t.Parallel()

	var queries []string
	var mu sync.Mutex
	c, _ := testClient(t, newFakeStore(), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		if q == "Znojmo, Czech Republic" {
			json.NewEncoder(w).Encode([]nominatimResult{{Lat: "48.8555", Lon: "16.0488"}})
			return
		}
		w.Write([]byte("[]"))
	})

	lat, lon, ok, err := c.Geocode(context.Background(), "Neznámá ulice 1", "", "Znojmo")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if !ok || lat != 48.8555 || lon != 16.0488 {
		t.Errorf("Geocode = (%v, %v, %v)", lat, lon, ok)
	}
	if len(queries) != 2 {
		t.Errorf("tried %d queries, want 2: %v", len(queries), queries)
	}
}

func TestGeocodeNoMatch(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, newFakeStore(), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})
	_, _, ok, err := c.Geocode(context.Background(), "Atlantis", "", "")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if ok {
		t.Error("Geocode resolved a location the API does not know")
	}
}

func TestBulkGeocodeWritesProvenance(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		repository.CoordTarget{ListingID: 1, LocationText: "Znojmo"},
		repository.CoordTarget{ListingID: 2, LocationText: "Atlantis"},
	)
	c, _ := testClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Znojmo, Czech Republic" {
			json.NewEncoder(w).Encode([]nominatimResult{{Lat: "48.85", Lon: "16.05"}})
			return
		}
		w.Write([]byte("[]"))
	})

	res, err := c.BulkGeocode(context.Background(), 10)
	if err != nil {
		t.Fatalf("BulkGeocode: %v", err)
	}
	if res.Processed != 2 || res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("BulkGeocode = %+v", res)
	}
	if store.sources[1] != SourceTag {
		t.Errorf("provenance = %q, want %q", store.sources[1], SourceTag)
	}
	if _, ok := store.writes[2]; ok {
		t.Error("unresolvable listing got coordinates written")
	}
}

func TestBulkGeocodeIdempotentWhenNothingMissing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c, _ := testClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		t.Error("bulk sweep hit the API with nothing to do")
	})

	res, err := c.BulkGeocode(context.Background(), 10)
	if err != nil {
		t.Fatalf("BulkGeocode: %v", err)
	}
	if res.Processed != 0 || len(store.writes) != 0 {
		t.Errorf("sweep with empty backlog did work: %+v", res)
	}
}
