// Package geocode resolves listing locations to coordinates through
// the public Nominatim search API. Nominatim's usage policy allows at
// most one request per second, so every query waits on a limiter.
package geocode

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realscan/internal/fetch"
	"realscan/internal/repository"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org/search"
	userAgent      = "realscan/1.0 (property listing aggregator; admin@realscan.cz)"

	// Provenance tag written next to resolved coordinates.
	SourceTag = "nominatim"
)

// Store is the slice of the repository the bulk sweep uses.
type Store interface {
	ListingsWithoutCoords(ctx context.Context, limit int) ([]repository.CoordTarget, error)
	SetListingCoords(ctx context.Context, listingID int64, lat, lon float64, source string) error
}

// Client is a rate-limited Nominatim client.
type Client struct {
	client  *fetch.Client
	store   Store
	baseURL string
	limiter *rate.Limiter
}

// New builds a Client writing through store.
func New(store Store) *Client {
	return &Client{
		client:  fetch.NewClient(fetch.Config{UserAgent: userAgent}),
		store:   store,
		baseURL: defaultBaseURL,
		// One request per 1.1s keeps us under the public limit with
		// margin for clock skew.
		limiter: rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a location to coordinates, trying progressively
// less specific queries until one hits. Returns ok=false when every
// variant comes back empty.
func (c *Client) Geocode(ctx context.Context, locationText, municipality, district string) (lat, lon float64, ok bool, err error) {
	for _, query := range buildQueries(locationText, municipality, district) {
		results, err := c.search(ctx, query)
		if err != nil {
			return 0, 0, false, err
		}
		if len(results) == 0 {
			continue
		}
		lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
		lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		return lat, lon, true, nil
	}
	return 0, 0, false, nil
}

// buildQueries orders query strings most- to least-specific. The
// country suffix keeps Czech village names from matching abroad.
func buildQueries(locationText, municipality, district string) []string {
	var queries []string
	add := func(parts ...string) {
		var kept []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return
		}
		q := strings.Join(kept, ", ") + ", Czech Republic"
		for _, existing := range queries {
			if existing == q {
				return
			}
		}
		queries = append(queries, q)
	}
	add(locationText, district)
	add(municipality, district)
	add(municipality)
	add(district)
	return queries
}

func (c *Client) search(ctx context.Context, query string) ([]nominatimResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "cz")

	var results []nominatimResult
	if err := c.client.GetJSON(ctx, c.baseURL+"?"+params.Encode(), &results); err != nil {
		return nil, fmt.Errorf("nominatim query %q: %w", query, err)
	}
	return results, nil
}

// BulkResult summarizes one sweep.
type BulkResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BulkGeocode sweeps active listings that still lack coordinates and
// writes back what Nominatim resolves, tagged with the provenance
// "nominatim". Idempotent: with nothing left to fill it does no writes
// and reports zero processed.
func (c *Client) BulkGeocode(ctx context.Context, batchSize int) (BulkResult, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	var res BulkResult

	targets, err := c.store.ListingsWithoutCoords(ctx, batchSize)
	if err != nil {
		return res, err
	}
	log.Printf("[geocode] bulk sweep: %d listings without coordinates", len(targets))

	for _, t := range targets {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Processed++

		lat, lon, ok, err := c.Geocode(ctx, t.LocationText, t.Municipality, t.District)
		if err != nil {
			res.Failed++
			log.Printf("[geocode] listing %d: %v", t.ListingID, err)
			continue
		}
		if !ok {
			res.Failed++
			continue
		}
		if err := c.store.SetListingCoords(ctx, t.ListingID, lat, lon, SourceTag); err != nil {
			res.Failed++
			log.Printf("[geocode] listing %d: %v", t.ListingID, err)
			continue
		}
		res.Succeeded++
	}
	log.Printf("[geocode] bulk sweep done: processed=%d succeeded=%d failed=%d",
		res.Processed, res.Succeeded, res.Failed)
	return res, nil
}
