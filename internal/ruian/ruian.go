// Package ruian looks listings up in the Czech RÚIAN registry through
// the public ČÚZK ArcGIS find service and stores a deep link into the
// cadastre viewer per listing. The endpoint is public but politeness
// demands the same 1 req/s pacing as the geocoder.
package ruian

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realscan/internal/fetch"
	"realscan/internal/models"
	"realscan/internal/repository"
)

const (
	defaultFindURL = "https://ags.cuzk.cz/arcgis/rest/services/RUIAN/Vyhledavaci_sluzba_nad_daty_RUIAN/MapServer/find"
	cadastreURLFmt = "https://nahlizenidokn.cuzk.cz/ZobrazitMapu/Basic?typeCode=adresniMisto&id=K%s"
	userAgent      = "realscan/1.0 (property listing aggregator; admin@realscan.cz)"
)

// Attribute keys probed for the address-point code, in order. ArcGIS
// layers are inconsistent about casing.
var kodKeys = []string{"KOD", "kod", "KOD_ADM", "OBJECTID"}

var (
	okresRe   = regexp.MustCompile(`(?i)\s*,?\s*okres\s+\S+`)
	krajRe    = regexp.MustCompile(`(?i)\s*,?\s*\S*\s*kraj\b[^,]*`)
	numericRe = regexp.MustCompile(`^\d+$`)
)

// Store is the slice of the repository the sweep uses.
type Store interface {
	ListingsWithoutCadastre(ctx context.Context, limit int, retryNotFound bool) ([]repository.CadastreTarget, error)
	UpsertCadastre(ctx context.Context, data *models.ListingCadastreData) error
}

// Client queries the ČÚZK find service.
type Client struct {
	client  *fetch.Client
	store   Store
	findURL string
	limiter *rate.Limiter
}

// New builds a Client writing through store.
func New(store Store) *Client {
	return &Client{
		client:  fetch.NewClient(fetch.Config{UserAgent: userAgent}),
		store:   store,
		findURL: defaultFindURL,
		limiter: rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
	}
}

// Result is one lookup outcome, ready for UpsertCadastre.
type Result struct {
	AddressSearched string          `json:"address_searched"`
	RuianKod        string          `json:"ruian_kod,omitempty"`
	CadastreURL     string          `json:"cadastre_url,omitempty"`
	FetchStatus     string          `json:"fetch_status"`
	Raw             json.RawMessage `json:"-"`
}

type findResponse struct {
	Results []struct {
		Attributes map[string]interface{} `json:"attributes"`
	} `json:"results"`
}

// SearchAddress picks the query string for a listing: the municipality
// when the adapter extracted one, otherwise the location text with the
// administrative suffixes stripped.
func SearchAddress(locationText, municipality string) string {
	if m := strings.TrimSpace(municipality); m != "" {
		return m
	}
	addr := okresRe.ReplaceAllString(locationText, "")
	addr = krajRe.ReplaceAllString(addr, "")
	return strings.Trim(strings.TrimSpace(addr), ",")
}

// Lookup queries the registry for one address. Transport and decode
// failures yield status "error"; an empty result set yields
// "not_found"; both come back as a storable Result, not a Go error,
// so the sweep can record the outcome either way.
func (c *Client) Lookup(ctx context.Context, address string) *Result {
	res := &Result{AddressSearched: address, FetchStatus: models.CadastreNotFound}
	if address == "" {
		return res
	}
	if err := c.limiter.Wait(ctx); err != nil {
		res.FetchStatus = models.CadastreError
		return res
	}

	params := url.Values{}
	params.Set("searchText", address)
	params.Set("contains", "true")
	params.Set("layers", "all")
	params.Set("returnGeometry", "false")
	params.Set("f", "json")

	data, err := c.client.Get(ctx, c.findURL+"?"+params.Encode())
	if err != nil {
		log.Printf("[ruian] find %q: %v", address, err)
		res.FetchStatus = models.CadastreError
		return res
	}
	if json.Valid(data) {
		res.Raw = json.RawMessage(data)
	}

	var parsed findResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("[ruian] decode find %q: %v", address, err)
		res.FetchStatus = models.CadastreError
		return res
	}
	if len(parsed.Results) == 0 {
		return res
	}

	kod := extractKod(parsed.Results[0].Attributes)
	if kod == "" {
		return res
	}
	res.RuianKod = kod
	res.CadastreURL = fmt.Sprintf(cadastreURLFmt, kod)
	res.FetchStatus = models.CadastreFound
	return res
}

// extractKod probes the attribute map for a numeric address-point
// code under the known key spellings.
func extractKod(attrs map[string]interface{}) string {
	for _, key := range kodKeys {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = fmt.Sprintf("%.0f", t)
		case json.Number:
			s = t.String()
		}
		if numericRe.MatchString(s) {
			return s
		}
	}
	return ""
}

// BulkResult summarizes one sweep.
type BulkResult struct {
	Processed int `json:"processed"`
	Found     int `json:"found"`
	NotFound  int `json:"not_found"`
	Errors    int `json:"errors"`
}

// BulkProcess sweeps active listings that still need a cadastre
// lookup. Rows marked manual are never touched; prior not_found rows
// are retried only when overwriteNotFound is set. Re-running the
// sweep is safe: upserts replace whole rows.
func (c *Client) BulkProcess(ctx context.Context, batchSize int, overwriteNotFound bool) (BulkResult, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	var res BulkResult

	targets, err := c.store.ListingsWithoutCadastre(ctx, batchSize, overwriteNotFound)
	if err != nil {
		return res, err
	}
	log.Printf("[ruian] bulk sweep: %d listings to look up", len(targets))

	for _, t := range targets {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Processed++

		lookup := c.Lookup(ctx, SearchAddress(t.LocationText, t.Municipality))
		switch lookup.FetchStatus {
		case models.CadastreFound:
			res.Found++
		case models.CadastreNotFound:
			res.NotFound++
		default:
			res.Errors++
		}

		if err := c.store.UpsertCadastre(ctx, &models.ListingCadastreData{
			ListingID:       t.ListingID,
			AddressSearched: lookup.AddressSearched,
			RuianKod:        lookup.RuianKod,
			CadastreURL:     lookup.CadastreURL,
			FetchStatus:     lookup.FetchStatus,
			RawRuian:        lookup.Raw,
		}); err != nil {
			log.Printf("[ruian] listing %d: %v", t.ListingID, err)
		}
	}
	log.Printf("[ruian] bulk sweep done: processed=%d found=%d not_found=%d errors=%d",
		res.Processed, res.Found, res.NotFound, res.Errors)
	return res, nil
}
