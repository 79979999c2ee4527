package scrape

import (
	"encoding/json"
	"testing"

	"realscan/internal/models"
)

func TestReasBuildListing(t *testing.T) {
	t.Parallel()

	raw := `{
		"_id": "6553ab01",
		"link": "https://www.reas.cz/inzerat/prodej-domu-znojmo",
		"type": "house",
		"disposition": "4+1",
		"displayArea": 161,
		"price": "4990000",
		"formattedAddress": "Znojmo, Pražská",
		"municipalitySlug": "znojmo",
		"point": {"coordinates": [16.0488, 48.8555]},
		"imagesWithMetadata": [
			{"order": 2, "original": "https://cdn.reas.cz/b.jpg"},
			{"order": 1, "original": "https://cdn.reas.cz/a.jpg"},
			{"preview": "https://cdn.reas.cz/c-preview.jpg"}
		]
	}`
	var ad reasAd
	if err := json.Unmarshal([]byte(raw), &ad); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	a := newReas(Options{})
	rec := a.buildListing(ad, models.OfferSale, "domy", "Jihomoravský kraj", "popis domu")

	if rec.ExternalID != "6553ab01" {
		t.Errorf("ExternalID = %q", rec.ExternalID)
	}
	if rec.Title != "Prodej domu 4+1 161 m² – Znojmo, Pražská" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.PropertyType != "House" {
		t.Errorf("PropertyType = %q", rec.PropertyType)
	}
	if rec.Price == nil || *rec.Price != 4990000 {
		t.Errorf("Price = %v", fv(rec.Price))
	}
	if rec.AreaBuiltUp == nil || *rec.AreaBuiltUp != 161 {
		t.Errorf("AreaBuiltUp = %v", fv(rec.AreaBuiltUp))
	}
	if rec.LocationText != "Znojmo, Pražská, Jihomoravský kraj" {
		t.Errorf("LocationText = %q", rec.LocationText)
	}
	if rec.Latitude == nil || *rec.Latitude != 48.8555 || rec.Longitude == nil || *rec.Longitude != 16.0488 {
		t.Errorf("coords = %v, %v", fv(rec.Latitude), fv(rec.Longitude))
	}
	if rec.Description != "popis domu" {
		t.Errorf("Description = %q", rec.Description)
	}
	want := []string{"https://cdn.reas.cz/a.jpg", "https://cdn.reas.cz/b.jpg", "https://cdn.reas.cz/c-preview.jpg"}
	if len(rec.PhotoURLs) != len(want) {
		t.Fatalf("PhotoURLs = %v", rec.PhotoURLs)
	}
	for i, u := range want {
		if rec.PhotoURLs[i] != u {
			t.Errorf("PhotoURLs[%d] = %q, want %q", i, rec.PhotoURLs[i], u)
		}
	}
}

func TestReasBuildListingFallbacks(t *testing.T) {
	t.Parallel()

	ad := reasAd{ID: "abc", SubType: "land", MunicipalitySlug: "hrusovany-nad-jevisovkou"}

	a := newReas(Options{})
	rec := a.buildListing(ad, models.OfferRent, "pozemky", "", "")

	if rec.URL != "https://www.reas.cz/inzerat/abc" {
		t.Errorf("URL = %q", rec.URL)
	}
	if rec.Title != "Pronájem pozemku" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.PropertyType != "Land" {
		t.Errorf("PropertyType = %q", rec.PropertyType)
	}
	if rec.LocationText != "Hrusovany Nad Jevisovkou" {
		t.Errorf("LocationText = %q", rec.LocationText)
	}
	if rec.Price != nil {
		t.Errorf("Price = %v", fv(rec.Price))
	}
}

func TestReasFilterAds(t *testing.T) {
	t.Parallel()

	point := func(lng, lat float64) *struct {
		Coordinates []float64 `json:"coordinates"`
	} {
		return &struct {
			Coordinates []float64 `json:"coordinates"`
		}{Coordinates: []float64{lng, lat}}
	}

	raw := []reasAd{
		{ID: "keep", Point: point(16.05, 48.86)},
		{ID: ""},
		{ID: "anon", IsAnonymized: true},
		{ID: "anon2", IsAnonymous: true},
		{ID: "prague", Point: point(14.42, 50.08)},
		{ID: "keep"},
		{ID: "nopoint"},
	}

	a := newReas(Options{})
	seen := map[string]bool{}
	got := a.filterAds(raw, seen, true)

	if len(got) != 2 || got[0].ID != "keep" || got[1].ID != "nopoint" {
		ids := make([]string, len(got))
		for i, ad := range got {
			ids[i] = ad.ID
		}
		t.Errorf("filterAds kept %v, want [keep nopoint]", ids)
	}

	// Without bbox enforcement the out-of-region record survives.
	got = a.filterAds(raw, map[string]bool{}, false)
	if len(got) != 3 {
		t.Errorf("filterAds without bbox kept %d, want 3", len(got))
	}
}

func TestReasNumberUnmarshal(t *testing.T) {
	t.Parallel()

	var payload struct {
		A *reasNumber `json:"a"`
		B *reasNumber `json:"b"`
		C *reasNumber `json:"c"`
		D *reasNumber `json:"d"`
	}
	raw := `{"a": 125, "b": "4500000", "c": "", "d": "dohodou"}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A == nil || float64(*payload.A) != 125 {
		t.Errorf("bare number = %v", payload.A)
	}
	if payload.B == nil || float64(*payload.B) != 4500000 {
		t.Errorf("quoted number = %v", payload.B)
	}
	if payload.C != nil && float64(*payload.C) != 0 {
		t.Errorf("empty string = %v", *payload.C)
	}
	if payload.D != nil && float64(*payload.D) != 0 {
		t.Errorf("junk string = %v", *payload.D)
	}
}

func TestExtractAdsList(t *testing.T) {
	t.Parallel()

	html := `<html><head></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"adsListResult":{"count":23,"data":[{"_id":"x1"},{"_id":"x2"}]}}},"buildId":"abc123"}</script>
</body></html>`

	list, err := extractAdsList([]byte(html))
	if err != nil {
		t.Fatalf("extractAdsList: %v", err)
	}
	if list == nil || list.Count != 23 || len(list.Data) != 2 || list.Data[0].ID != "x1" {
		t.Errorf("extractAdsList = %+v", list)
	}

	if m := reasBuildIDRe.FindStringSubmatch(html); m == nil || m[1] != "abc123" {
		t.Errorf("buildId match = %v", m)
	}
}

func TestTitleWords(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"hrusovany nad jevisovkou", "Hrusovany Nad Jevisovkou"},
		{"znojmo", "Znojmo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := titleWords(tt.in); got != tt.want {
			t.Errorf("titleWords(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
