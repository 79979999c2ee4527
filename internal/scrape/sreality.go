package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"realscan/internal/fetch"
	"realscan/internal/models"
)

const (
	srealityAPIBase = "https://www.sreality.cz/api/cs/v2"
	srealityWebBase = "https://www.sreality.cz"
	srealityPerPage = 60
)

var srealityPropertyTypes = map[int]string{
	1: "Byt",
	2: "Dům",
	3: "Pozemek",
	4: "Komerční",
	5: "Ostatní",
}

var srealityOfferTypes = map[int]string{
	1: "Prodej",
	2: "Pronájem",
	3: "Dražba",
}

var srealityMainSlugs = map[int]string{
	1: "byty",
	2: "domy",
	3: "pozemky",
	4: "komercni",
	5: "ostatni",
}

var srealityTypeSlugs = map[int]string{
	1: "prodej",
	2: "pronajem",
	3: "drazba",
}

// Sales across every property kind, rentals only where the district
// has inventory.
var srealityCategories = []struct{ main, typ int }{
	{1, 1}, {2, 1}, {3, 1}, {4, 1}, {5, 1},
	{1, 2}, {2, 2},
}

type srealityAdapter struct {
	base
}

func newSreality(opts Options) *srealityAdapter {
	return &srealityAdapter{base: newBase("SREALITY", opts)}
}

type srealityEstate struct {
	HashID   int64  `json:"hash_id"`
	Name     string `json:"name"`
	Locality string `json:"locality"`
	PriceCZK struct {
		ValueRaw float64 `json:"value_raw"`
	} `json:"price_czk"`
	GPS *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"gps"`
	Seo struct {
		CategoryMainCb int `json:"category_main_cb"`
		CategoryTypeCb int `json:"category_type_cb"`
	} `json:"seo"`
	Links srealityLinks `json:"_links"`
}

type srealityLinks struct {
	Images []struct {
		Href string `json:"href"`
	} `json:"images"`
}

type srealityListPage struct {
	ResultSize int `json:"result_size"`
	Embedded   struct {
		Estates []srealityEstate `json:"estates"`
	} `json:"_embedded"`
}

type srealityDetail struct {
	Text  json.RawMessage `json:"text"`
	Items []struct {
		Name  string      `json:"name"`
		Value interface{} `json:"value"`
	} `json:"items"`
	Links    srealityLinks `json:"_links"`
	Embedded struct {
		Images []struct {
			Href string `json:"href"`
			URL  string `json:"url"`
		} `json:"images"`
	} `json:"_embedded"`
}

func (a *srealityAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 5
	if fullRescan {
		maxPages = 999
	}

	for _, cat := range srealityCategories {
		if err := a.runCategory(ctx, m, cat.main, cat.typ, maxPages); err != nil {
			return m.savedCount(), err
		}
	}
	return m.savedCount(), nil
}

func (a *srealityAdapter) runCategory(ctx context.Context, m *runMetrics, mainCb, typeCb, maxPages int) error {
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		listPage, err := a.fetchListPage(ctx, mainCb, typeCb, page)
		if err != nil {
			return fmt.Errorf("failed to fetch estates page %d (main=%d type=%d): %w", page, mainCb, typeCb, err)
		}
		m.page()

		estates := listPage.Embedded.Estates
		if len(estates) == 0 {
			return nil
		}

		a.processEstates(ctx, m, estates, mainCb, typeCb)

		totalPages := (listPage.ResultSize + srealityPerPage - 1) / srealityPerPage
		if page >= totalPages {
			return nil
		}
		pause(ctx, time.Second)
	}
	return nil
}

// fetchListPage asks the estates API for one page, waiting out a rate
// limit once before giving up.
func (a *srealityAdapter) fetchListPage(ctx context.Context, mainCb, typeCb, page int) (*srealityListPage, error) {
	params := url.Values{}
	params.Set("category_main_cb", strconv.Itoa(mainCb))
	params.Set("category_type_cb", strconv.Itoa(typeCb))
	params.Set("locality_region_id", strconv.Itoa(a.opts.RegionID))
	params.Set("locality_district_id", strconv.Itoa(a.opts.DistrictID))
	params.Set("per_page", strconv.Itoa(srealityPerPage))
	params.Set("page", strconv.Itoa(page))
	listURL := srealityAPIBase + "/estates?" + params.Encode()

	var listPage srealityListPage
	err := a.opts.Client.GetJSON(ctx, listURL, &listPage)
	if isTooManyRequests(err) {
		pause(ctx, 30*time.Second)
		err = a.opts.Client.GetJSON(ctx, listURL, &listPage)
	}
	if err != nil {
		return nil, err
	}
	return &listPage, nil
}

func (a *srealityAdapter) processEstates(ctx context.Context, m *runMetrics, estates []srealityEstate, mainCb, typeCb int) {
	byID := map[string]*srealityEstate{}
	ids := make([]string, 0, len(estates))
	for i := range estates {
		if estates[i].HashID == 0 {
			continue
		}
		id := strconv.FormatInt(estates[i].HashID, 10)
		byID[id] = &estates[i]
		ids = append(ids, id)
	}

	if a.opts.SkipDetails {
		for _, id := range ids {
			a.save(ctx, m, a.normalize(byID[id], mainCb, typeCb))
		}
		return
	}

	a.eachDetail(ctx, m, ids, func(ctx context.Context, id string) error {
		rec := a.normalize(byID[id], mainCb, typeCb)
		var detail srealityDetail
		err := a.opts.Client.GetJSON(ctx, srealityAPIBase+"/estates/"+id, &detail)
		if err == nil {
			a.mergeDetail(rec, &detail)
		}
		// The list payload already carries a complete record; a failed
		// detail fetch only costs the description.
		a.save(ctx, m, rec)
		pause(ctx, 300*time.Millisecond)
		return err
	})
}

func (a *srealityAdapter) normalize(e *srealityEstate, mainCb, typeCb int) *models.ScrapedListing {
	if e.Seo.CategoryMainCb > 0 {
		mainCb = e.Seo.CategoryMainCb
	}
	if e.Seo.CategoryTypeCb > 0 {
		typeCb = e.Seo.CategoryTypeCb
	}

	id := strconv.FormatInt(e.HashID, 10)
	rec := &models.ScrapedListing{
		ExternalID:   id,
		URL:          fmt.Sprintf("%s/detail/%s/%s/%s", srealityWebBase, srealityTypeSlugs[typeCb], srealityMainSlugs[mainCb], id),
		Title:        truncate(CollapseWhitespace(e.Name), 200),
		LocationText: e.Locality,
		PropertyType: srealityPropertyTypes[mainCb],
		OfferType:    srealityOfferTypes[typeCb],
	}
	if rec.PropertyType == "" {
		rec.PropertyType = "Ostatní"
	}
	if rec.OfferType == "" {
		rec.OfferType = "Prodej"
	}

	// Placeholder prices ("1 Kč", "dohodou") come through as <= 1.
	if e.PriceCZK.ValueRaw > 1 {
		price := e.PriceCZK.ValueRaw
		rec.Price = &price
	}
	if e.GPS != nil && e.GPS.Lat != 0 && e.GPS.Lon != 0 {
		lat, lon := e.GPS.Lat, e.GPS.Lon
		rec.Latitude = &lat
		rec.Longitude = &lon
	}
	rec.Municipality, rec.District = splitSrealityLocality(e.Locality)

	for _, img := range e.Links.Images {
		if img.Href != "" {
			rec.PhotoURLs = append(rec.PhotoURLs, img.Href)
		}
	}
	if len(rec.PhotoURLs) > 20 {
		rec.PhotoURLs = rec.PhotoURLs[:20]
	}

	// The list name encodes areas: "Prodej domu 161 m² (pozemek 750 m²)".
	rec.AreaBuiltUp = ParseArea(srealityBuiltUpFromName(e.Name))
	if lm := srealityLandRe.FindStringSubmatch(e.Name); lm != nil {
		rec.AreaLand = ParseArea(lm[1])
	}
	return rec
}

var srealityLandRe = regexp.MustCompile(`(?i)pozem\S*\s+([\d\s\x{00a0}]+)\s*m`)

func srealityBuiltUpFromName(name string) string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(strings.TrimSpace(lower), "prodej pozemku") || strings.HasPrefix(strings.TrimSpace(lower), "pronájem pozemku") {
		return ""
	}
	if m := srealityAreaRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

var srealityAreaRe = regexp.MustCompile(`([\d\s\x{00a0}]+)\s*m[²2]`)

func (a *srealityAdapter) mergeDetail(rec *models.ScrapedListing, detail *srealityDetail) {
	if desc := srealityText(detail.Text); desc != "" {
		rec.Description = truncate(desc, 5000)
	}

	var photos []string
	seen := map[string]bool{}
	addPhoto := func(href string) {
		if href != "" && !seen[href] {
			seen[href] = true
			photos = append(photos, href)
		}
	}
	for _, img := range detail.Links.Images {
		addPhoto(img.Href)
	}
	for _, img := range detail.Embedded.Images {
		if img.Href != "" {
			addPhoto(img.Href)
		} else {
			addPhoto(img.URL)
		}
	}
	if len(photos) > 0 {
		if len(photos) > 20 {
			photos = photos[:20]
		}
		rec.PhotoURLs = photos
	}

	for _, item := range detail.Items {
		if item.Name == "" || item.Value == nil {
			continue
		}
		value := fmt.Sprintf("%v", item.Value)
		lower := strings.ToLower(item.Name)
		switch {
		case strings.Contains(lower, "užit") || strings.Contains(lower, "uzit"):
			rec.AreaBuiltUp = ParseArea(value)
		case strings.Contains(lower, "pozem"):
			rec.AreaLand = ParseArea(value)
		}
	}
}

// srealityText unpacks the detail description, which the API ships
// either as a plain string or as {"value": "..."}.
func srealityText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != "" {
		return obj.Value
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// splitSrealityLocality splits "Dyjákovice, okres Znojmo" into
// municipality and district.
func splitSrealityLocality(loc string) (string, string) {
	municipality, district := "", ""
	for _, part := range strings.Split(loc, ",") {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		if strings.HasPrefix(lower, "okres ") {
			district = strings.TrimSpace(part[6:])
		} else if municipality == "" && part != "" {
			municipality = part
		}
	}
	return municipality, district
}

func isTooManyRequests(err error) bool {
	var statusErr *fetch.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == 429
}
