package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"realscan/internal/fetch"
	"realscan/internal/models"
)

const (
	reasBaseURL          = "https://www.reas.cz"
	reasPageLimit        = 10
	reasMaxCategoryCount = 500
)

// Landing pages are CDN-cached, so ?page=N always serves page 1. Two
// sort orders widen the incremental net; full rescans go through the
// _next/data endpoint which paginates for real.
var reasCategories = []struct {
	path         string
	offerType    string
	segment      string
	localityHint string
}{
	{"prodej/domy/jihomoravsky-kraj/cena-do-10-milionu?sort=newest", "Sale", "domy", "Jihomoravský kraj"},
	{"prodej/domy/jihomoravsky-kraj/cena-do-10-milionu?sort=cheapest", "Sale", "domy", "Jihomoravský kraj"},
}

// South Moravia bounding box. The _next/data endpoint ignores the
// locality slugs, so stray national records are dropped by GPS.
const (
	reasLatMin = 48.45
	reasLatMax = 49.65
	reasLngMin = 15.40
	reasLngMax = 17.70
)

var reasPropertyTypes = map[string]string{
	"flat":       "Apartment",
	"house":      "House",
	"land":       "Land",
	"commercial": "Commercial",
	"cottage":    "Cottage",
	"garage":     "Garage",
	"other":      "Other",
}

var reasSegmentNames = map[string]string{
	"byty":    "bytu",
	"domy":    "domu",
	"pozemky": "pozemku",
	"komerci": "komerční nemovitosti",
	"ostatni": "nemovitosti",
}

var (
	reasBuildIDRe  = regexp.MustCompile(`"buildId":"([^"]+)"`)
	reasNextDataRe = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__" type="application/json">(.*?)</script>`)
)

type reasAdapter struct {
	base
}

func newReas(opts Options) *reasAdapter {
	return &reasAdapter{base: newBase("REAS", opts)}
}

// reasNumber tolerates both bare and quoted numbers in SSR payloads.
type reasNumber float64

func (n *reasNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*n = reasNumber(v)
	return nil
}

type reasAd struct {
	ID                string      `json:"_id"`
	Link              string      `json:"link"`
	Type              string      `json:"type"`
	SubType           string      `json:"subType"`
	Disposition       string      `json:"disposition"`
	DisplayArea       *reasNumber `json:"displayArea"`
	FloorArea         *reasNumber `json:"floorArea"`
	Price             *reasNumber `json:"price"`
	OriginalPrice     *reasNumber `json:"originalPrice"`
	FormattedAddress  string      `json:"formattedAddress"`
	FormattedLocation string      `json:"formattedLocation"`
	MunicipalitySlug  string      `json:"municipalitySlug"`
	IsAnonymized      bool        `json:"isAnonymized"`
	IsAnonymous       bool        `json:"isAnonymous"`
	Point             *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"point"`
	ImagesWithMetadata []struct {
		Order    *int   `json:"order"`
		Original string `json:"original"`
		Preview  string `json:"preview"`
	} `json:"imagesWithMetadata"`
}

type reasAdsList struct {
	Count int      `json:"count"`
	Data  []reasAd `json:"data"`
}

type reasPageProps struct {
	AdsListResult *reasAdsList `json:"adsListResult"`
}

func (a *reasAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	buildID := ""
	if fullRescan {
		id, err := a.fetchBuildID(ctx)
		if err != nil {
			log.Printf("[%s] could not resolve buildId, falling back to cached pages: %v", a.code, err)
		} else {
			buildID = id
		}
	}

	for _, cat := range reasCategories {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		if err := a.runCategory(ctx, m, cat.path, cat.offerType, cat.segment, cat.localityHint, fullRescan, buildID); err != nil {
			m.fail(fmt.Sprintf("category %s: %v", cat.path, err))
		}
		pause(ctx, time.Second)
	}
	return m.savedCount(), nil
}

func (a *reasAdapter) runCategory(ctx context.Context, m *runMetrics, path, offerType, segment, localityHint string, fullRescan bool, buildID string) error {
	first, err := a.fetchHTMLPage(ctx, path, 1)
	if err != nil {
		return err
	}
	m.page()
	if first == nil {
		log.Printf("[%s] no listing data at %s", a.code, path)
		return nil
	}

	// A count in the thousands means the server dropped the locality
	// filter and is returning national data.
	if first.Count > reasMaxCategoryCount {
		log.Printf("[%s] count=%d exceeds %d at %s, skipping category", a.code, first.Count, reasMaxCategoryCount, path)
		return nil
	}

	useAPI := fullRescan && buildID != ""
	maxPages := 1
	if fullRescan {
		maxPages = (first.Count + reasPageLimit - 1) / reasPageLimit
		if maxPages < 1 {
			maxPages = 1
		}
	}

	seen := map[string]bool{}
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var list *reasAdsList
		switch {
		case page == 1 && !useAPI:
			list = first
		case useAPI:
			list, err = a.fetchAPIPage(ctx, path, page, buildID)
			if err != nil {
				return err
			}
			if list == nil {
				return nil
			}
			m.page()
			pause(ctx, 300*time.Millisecond)
		default:
			list, err = a.fetchHTMLPage(ctx, path, page)
			if err != nil {
				return err
			}
			m.page()
			pause(ctx, 500*time.Millisecond)
		}
		if list == nil {
			continue
		}

		ads := a.filterAds(list.Data, seen, useAPI)
		a.processAds(ctx, m, ads, offerType, segment, localityHint)
	}
	return nil
}

func (a *reasAdapter) filterAds(raw []reasAd, seen map[string]bool, enforceBBox bool) []reasAd {
	var ads []reasAd
	for _, ad := range raw {
		if ad.ID == "" || seen[ad.ID] {
			continue
		}
		// Anonymized records hide address, price and photos; they are
		// invisible in the public search and cannot be scraped.
		if ad.IsAnonymized || ad.IsAnonymous {
			continue
		}
		if enforceBBox && ad.Point != nil && len(ad.Point.Coordinates) >= 2 {
			lng, lat := ad.Point.Coordinates[0], ad.Point.Coordinates[1]
			if lat < reasLatMin || lat > reasLatMax || lng < reasLngMin || lng > reasLngMax {
				continue
			}
		}
		seen[ad.ID] = true
		ads = append(ads, ad)
	}
	return ads
}

func (a *reasAdapter) processAds(ctx context.Context, m *runMetrics, ads []reasAd, offerType, segment, localityHint string) {
	if a.opts.SkipDetails {
		for _, ad := range ads {
			rec := a.buildListing(ad, offerType, segment, localityHint, "")
			a.save(ctx, m, rec)
		}
		return
	}

	byURL := make(map[string]reasAd, len(ads))
	urls := make([]string, 0, len(ads))
	for _, ad := range ads {
		u := ad.Link
		if u == "" {
			u = fmt.Sprintf("%s/inzerat/%s", reasBaseURL, ad.ID)
		}
		byURL[u] = ad
		urls = append(urls, u)
	}
	a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
		// The detail page only contributes the description; losing it
		// is not worth losing the listing.
		description := a.fetchDescription(ctx, u)
		rec := a.buildListing(byURL[u], offerType, segment, localityHint, description)
		a.save(ctx, m, rec)
		pause(ctx, 300*time.Millisecond)
		return nil
	})
}

func (a *reasAdapter) fetchBuildID(ctx context.Context) (string, error) {
	data, err := a.opts.Client.Get(ctx, reasBaseURL)
	if err != nil {
		return "", err
	}
	m := reasBuildIDRe.FindSubmatch(data)
	if m == nil {
		return "", errors.New("buildId not present on landing page")
	}
	return string(m[1]), nil
}

func (a *reasAdapter) fetchHTMLPage(ctx context.Context, path string, page int) (*reasAdsList, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	pageURL := fmt.Sprintf("%s/%s%spage=%d", reasBaseURL, path, sep, page)
	data, err := a.opts.Client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extractAdsList(data)
}

// fetchAPIPage reads one page through the Next.js data endpoint. A 404
// means the buildId expired mid-run; the caller treats nil as
// end-of-pages.
func (a *reasAdapter) fetchAPIPage(ctx context.Context, path string, page int, buildID string) (*reasAdsList, error) {
	pathNoQuery := path
	if idx := strings.Index(pathNoQuery, "?"); idx >= 0 {
		pathNoQuery = pathNoQuery[:idx]
	}
	query := url.Values{"page": {strconv.Itoa(page)}}
	for _, slug := range strings.Split(pathNoQuery, "/") {
		if slug != "" {
			query.Add("slug[]", slug)
		}
	}
	apiURL := fmt.Sprintf("%s/_next/data/%s/%s.json?%s", reasBaseURL, buildID, pathNoQuery, query.Encode())

	data, err := a.opts.Client.Get(ctx, apiURL)
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var resp struct {
		PageProps reasPageProps `json:"pageProps"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode data endpoint response: %w", err)
	}
	return resp.PageProps.AdsListResult, nil
}

func extractAdsList(data []byte) (*reasAdsList, error) {
	m := reasNextDataRe.FindSubmatch(data)
	if m == nil {
		return nil, nil
	}
	var nd struct {
		Props struct {
			PageProps reasPageProps `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(m[1], &nd); err != nil {
		return nil, fmt.Errorf("failed to decode __NEXT_DATA__: %w", err)
	}
	return nd.Props.PageProps.AdsListResult, nil
}

func (a *reasAdapter) fetchDescription(ctx context.Context, detailURL string) string {
	data, err := a.opts.Client.Get(ctx, detailURL)
	if err != nil {
		return ""
	}

	if m := reasNextDataRe.FindSubmatch(data); m != nil {
		var nd struct {
			Props struct {
				PageProps struct {
					AdEstateDetail *struct {
						Description string `json:"description"`
						Text        string `json:"text"`
					} `json:"adEstateDetail"`
				} `json:"pageProps"`
			} `json:"props"`
		}
		if json.Unmarshal(m[1], &nd) == nil && nd.Props.PageProps.AdEstateDetail != nil {
			detail := nd.Props.PageProps.AdEstateDetail
			desc := detail.Description
			if desc == "" {
				desc = detail.Text
			}
			if desc = strings.TrimSpace(desc); desc != "" {
				return truncate(desc, 4000)
			}
		}
	}

	doc, err := parseHTML(data)
	if err != nil {
		return ""
	}
	for _, selector := range []string{"[class*='description']", "[class*='Description']", "[class*='about']", "article p"} {
		text := CollapseWhitespace(doc.Find(selector).First().Text())
		if len([]rune(text)) > 50 {
			return truncate(text, 4000)
		}
	}
	return ""
}

func (a *reasAdapter) buildListing(ad reasAd, offerType, segment, localityHint, description string) *models.ScrapedListing {
	link := ad.Link
	if link == "" {
		link = fmt.Sprintf("%s/inzerat/%s", reasBaseURL, ad.ID)
	}

	reasType := ad.Type
	if reasType == "" {
		reasType = ad.SubType
	}
	propertyType, ok := reasPropertyTypes[strings.ToLower(reasType)]
	if !ok {
		propertyType = "Other"
	}

	area := ad.DisplayArea
	if area == nil {
		area = ad.FloorArea
	}

	locationShort := ad.FormattedAddress
	if locationShort == "" {
		locationShort = ad.FormattedLocation
	}

	offerWord := "Prodej"
	if offerType == models.OfferRent {
		offerWord = "Pronájem"
	}
	segmentName, ok := reasSegmentNames[segment]
	if !ok {
		segmentName = "nemovitosti"
	}
	titleParts := []string{offerWord, segmentName}
	if ad.Disposition != "" {
		titleParts = append(titleParts, ad.Disposition)
	}
	if area != nil {
		titleParts = append(titleParts, fmt.Sprintf("%g m²", float64(*area)))
	}
	if locationShort != "" {
		titleParts = append(titleParts, "– "+locationShort)
	}

	location := ad.FormattedLocation
	if location == "" {
		location = ad.FormattedAddress
	}
	if location == "" {
		location = titleWords(strings.ReplaceAll(ad.MunicipalitySlug, "-", " "))
	}
	if localityHint != "" && !strings.Contains(strings.ToLower(location), strings.ToLower(localityHint)) {
		if location == "" {
			location = localityHint
		} else {
			location = location + ", " + localityHint
		}
	}

	rec := &models.ScrapedListing{
		ExternalID:   ad.ID,
		URL:          link,
		Title:        truncate(strings.Join(titleParts, " "), 200),
		OfferType:    offerType,
		PropertyType: propertyType,
		LocationText: location,
		Description:  description,
	}
	if ad.Price != nil {
		rec.Price = floatPtr(float64(*ad.Price))
	} else if ad.OriginalPrice != nil {
		rec.Price = floatPtr(float64(*ad.OriginalPrice))
	}
	if area != nil {
		rec.AreaBuiltUp = floatPtr(float64(*area))
	}
	// GeoJSON order: [longitude, latitude].
	if ad.Point != nil && len(ad.Point.Coordinates) >= 2 {
		rec.Longitude = floatPtr(ad.Point.Coordinates[0])
		rec.Latitude = floatPtr(ad.Point.Coordinates[1])
	}

	type orderedPhoto struct {
		order int
		url   string
	}
	var images []orderedPhoto
	for _, img := range ad.ImagesWithMetadata {
		u := img.Original
		if u == "" {
			u = img.Preview
		}
		if u == "" {
			continue
		}
		order := 999
		if img.Order != nil {
			order = *img.Order
		}
		images = append(images, orderedPhoto{order, u})
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].order < images[j].order })
	for _, img := range images {
		rec.PhotoURLs = append(rec.PhotoURLs, img.url)
		if len(rec.PhotoURLs) == 20 {
			break
		}
	}
	return rec
}

func floatPtr(v float64) *float64 { return &v }

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
