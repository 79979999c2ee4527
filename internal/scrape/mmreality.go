package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const mmBaseURL = "https://www.mmreality.cz"

var mmCategories = []struct {
	url          string
	offerType    string
	propertyType string
}{
	{mmBaseURL + "/nemovitosti/prodej/domy/znojmo/", "Prodej", "Dům"},
	{mmBaseURL + "/nemovitosti/prodej/byty/znojmo/", "Prodej", "Byt"},
	{mmBaseURL + "/nemovitosti/prodej/pozemky/znojmo/", "Prodej", "Pozemek"},
}

var (
	mmDetailHrefRe = regexp.MustCompile(`^/nemovitosti/(\d+)/?$`)
	mmUUIDPhotoRe  = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.jpe?g`)
	mmMarkerRe     = regexp.MustCompile(`L\.marker\(\[([0-9.]+),\s*([0-9.]+)\]\)`)
	mmSetViewRe    = regexp.MustCompile(`setView\(\[([0-9.]+),\s*([0-9.]+)\]`)
)

type mmRealityAdapter struct {
	base
}

func newMMReality(opts Options) *mmRealityAdapter {
	return &mmRealityAdapter{base: newBase("MMREALITY", opts)}
}

// The search grid is a Vue island; the server inlines its state as an
// HTML-escaped JSON blob in the :ssr attribute.
type mmSSRPayload struct {
	Offers []struct {
		ID            json.Number `json:"id"`
		Title         string      `json:"title"`
		OriginalTitle string      `json:"originalTitle"`
		Location      string      `json:"location"`
		Municipality  string      `json:"municipality"`
		District      string      `json:"district"`
	} `json:"offers"`
	Metadata struct {
		Count int `json:"count"`
	} `json:"metadata"`
	Page json.Number `json:"page"`
}

type mmIndexItem struct {
	externalID string
	detailURL  string
	title      string
	location   string
}

func (a *mmRealityAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 5
	if fullRescan {
		maxPages = 100
	}

	for _, cat := range mmCategories {
		if err := a.runCategory(ctx, m, cat.url, cat.offerType, cat.propertyType, maxPages); err != nil {
			return m.savedCount(), err
		}
	}
	return m.savedCount(), nil
}

func (a *mmRealityAdapter) runCategory(ctx context.Context, m *runMetrics, baseURL, offerType, propertyType string, maxPages int) error {
	seen := map[string]bool{}
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pageURL := baseURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", baseURL, page)
		}
		data, err := a.fetchPage(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("failed to fetch index %s: %w", pageURL, err)
		}
		m.page()

		doc, err := parseHTML(data)
		if err != nil {
			return fmt.Errorf("failed to parse index %s: %w", pageURL, err)
		}
		items, hasNext := a.parseIndex(doc, page)

		fresh := items[:0]
		for _, it := range items {
			if !seen[it.externalID] {
				seen[it.externalID] = true
				fresh = append(fresh, it)
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		byURL := make(map[string]mmIndexItem, len(fresh))
		urls := make([]string, 0, len(fresh))
		for _, it := range fresh {
			byURL[it.detailURL] = it
			urls = append(urls, it.detailURL)
		}
		a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
			rec, err := a.scrapeDetail(ctx, byURL[u], offerType, propertyType)
			if err != nil {
				return err
			}
			a.save(ctx, m, rec)
			pause(ctx, 500*time.Millisecond)
			return nil
		})

		if !hasNext {
			return nil
		}
		pause(ctx, time.Second)
	}
	return nil
}

func (a *mmRealityAdapter) parseIndex(doc *goquery.Document, page int) ([]mmIndexItem, bool) {
	var items []mmIndexItem
	var ssr mmSSRPayload
	haveSSR := false

	if grid := doc.Find("vue-property-list-grid").First(); grid.Length() > 0 {
		payload, ok := grid.Attr(":ssr")
		if !ok {
			payload, _ = grid.Attr("v-bind:ssr")
		}
		if payload != "" && json.Unmarshal([]byte(html.UnescapeString(payload)), &ssr) == nil {
			haveSSR = len(ssr.Offers) > 0
		}
	}

	if haveSSR {
		for _, offer := range ssr.Offers {
			id := offer.ID.String()
			if id == "" || !isDigits(id) {
				continue
			}
			title := offer.Title
			if title == "" {
				title = offer.OriginalTitle
			}
			location := offer.Location
			if location == "" {
				location = offer.Municipality
			}
			if location == "" {
				location = offer.District
			}
			items = append(items, mmIndexItem{
				externalID: id,
				detailURL:  fmt.Sprintf("%s/nemovitosti/%s", mmBaseURL, id),
				title:      truncate(strings.TrimSpace(title), 200),
				location:   location,
			})
		}
	} else {
		doc.Find("#offers-list a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			idm := mmDetailHrefRe.FindStringSubmatch(href)
			if idm == nil {
				return
			}
			title := CollapseWhitespace(sel.Find("h4, h3, h6").First().Text())
			location, _ := sel.Find("img").First().Attr("alt")
			items = append(items, mmIndexItem{
				externalID: idm[1],
				detailURL:  AbsURL(mmBaseURL, href),
				title:      truncate(title, 200),
				location:   location,
			})
		})
	}

	hasNext := a.detectNextPage(doc)
	if !hasNext && haveSSR {
		pageNum := page
		if p, err := ssr.Page.Int64(); err == nil && p > 0 {
			pageNum = int(p)
		}
		if len(ssr.Offers) > 0 && ssr.Metadata.Count > pageNum*len(ssr.Offers) {
			hasNext = true
		}
	}
	return items, hasNext
}

func (a *mmRealityAdapter) detectNextPage(doc *goquery.Document) bool {
	next := false
	doc.Find(`nav[aria-label*="pagination"] a, [class*="pagination"] a, [class*="pager"] a`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		class, _ := sel.Attr("class")
		if strings.Contains(class, "disabled") {
			return true
		}
		if text == "›" || text == "»" || text == "Další" || text == ">" || strings.Contains(href, "page=") {
			next = true
			return false
		}
		return true
	})
	return next
}

func (a *mmRealityAdapter) scrapeDetail(ctx context.Context, item mmIndexItem, offerType, propertyType string) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, item.detailURL)
	if err != nil {
		return nil, err
	}
	raw := string(data)
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		ExternalID:   item.externalID,
		URL:          item.detailURL,
		OfferType:    offerType,
		PropertyType: propertyType,
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		title = CollapseWhitespace(doc.Find("h2").First().Text())
	}
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)

	if pt := InferPropertyType(rec.Title); pt != "Ostatní" {
		rec.PropertyType = pt
	}
	if strings.Contains(strings.ToLower(rec.Title), "pronáj") || strings.Contains(strings.ToLower(rec.Title), "pronaj") {
		rec.OfferType = "Pronájem"
	}

	rec.Price = a.findPrice(doc)
	rec.Description = CollapseWhitespace(doc.Find(".description p, article p, main p").First().Text())

	params := a.parseParams(doc)
	rec.AreaBuiltUp = ParseArea(params["Užitná plocha"])
	rec.AreaLand = ParseArea(params["Plocha parcely"])

	rec.LocationText = a.findLocation(doc)
	if rec.LocationText == "" {
		rec.LocationText = item.location
	}

	rec.PhotoURLs = a.findPhotos(doc, raw)

	if gm := mmMarkerRe.FindStringSubmatch(raw); gm != nil {
		setCoords(rec, gm[1], gm[2])
	} else if gm := mmSetViewRe.FindStringSubmatch(raw); gm != nil {
		setCoords(rec, gm[1], gm[2])
	}
	return rec, nil
}

// findPrice takes the first short text mentioning Kč that carries a
// digit; long matches are running text, not a price tag.
func (a *mmRealityAdapter) findPrice(doc *goquery.Document) *float64 {
	var price *float64
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if !strings.Contains(text, "Kč") || len([]rune(text)) >= 40 {
			return true
		}
		if p := ParsePrice(text); p != nil {
			price = p
			return false
		}
		return true
	})
	return price
}

func (a *mmRealityAdapter) parseParams(doc *goquery.Document) map[string]string {
	params := map[string]string{}
	doc.Find("h3, h4").Each(func(_ int, heading *goquery.Selection) {
		if !strings.Contains(strings.ToLower(heading.Text()), "parametr") {
			return
		}
		for sibling := heading.Next(); sibling.Length() > 0; sibling = sibling.Next() {
			if goquery.NodeName(sibling) == "h3" || goquery.NodeName(sibling) == "h4" {
				break
			}
			labels := sibling.Find("dt")
			values := sibling.Find("dd")
			if labels.Length() == 0 {
				labels = sibling.Find("th")
				values = sibling.Find("td")
			}
			labels.Each(func(i int, label *goquery.Selection) {
				if i >= values.Length() {
					return
				}
				key := CollapseWhitespace(label.Text())
				if key != "" {
					params[key] = CollapseWhitespace(values.Eq(i).Text())
				}
			})
		}
	})
	if len(params) == 0 {
		doc.Find("[data-label][data-value]").Each(func(_ int, sel *goquery.Selection) {
			key, _ := sel.Attr("data-label")
			val, _ := sel.Attr("data-value")
			if key = strings.TrimSpace(key); key != "" {
				params[key] = strings.TrimSpace(val)
			}
		})
	}
	return params
}

func (a *mmRealityAdapter) findLocation(doc *goquery.Document) string {
	crumbs := doc.Find(`nav[aria-label="breadcrumb"] a, ol.breadcrumb a`)
	if crumbs.Length() > 0 {
		return CollapseWhitespace(crumbs.Last().Text())
	}
	return ""
}

// findPhotos collects the gallery's UUID-named files and rebuilds
// their CDN URLs, sniffing the prefix from any rendered <img>.
func (a *mmRealityAdapter) findPhotos(doc *goquery.Document, raw string) []string {
	var filenames []string
	seen := map[string]bool{}
	for _, f := range mmUUIDPhotoRe.FindAllString(raw, -1) {
		if !seen[f] {
			seen[f] = true
			filenames = append(filenames, f)
		}
	}
	if len(filenames) == 0 {
		return nil
	}

	cdnBase := mmBaseURL + "/media/"
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		if idx := strings.Index(src, filenames[0]); idx > 0 {
			cdnBase = src[:idx]
			return false
		}
		return true
	})

	photos := make([]string, 0, len(filenames))
	for _, f := range filenames {
		photos = append(photos, cdnBase+f)
	}
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}

func setCoords(rec *models.ScrapedListing, latStr, lonStr string) {
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil || lat == 0 || lon == 0 {
		return
	}
	rec.Latitude = &lat
	rec.Longitude = &lon
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
