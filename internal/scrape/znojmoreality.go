package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const znojmoRealityBaseURL = "https://www.znojmoreality.cz"

// Realman SSR pages, one page per category, no pagination.
var znojmoRealityCategories = []struct {
	url          string
	propertyType string
}{
	{znojmoRealityBaseURL + "/domy", "Dům"},
	{znojmoRealityBaseURL + "/byty", "Byt"},
	{znojmoRealityBaseURL + "/pozemky", "Pozemek"},
	{znojmoRealityBaseURL + "/ostatni", "Komerční"},
}

var (
	zrIDSuffixRe = regexp.MustCompile(`-(\d+)$`)
	zrPriceRe    = regexp.MustCompile(`(?i)([\d\s\x{00a0}]+)\s*K[cč]`)
	zrGPSRe      = regexp.MustCompile(`(?:L\.marker|setView)\(\[([0-9.]+),\s*([0-9.]+)\]`)
	zrDataLatRe  = regexp.MustCompile(`data-lat="([0-9.]+)"`)
	zrDataLngRe  = regexp.MustCompile(`data-lng="([0-9.]+)"`)
)

var zrParamLabels = map[string]string{
	"cena":           "Cena",
	"lokalita":       "Lokalita",
	"okres":          "Okres",
	"užitná plocha":  "Užitná plocha",
	"plocha pozemku": "Plocha pozemku",
}

type znojmoRealityAdapter struct {
	base
}

func newZnojmoReality(opts Options) *znojmoRealityAdapter {
	return &znojmoRealityAdapter{base: newBase("ZNOJMOREALITY", opts)}
}

type zrIndexItem struct {
	externalID   string
	detailURL    string
	title        string
	priceText    string
	propertyType string
}

func (a *znojmoRealityAdapter) Run(ctx context.Context, _ bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	for _, cat := range znojmoRealityCategories {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		data, err := a.fetchPage(ctx, cat.url)
		if err != nil {
			m.fail(fmt.Sprintf("index %s: %v", cat.url, err))
			continue
		}
		m.page()
		doc, err := parseHTML(data)
		if err != nil {
			m.fail(fmt.Sprintf("index %s: %v", cat.url, err))
			continue
		}

		items := a.parseIndex(doc, cat.propertyType)
		byURL := make(map[string]zrIndexItem, len(items))
		urls := make([]string, 0, len(items))
		for _, it := range items {
			byURL[it.detailURL] = it
			urls = append(urls, it.detailURL)
		}
		a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
			rec, err := a.scrapeDetail(ctx, byURL[u])
			if err != nil {
				return err
			}
			a.save(ctx, m, rec)
			pause(ctx, 500*time.Millisecond)
			return nil
		})
	}
	return m.savedCount(), nil
}

func (a *znojmoRealityAdapter) parseIndex(doc *goquery.Document, propertyType string) []zrIndexItem {
	var items []zrIndexItem
	seen := map[string]bool{}

	cards := doc.Find(".polozka")
	if cards.Length() > 0 {
		cards.Each(func(_ int, card *goquery.Selection) {
			link := card.Find("a[href]").First()
			if link.Length() == 0 {
				return
			}
			it, ok := a.indexItem(link, card, propertyType, seen)
			if ok {
				items = append(items, it)
			}
		})
		return items
	}

	// Fallback for template variants without cards: any same-host link
	// whose URL names an offer.
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		lower := strings.ToLower(href)
		if !strings.Contains(lower, "prodej") && !strings.Contains(lower, "pronajem") && !strings.Contains(lower, "pronájem") {
			return
		}
		it, ok := a.indexItem(link, link.Parent(), propertyType, seen)
		if ok {
			items = append(items, it)
		}
	})
	return items
}

func (a *znojmoRealityAdapter) indexItem(link, scope *goquery.Selection, propertyType string, seen map[string]bool) (zrIndexItem, bool) {
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return zrIndexItem{}, false
	}

	full := AbsURL(znojmoRealityBaseURL, href)
	parsed, err := url.Parse(full)
	if err != nil || (parsed.Host != "" && parsed.Host != "www.znojmoreality.cz") {
		return zrIndexItem{}, false
	}

	idm := zrIDSuffixRe.FindStringSubmatch(strings.TrimRight(parsed.Path, "/"))
	if idm == nil || seen[idm[1]] {
		return zrIndexItem{}, false
	}
	seen[idm[1]] = true

	title := CollapseWhitespace(scope.Find("h1, h2, h3").First().Text())
	if title == "" {
		title = CollapseWhitespace(link.Text())
	}

	priceText := ""
	if pm := zrPriceRe.FindString(scope.Text()); pm != "" {
		priceText = strings.TrimSpace(pm)
	}

	return zrIndexItem{
		externalID:   idm[1],
		detailURL:    full,
		title:        truncate(title, 200),
		priceText:    priceText,
		propertyType: propertyType,
	}, true
}

func (a *znojmoRealityAdapter) scrapeDetail(ctx context.Context, item zrIndexItem) (*models.ScrapedListing, error) {
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
		PropertyType: item.propertyType,
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)
	rec.OfferType = "Prodej"
	if NormalizeOfferType(rec.Title) == models.OfferRent {
		rec.OfferType = "Pronájem"
	}

	params := a.parseParamsTable(doc)
	jsonLD := a.parseJSONLD(doc)

	priceText := params["Cena"]
	if priceText == "" {
		priceText = item.priceText
	}
	rec.Price = ParsePrice(priceText)
	if rec.Price == nil {
		rec.Price = ParsePrice(priceFromJSONLD(jsonLD))
	}
	if rec.Price == nil {
		rec.Price = ParsePrice(zrPriceRe.FindString(doc.Text()))
	}

	rec.AreaBuiltUp = ParseArea(params["Užitná plocha"])
	rec.AreaLand = ParseArea(params["Plocha pozemku"])

	location := params["Lokalita"]
	if location == "" {
		location = locationFromJSONLD(jsonLD)
	}
	if location == "" {
		location = a.locationFromBreadcrumbs(doc)
	}
	if location == "" {
		location = params["Okres"]
	}
	rec.LocationText = location

	rec.Description = a.findDescription(doc)
	rec.PhotoURLs = a.findPhotos(doc)

	if gm := zrGPSRe.FindStringSubmatch(raw); gm != nil {
		setCoords(rec, gm[1], gm[2])
	} else if latm, lngm := zrDataLatRe.FindStringSubmatch(raw), zrDataLngRe.FindStringSubmatch(raw); latm != nil && lngm != nil {
		setCoords(rec, latm[1], lngm[1])
	}
	return rec, nil
}

func (a *znojmoRealityAdapter) parseParamsTable(doc *goquery.Document) map[string]string {
	params := map[string]string{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		key := CollapseWhitespace(cells.Eq(0).Text())
		if key == "" {
			return
		}
		if canonical, ok := zrParamLabels[strings.ToLower(strings.TrimSuffix(key, ":"))]; ok {
			key = canonical
		}
		params[key] = CollapseWhitespace(cells.Eq(1).Text())
	})
	return params
}

func (a *znojmoRealityAdapter) parseJSONLD(doc *goquery.Document) []map[string]interface{} {
	var payloads []map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		raw := strings.TrimSpace(script.Text())
		if raw == "" {
			return
		}
		var single map[string]interface{}
		if json.Unmarshal([]byte(raw), &single) == nil {
			payloads = append(payloads, single)
			return
		}
		var list []map[string]interface{}
		if json.Unmarshal([]byte(raw), &list) == nil {
			payloads = append(payloads, list...)
		}
	})
	return payloads
}

func priceFromJSONLD(payloads []map[string]interface{}) string {
	for _, payload := range payloads {
		switch offers := payload["offers"].(type) {
		case map[string]interface{}:
			if p := offerPrice(offers); p != "" {
				return p
			}
		case []interface{}:
			for _, entry := range offers {
				if offer, ok := entry.(map[string]interface{}); ok {
					if p := offerPrice(offer); p != "" {
						return p
					}
				}
			}
		}
	}
	return ""
}

func offerPrice(offer map[string]interface{}) string {
	if p := jsonScalar(offer["price"]); p != "" {
		return p
	}
	if spec, ok := offer["priceSpecification"].(map[string]interface{}); ok {
		return jsonScalar(spec["price"])
	}
	return ""
}

// jsonScalar renders a JSON-LD value as text. Numbers get plain
// notation; fmt would print large prices in scientific form.
func jsonScalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func locationFromJSONLD(payloads []map[string]interface{}) string {
	for _, payload := range payloads {
		address, ok := payload["address"].(map[string]interface{})
		if !ok {
			address, ok = payload["location"].(map[string]interface{})
		}
		if !ok {
			continue
		}
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion"} {
			if v, ok := address[key].(string); ok && v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return ""
}

func (a *znojmoRealityAdapter) locationFromBreadcrumbs(doc *goquery.Document) string {
	var crumbs []string
	doc.Find("nav, .breadcrumb, .breadcrumbs").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		nav.Find("a, span, li").Each(func(_ int, el *goquery.Selection) {
			text := CollapseWhitespace(el.Text())
			if text == "" {
				return
			}
			for _, c := range crumbs {
				if c == text {
					return
				}
			}
			crumbs = append(crumbs, text)
		})
		return len(crumbs) == 0
	})
	if len(crumbs) >= 2 {
		return strings.Join(crumbs[len(crumbs)-2:], " - ")
	}
	return ""
}

func (a *znojmoRealityAdapter) findDescription(doc *goquery.Document) string {
	if desc := doc.Find(".description, .popis, [class*='description']").First(); desc.Length() > 0 {
		return truncate(CollapseWhitespace(desc.Text()), 5000)
	}
	var found string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		text := CollapseWhitespace(table.Next().Text())
		if len([]rune(text)) > 50 {
			found = truncate(text, 5000)
			return false
		}
		return true
	})
	return found
}

func (a *znojmoRealityAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	doc.Find("a[href*='t.rmcl.cz']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href != "" && !seen[href] {
			seen[href] = true
			photos = append(photos, href)
		}
	})
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}
