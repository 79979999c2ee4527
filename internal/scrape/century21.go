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

const (
	c21BaseURL   = "https://www.century21.cz"
	c21SearchURL = c21BaseURL + "/nemovitosti"
)

// Search filters are passed as one compact JSON value in the filter
// query parameter. One config per property/listing type combination
// covering the Znojmo county.
var c21SearchConfigs = []struct {
	propertyType string
	listingType  string
}{
	{"HOUSE", "SALE"},
	{"HOUSE", "RENT"},
	{"FLAT", "SALE"},
	{"FLAT", "RENT"},
	{"LAND", "SALE"},
	{"COMMERCIAL", "SALE"},
	{"GARAGE", "SALE"},
}

var c21PropertyTypes = map[string]string{
	"HOUSE":      "House",
	"FLAT":       "Apartment",
	"LAND":       "Land",
	"COMMERCIAL": "Commercial",
	"GARAGE":     "Garage",
}

// Category labels from the detail parameter table.
var c21TableCategories = []struct {
	keyword      string
	propertyType string
}{
	{"rodinné domy", "House"},
	{"rodinný dům", "House"},
	{"bytový dům", "House"},
	{"řadový dům", "House"},
	{"vila", "House"},
	{"byty", "Apartment"},
	{"byt", "Apartment"},
	{"pozemky", "Land"},
	{"pozemek", "Land"},
	{"komerční", "Commercial"},
	{"kancelář", "Commercial"},
	{"sklad", "Commercial"},
	{"chata", "Cottage"},
	{"chalupa", "Cottage"},
	{"rekreační", "Cottage"},
	{"garážové stání", "Garage"},
	{"garáž", "Garage"},
}

var (
	c21UUIDRe      = regexp.MustCompile(`(?i)id=([0-9a-f\-]{36})`)
	c21NumericIDRe = regexp.MustCompile(`ID:\s*(\d+)`)
	c21ZeroHitsRe  = regexp.MustCompile(`(?i)(\d+)\s+NEMOVITOST`)
	c21PriceRe     = regexp.MustCompile(`\d[\d\s\x{00a0}]+Kč`)
	c21SlugLocRe   = regexp.MustCompile(`/(?:prodej|pronajem)-[^/]+-([^-]+(?:-u-znojma)?)-id=`)
	c21PhotoRe     = regexp.MustCompile(`(?i)file/[0-9a-f\-]{36}`)
	c21AreaNumRe   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
)

type century21Adapter struct {
	base
}

func newCentury21(opts Options) *century21Adapter {
	return &century21Adapter{base: newBase("CENTURY21", opts)}
}

func (a *century21Adapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 5
	if fullRescan {
		maxPages = 50
	}

	var urls []string
	seen := map[string]bool{}
	for _, cfg := range c21SearchConfigs {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		collected, err := a.collectURLs(ctx, m, cfg.propertyType, cfg.listingType, maxPages)
		if err != nil {
			m.fail(fmt.Sprintf("search %s/%s: %v", cfg.propertyType, cfg.listingType, err))
			continue
		}
		for _, u := range collected {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
		rec, err := a.scrapeDetail(ctx, u)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		a.save(ctx, m, rec)
		pause(ctx, 500*time.Millisecond)
		return nil
	})
	return m.savedCount(), nil
}

func (a *century21Adapter) collectURLs(ctx context.Context, m *runMetrics, propertyType, listingType string, maxPages int) ([]string, error) {
	var urls []string
	seen := map[string]bool{}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return urls, ctx.Err()
		}
		pageURLs, err := a.fetchSearchPage(ctx, propertyType, listingType, page)
		if err != nil {
			return urls, err
		}
		m.page()
		if len(pageURLs) == 0 {
			break
		}

		added := 0
		for _, u := range pageURLs {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
				added++
			}
		}
		if added == 0 {
			break
		}
		// A short page is the last one.
		if len(pageURLs) < 12 {
			break
		}
		pause(ctx, time.Second)
	}
	return urls, nil
}

func (a *century21Adapter) fetchSearchPage(ctx context.Context, propertyType, listingType string, page int) ([]string, error) {
	filter := map[string]interface{}{
		"regions":       []string{"Jihomoravský"},
		"country":       []string{},
		"county":        []string{"Znojmo"},
		"district":      []string{},
		"propertyType":  []string{propertyType},
		"listingType":   listingType,
		"isAbroad":      false,
		"construction":  []string{},
		"disposition":   []string{},
		"condition":     []string{},
		"ownershipType": []string{},
		"energy":        []string{},
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search filter: %w", err)
	}

	query := url.Values{"filter": {string(filterJSON)}}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	data, err := a.fetchPage(ctx, c21SearchURL+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	if hits := c21ZeroHitsRe.FindStringSubmatch(doc.Text()); hits != nil && hits[1] == "0" {
		return nil, nil
	}

	var urls []string
	seen := map[string]bool{}
	doc.Find("a[href*='/nemovitosti/']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !strings.Contains(href, "id=") {
			return
		}
		if strings.TrimRight(href, "/") == "/nemovitosti" {
			return
		}
		full := AbsURL(c21BaseURL, href)
		if !seen[full] {
			seen[full] = true
			urls = append(urls, full)
		}
	})
	return urls, nil
}

func (a *century21Adapter) scrapeDetail(ctx context.Context, detailURL string) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	externalID := detailURL
	if m := c21UUIDRe.FindStringSubmatch(detailURL); m != nil {
		externalID = strings.ToLower(m[1])
	}

	title := ""
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := CollapseWhitespace(h.Text())
		if len([]rune(text)) > 5 && !strings.Contains(strings.ToLower(text), "cookie") {
			title = text
			return false
		}
		return true
	})
	if title == "" {
		return nil, fmt.Errorf("no usable title at %s", detailURL)
	}

	rec := &models.ScrapedListing{
		ExternalID: externalID,
		URL:        detailURL,
		OfferType:  "Sale",
	}
	if strings.Contains(detailURL, "/pronajem-") {
		rec.OfferType = "Rent"
	}

	params := a.parseDetailTable(doc)

	rec.PropertyType = c21PropertyTypeFromURL(detailURL)
	if cat, ok := params["KATEGORIE"]; ok {
		lower := strings.ToLower(cat)
		for _, entry := range c21TableCategories {
			if strings.Contains(lower, entry.keyword) {
				rec.PropertyType = entry.propertyType
				break
			}
		}
	}

	rec.Price = a.findPrice(doc)

	for _, key := range []string{"PLOCHA UŽITNÁ", "PLOCHA", "VELIKOST BYTU"} {
		raw, ok := params[key]
		if !ok {
			continue
		}
		if m := c21AreaNumRe.FindStringSubmatch(strings.ReplaceAll(raw, " ", "")); m != nil {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				if rec.PropertyType == "Land" {
					rec.AreaLand = &v
				} else {
					rec.AreaBuiltUp = &v
				}
				break
			}
		}
	}

	if disp := params["VELIKOST"]; disp != "" {
		rec.Disposition = disp
		if !strings.Contains(title, disp) {
			title = fmt.Sprintf("%s (%s)", title, disp)
		}
	}
	rec.Title = truncate(title, 200)

	location := params["LOKALITA"]
	if location == "" {
		location = params["OBEC"]
	}
	if location == "" {
		if m := c21SlugLocRe.FindStringSubmatch(detailURL); m != nil {
			location = titleWords(strings.ReplaceAll(m[1], "-", " "))
		}
	}
	// The search is county-scoped but LOKALITA carries only the
	// municipality, so anchor the district explicitly.
	lower := strings.ToLower(location)
	switch {
	case location == "":
		location = "okres Znojmo"
	case !strings.Contains(lower, "znojmo") && !strings.Contains(lower, "jihomoravsk"):
		location = location + ", okres Znojmo"
	}
	rec.LocationText = location

	rec.Description = a.findDescription(doc)
	rec.PhotoURLs = a.findPhotos(doc)
	return rec, nil
}

func c21PropertyTypeFromURL(detailURL string) string {
	lower := strings.ToLower(detailURL)
	switch {
	case strings.Contains(lower, "-domy-") || strings.Contains(lower, "-dum-") || strings.Contains(lower, "-rodinny-"):
		return "House"
	case strings.Contains(lower, "-byty-") || strings.Contains(lower, "-byt-"):
		return "Apartment"
	case strings.Contains(lower, "-pozemky-") || strings.Contains(lower, "-pozemek-"):
		return "Land"
	case strings.Contains(lower, "-komercni-") || strings.Contains(lower, "-kancelar"):
		return "Commercial"
	case strings.Contains(lower, "-chata") || strings.Contains(lower, "-chalupa"):
		return "Cottage"
	}
	return "Other"
}

func (a *century21Adapter) parseDetailTable(doc *goquery.Document) map[string]string {
	params := map[string]string{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		key := strings.ToUpper(CollapseWhitespace(cells.Eq(0).Text()))
		val := CollapseWhitespace(cells.Eq(1).Text())
		if key != "" && val != "" {
			params[key] = val
		}
	})
	return params
}

func (a *century21Adapter) findPrice(doc *goquery.Document) *float64 {
	var price *float64
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if len([]rune(text)) > 30 || !c21PriceRe.MatchString(text) {
			return true
		}
		if p := ParsePrice(text); p != nil && *p > 10000 {
			price = p
			return false
		}
		return true
	})
	return price
}

// Descriptions live in a Tailwind whitespace-break-spaces block rather
// than paragraph tags; paragraphs and meta description are fallbacks.
func (a *century21Adapter) findDescription(doc *goquery.Document) string {
	desc := ""
	doc.Find("div[class*='whitespace-break']").EachWithBreak(func(_ int, d *goquery.Selection) bool {
		text := CollapseWhitespace(d.Text())
		if len([]rune(text)) > 50 {
			desc = truncate(text, 5000)
			return false
		}
		return true
	})
	if desc != "" {
		return desc
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := CollapseWhitespace(p.Text())
		lower := strings.ToLower(text)
		if len([]rune(text)) > 50 && !strings.Contains(lower, "cookie") && !strings.Contains(lower, "souhlas") && !strings.Contains(lower, "práva") {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		if len(paragraphs) > 8 {
			paragraphs = paragraphs[:8]
		}
		return strings.Join(paragraphs, "\n\n")
	}

	for _, selector := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if content, ok := doc.Find(selector).First().Attr("content"); ok && len([]rune(content)) > 20 {
			return content
		}
	}
	return ""
}

func (a *century21Adapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(raw string) bool {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] || !c21PhotoRe.MatchString(raw) {
			return len(photos) < 20
		}
		seen[raw] = true
		photos = append(photos, raw)
		return len(photos) < 20
	}

	doc.Find("img[src*='igluu.cz']").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		return add(src)
	})
	if len(photos) == 0 {
		doc.Find("a[href*='igluu.cz']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			return add(href)
		})
	}
	return photos
}
