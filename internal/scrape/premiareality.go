package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const premiaBaseURL = "https://www.premiareality.cz"

// One seznam.html per category, everything on a single page.
var premiaCategories = []struct {
	slug         string
	propertyType string
}{
	{"byty", "Byt"},
	{"domy", "Dům"},
	{"parcely", "Pozemek"},
	{"rekreace", "Dům"},
	{"ostatni", "Ostatní"},
}

var (
	premiaDetailHrefRe = regexp.MustCompile(`-(\d+)\.html$`)
	premiaThumbsRe     = regexp.MustCompile(`/thumbs_\d+_\d+/`)
)

type premiaRealityAdapter struct {
	base
}

func newPremiaReality(opts Options) *premiaRealityAdapter {
	return &premiaRealityAdapter{base: newBase("PREMIAREALITY", opts)}
}

type premiaItem struct {
	url          string
	title        string
	propertyType string
}

func (a *premiaRealityAdapter) Run(ctx context.Context, _ bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	for _, cat := range premiaCategories {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		listURL := fmt.Sprintf("%s/%s/seznam.html", premiaBaseURL, cat.slug)
		data, err := a.fetchPage(ctx, listURL)
		if err != nil {
			m.fail(fmt.Sprintf("category %s: %v", cat.slug, err))
			continue
		}
		m.page()
		doc, err := parseHTML(data)
		if err != nil {
			m.fail(fmt.Sprintf("category %s: %v", cat.slug, err))
			continue
		}

		items := a.parseList(doc, cat.propertyType)
		byURL := make(map[string]premiaItem, len(items))
		urls := make([]string, 0, len(items))
		for _, it := range items {
			byURL[it.url] = it
			urls = append(urls, it.url)
		}
		a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
			rec, err := a.scrapeDetail(ctx, byURL[u])
			if err != nil {
				return err
			}
			a.save(ctx, m, rec)
			pause(ctx, 400*time.Millisecond)
			return nil
		})
		pause(ctx, time.Second)
	}
	return m.savedCount(), nil
}

func (a *premiaRealityAdapter) parseList(doc *goquery.Document, propertyType string) []premiaItem {
	var items []premiaItem
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !premiaDetailHrefRe.MatchString(href) {
			return
		}
		full := AbsURL(premiaBaseURL, href)
		if !strings.HasPrefix(full, premiaBaseURL) || seen[full] {
			return
		}
		seen[full] = true

		title := CollapseWhitespace(link.Text())
		if len([]rune(title)) < 5 {
			if parent := link.Closest("div, li, article"); parent.Length() > 0 {
				if h := CollapseWhitespace(parent.Find("h1, h2, h3, h4").First().Text()); h != "" {
					title = h
				}
			}
		}
		items = append(items, premiaItem{
			url:          full,
			title:        truncate(title, 200),
			propertyType: propertyType,
		})
	})
	return items
}

func (a *premiaRealityAdapter) scrapeDetail(ctx context.Context, item premiaItem) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, item.url)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		URL:       item.url,
		OfferType: "Prodej",
	}
	if m := premiaDetailHrefRe.FindStringSubmatch(item.url); m != nil {
		rec.ExternalID = m[1]
	} else {
		rec.ExternalID = lastPathSegment(item.url)
	}
	if NormalizeOfferType(item.url) == models.OfferRent {
		rec.OfferType = "Pronájem"
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)

	params := a.parseParamsTable(doc)
	rec.Price = ParsePrice(params["cena"])
	rec.PropertyType = premiaPropertyType(params["nemovitost"], item.propertyType)

	builtUp := params["užitná plocha"]
	if builtUp == "" {
		builtUp = params["uzitna plocha"]
	}
	rec.AreaBuiltUp = ParseArea(builtUp)

	land := params["plocha zahrady"]
	if land == "" {
		land = params["plocha pozemku"]
	}
	if land == "" {
		land = params["plocha parcely"]
	}
	rec.AreaLand = ParseArea(land)

	rec.LocationText = a.findLocation(doc, params)
	rec.Description = a.findDescription(doc)
	rec.PhotoURLs = a.findPhotos(doc)
	return rec, nil
}

func premiaPropertyType(raw, fallback string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "byt"):
		return "Byt"
	case strings.Contains(lower, "dům"), strings.Contains(lower, "dum"),
		strings.Contains(lower, "vila"), strings.Contains(lower, "chata"), strings.Contains(lower, "chalupa"):
		return "Dům"
	case strings.Contains(lower, "pozemek"), strings.Contains(lower, "parcela"), strings.Contains(lower, "zahrada"):
		return "Pozemek"
	case strings.Contains(lower, "garáž"), strings.Contains(lower, "garaz"):
		return "Garáž"
	case strings.Contains(lower, "komerční"), strings.Contains(lower, "sklep"), strings.Contains(lower, "vinný"):
		return "Ostatní"
	}
	if fallback != "" {
		return fallback
	}
	return "Ostatní"
}

func (a *premiaRealityAdapter) parseParamsTable(doc *goquery.Document) map[string]string {
	params := map[string]string{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSuffix(strings.ToLower(CollapseWhitespace(cells.Eq(0).Text())), ":")
		value := CollapseWhitespace(cells.Eq(1).Text())
		if label != "" && value != "" {
			params[label] = value
		}
	})
	return params
}

func (a *premiaRealityAdapter) findLocation(doc *goquery.Document, params map[string]string) string {
	street := params["ulice"]
	town := params["město"]
	if town == "" {
		town = params["mesto"]
	}
	switch {
	case street != "" && town != "":
		return street + ", " + town
	case town != "":
		return town
	case street != "":
		return street
	}
	if h2 := CollapseWhitespace(doc.Find("h2").First().Text()); h2 != "" {
		return truncate(h2, 200)
	}
	return "Znojmo a okolí"
}

func (a *premiaRealityAdapter) findDescription(doc *goquery.Document) string {
	desc := doc.Find(".ps-5.pe-5, .ps-5, .col-md-6.ps-5").First()
	if desc.Length() == 0 {
		return ""
	}
	desc.Find("a, button, form, .tlacitka").Remove()
	return truncate(CollapseWhitespace(desc.Text()), 5000)
}

// findPhotos prefers the gallery anchor over the thumbnail, then
// rewrites any thumbs path to the original size.
func (a *premiaRealityAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(raw string) {
		if raw == "" {
			return
		}
		full := premiaThumbsRe.ReplaceAllString(AbsURL(premiaBaseURL, raw), "/")
		if !seen[full] {
			seen[full] = true
			photos = append(photos, full)
		}
	}

	doc.Find(".carousel-detail img, .preview img, img[src*='importestate'], img[src*='estate']").Each(func(_ int, img *goquery.Selection) {
		if anchor := img.Closest("a[href]"); anchor.Length() > 0 {
			href, _ := anchor.Attr("href")
			add(href)
			return
		}
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		add(src)
	})
	if len(photos) == 0 {
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if strings.Contains(src, "importestate") || strings.Contains(src, "estate") {
				add(src)
			}
		})
	}
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}
