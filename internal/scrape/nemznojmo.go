package scrape

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const (
	nemBaseURL = "https://www.nemovitostiznojmo.cz"
	nemListURL = nemBaseURL + "/reality/"
)

var nemPropertyKeywords = []struct {
	keyword      string
	propertyType string
}{
	{"byt", "Byt"},
	{"dům", "Dům"},
	{"dom", "Dům"},
	{"rodinný", "Dům"},
	{"pozemek", "Pozemek"},
	{"parcela", "Pozemek"},
	{"garáž", "Garáž"},
	{"komerční", "Komerční"},
	{"ostatní", "Ostatní"},
	{"sklep", "Ostatní"},
	{"vinný", "Ostatní"},
}

var (
	nemDetailHrefRe = regexp.MustCompile(`/detail/(\d+)$`)
	nemPageNumRe    = regexp.MustCompile(`page-(\d+)`)
	nemPriceNumRe   = regexp.MustCompile(`\d[\d\s\x{00a0}]+`)
	nemAreaRe       = regexp.MustCompile(`(\d+)\s*m[²2]`)
	nemLocPrefixRe  = regexp.MustCompile(`(?i)^(lokalita|adresa|obec|místo):?\s*`)
	nemZnojmoRe     = regexp.MustCompile(`(?i)Znojmo|okres Znojmo`)
)

// nemZnojmoAdapter covers nemovitostiznojmo.cz, an Eurobydleni/Urbium
// storefront with plain SSR pages.
type nemZnojmoAdapter struct {
	base
}

func newNemZnojmo(opts Options) *nemZnojmoAdapter {
	return &nemZnojmoAdapter{base: newBase("NEMZNOJMO", opts)}
}

type nemItem struct {
	url   string
	title string
}

func (a *nemZnojmoAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 5
	if fullRescan {
		maxPages = 50
	}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		pageURL := nemListURL
		if page > 1 {
			pageURL = fmt.Sprintf("%spage-%d", nemListURL, page)
		}
		data, err := a.fetchPage(ctx, pageURL)
		if err != nil {
			m.fail(fmt.Sprintf("index page %d: %v", page, err))
			break
		}
		m.page()
		doc, err := parseHTML(data)
		if err != nil {
			m.fail(fmt.Sprintf("index page %d: %v", page, err))
			break
		}

		items, hasNext := a.parseListPage(doc)
		if len(items) == 0 {
			log.Printf("[%s] no items on page %d, stopping", a.code, page)
			break
		}
		log.Printf("[%s] page %d: found %d listings", a.code, page, len(items))

		byURL := make(map[string]nemItem, len(items))
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
			pause(ctx, 500*time.Millisecond)
			return nil
		})

		if !hasNext {
			break
		}
		pause(ctx, time.Second)
	}
	return m.savedCount(), nil
}

func (a *nemZnojmoAdapter) parseListPage(doc *goquery.Document) ([]nemItem, bool) {
	var items []nemItem
	seen := map[string]bool{}
	doc.Find("a[href*='/detail/']").Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		if !nemDetailHrefRe.MatchString(href) {
			return
		}
		full := AbsURL(nemBaseURL, href)
		if seen[full] {
			return
		}
		seen[full] = true
		title := CollapseWhitespace(link.Find("h2, h3, h4, .title, strong").First().Text())
		items = append(items, nemItem{url: full, title: truncate(title, 200)})
	})

	hasNext := doc.Find("a[href*='page-']").Length() > 0
	if hasNext {
		// Numbered links can be leftovers of a single-page result;
		// trust them only when the pagination block itself carries
		// page numbers.
		numbered := false
		doc.Find("nav a, .pagination a, [class*='page'] a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			if nemPageNumRe.MatchString(link.AttrOr("href", "")) {
				numbered = true
				return false
			}
			return true
		})
		hasNext = numbered
	}
	return items, hasNext
}

func (a *nemZnojmoAdapter) scrapeDetail(ctx context.Context, item nemItem) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, item.url)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		URL:        item.url,
		ExternalID: lastPathSegment(item.url),
	}
	if m := nemDetailHrefRe.FindStringSubmatch(item.url); m != nil {
		rec.ExternalID = m[1]
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		title = CollapseWhitespace(doc.Find("h2").First().Text())
	}
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)

	rec.Price = a.findPrice(doc)

	titleLower := strings.ToLower(rec.Title)
	rec.PropertyType = "Ostatní"
	for _, entry := range nemPropertyKeywords {
		if strings.Contains(titleLower, entry.keyword) {
			rec.PropertyType = entry.propertyType
			break
		}
	}
	rec.OfferType = "Prodej"
	if NormalizeOfferType(rec.Title) == models.OfferRent {
		rec.OfferType = "Pronájem"
	}

	rec.Description = truncate(CollapseWhitespace(
		doc.Find(".description, article .content, main p, .perex").First().Text()), 5000)

	a.applyParamRows(doc, rec)
	if rec.LocationText == "" {
		rec.LocationText = a.findLocationFallback(doc)
	}

	rec.PhotoURLs = a.findPhotos(doc)
	return rec, nil
}

func (a *nemZnojmoAdapter) findPrice(doc *goquery.Document) *float64 {
	var price *float64
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if !strings.Contains(text, "Kč") || len([]rune(text)) >= 50 || !strings.ContainsAny(text, "0123456789") {
			return true
		}
		if m := nemPriceNumRe.FindString(text); m != "" {
			if p := ParsePrice(m); p != nil {
				price = p
				return false
			}
		}
		return true
	})
	return price
}

func (a *nemZnojmoAdapter) applyParamRows(doc *goquery.Document, rec *models.ScrapedListing) {
	doc.Find("tr, li, .param-item").Each(func(_ int, row *goquery.Selection) {
		raw := CollapseWhitespace(row.Text())
		text := strings.ToLower(raw)

		if strings.Contains(text, "plocha") && (strings.Contains(text, "m2") || strings.Contains(text, "m²")) {
			if m := nemAreaRe.FindStringSubmatch(text); m != nil {
				if v := ParseArea(m[1]); v != nil {
					if strings.Contains(text, "pozem") || strings.Contains(text, "parcel") {
						rec.AreaLand = v
					} else {
						rec.AreaBuiltUp = v
					}
				}
			}
		}

		if strings.Contains(text, "lokalita") || strings.Contains(text, "adresa") || strings.Contains(text, "obec") {
			if val := CollapseWhitespace(row.Find("td:nth-child(2), span.value, strong").First().Text()); val != "" {
				rec.LocationText = truncate(val, 200)
				return
			}
			clean := strings.TrimSpace(nemLocPrefixRe.ReplaceAllString(raw, ""))
			if len([]rune(clean)) > 3 {
				rec.LocationText = truncate(clean, 200)
			}
		}
	})
}

func (a *nemZnojmoAdapter) findLocationFallback(doc *goquery.Document) string {
	found := ""
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if nemZnojmoRe.MatchString(text) {
			found = truncate(text, 200)
			return false
		}
		return true
	})
	if found == "" {
		return "Znojmo a okolí"
	}
	return found
}

func (a *nemZnojmoAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(src string) {
		if src == "" {
			return
		}
		full := AbsURL(nemBaseURL, src)
		if !seen[full] {
			seen[full] = true
			photos = append(photos, full)
		}
	}

	doc.Find(".gallery img, .fotorama img, a[data-fancybox] img, img.photo").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		add(src)
	})
	if len(photos) == 0 {
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			src := img.AttrOr("src", "")
			lower := strings.ToLower(src)
			if strings.Contains(lower, "foto") || strings.Contains(lower, "gallery") || strings.Contains(lower, "image") {
				add(src)
			}
		})
	}
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}
