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

const hvBaseURL = "https://hvreality.cz"

var hvStartURLs = []string{
	hvBaseURL + "/prodej-nemovitosti/",
	hvBaseURL + "/pronajem-nemovitosti/",
}

// Ordered, first keyword hit wins.
var hvPropertyKeywords = []struct {
	keyword      string
	propertyType string
}{
	{"byt", "Byt"},
	{"dům", "Dům"},
	{"dom", "Dům"},
	{"rodinný", "Dům"},
	{"vila", "Dům"},
	{"pozemek", "Pozemek"},
	{"parcela", "Pozemek"},
	{"garáž", "Garáž"},
	{"komerční", "Komerční"},
	{"ostatní", "Ostatní"},
	{"sklep", "Ostatní"},
	{"vinný", "Ostatní"},
	{"chalupa", "Dům"},
	{"chata", "Dům"},
}

var (
	hvAreaRe      = regexp.MustCompile(`(\d+)\s*m[²2]`)
	hvLocPrefixRe = regexp.MustCompile(`(?i)^(lokalita|adresa|obec|město):?\s*`)
	hvWPSizeRe    = regexp.MustCompile(`-\d+x\d+(\.[a-zA-Z]+)$`)
	hvZnojmoRe    = regexp.MustCompile(`(?i)Znojmo`)
)

type hvRealityAdapter struct {
	base
}

func newHVReality(opts Options) *hvRealityAdapter {
	return &hvRealityAdapter{base: newBase("HVREALITY", opts)}
}

type hvItem struct {
	url   string
	title string
}

func (a *hvRealityAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 3
	if fullRescan {
		maxPages = 20
	}

	for _, startURL := range hvStartURLs {
		current := startURL
		for page := 1; page <= maxPages && current != ""; page++ {
			if ctx.Err() != nil {
				return m.savedCount(), ctx.Err()
			}
			data, err := a.fetchPage(ctx, current)
			if err != nil {
				m.fail(fmt.Sprintf("index %s: %v", current, err))
				break
			}
			m.page()
			doc, err := parseHTML(data)
			if err != nil {
				m.fail(fmt.Sprintf("index %s: %v", current, err))
				break
			}

			items, next := a.parseList(doc, current)
			if len(items) == 0 {
				break
			}

			byURL := make(map[string]hvItem, len(items))
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

			current = next
			pause(ctx, time.Second)
		}
	}
	return m.savedCount(), nil
}

func (a *hvRealityAdapter) parseList(doc *goquery.Document, currentURL string) ([]hvItem, string) {
	var items []hvItem
	seen := map[string]bool{}
	add := func(href, title string) {
		full := AbsURL(hvBaseURL, href)
		if full == "" || seen[full] || strings.TrimRight(full, "/") == strings.TrimRight(currentURL, "/") {
			return
		}
		for _, skip := range []string{"page/", "/category/", "/author/", "/tag/"} {
			if strings.Contains(full, skip) {
				return
			}
		}
		seen[full] = true
		items = append(items, hvItem{url: full, title: truncate(title, 200)})
	}

	doc.Find("article.hentry, .hentry").Each(func(_ int, article *goquery.Selection) {
		titleLink := article.Find(".entry-title a, h1 a, h2 a, h3 a, h4 a, h5 a, h6 a").First()
		if href, ok := titleLink.Attr("href"); ok && href != "" {
			add(href, CollapseWhitespace(titleLink.Text()))
			return
		}
		article.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if len(href) > 30 && strings.HasPrefix(href, "http") {
				title := CollapseWhitespace(article.Find("h1, h2, h3, h4, h5, h6").First().Text())
				if title == "" {
					title = CollapseWhitespace(link.Text())
				}
				add(href, title)
				return false
			}
			return true
		})
	})

	if len(items) == 0 {
		doc.Find("a[href*='/property/'], a[href*='/nemovitost/'], .elementor-post__title a, .elementor-post a").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if href == "" || strings.Contains(href, "#") {
				return
			}
			title := CollapseWhitespace(link.Find("h1, h2, h3, h4, h5, h6").First().Text())
			if title == "" {
				title = CollapseWhitespace(link.Text())
			}
			add(href, title)
		})
	}

	next := ""
	if href, ok := doc.Find("a.next.page-numbers, a.elementor-pagination__next, .pagination a.next").First().Attr("href"); ok && href != "" {
		next = AbsURL(hvBaseURL, href)
	} else {
		doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(link.Text()))
			if !strings.Contains(text, "další") && !strings.Contains(text, "next") && !strings.Contains(text, "»") {
				return true
			}
			if href, ok := link.Attr("href"); ok && strings.Contains(href, "page") {
				next = AbsURL(hvBaseURL, href)
				return false
			}
			return true
		})
	}
	return items, next
}

func (a *hvRealityAdapter) scrapeDetail(ctx context.Context, item hvItem) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, item.url)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		ExternalID: lastPathSegment(item.url),
		URL:        item.url,
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)

	titleLower := strings.ToLower(rec.Title)
	rec.PropertyType = "Ostatní"
	for _, entry := range hvPropertyKeywords {
		if strings.Contains(titleLower, entry.keyword) {
			rec.PropertyType = entry.propertyType
			break
		}
	}
	rec.OfferType = "Prodej"
	if NormalizeOfferType(rec.Title) == models.OfferRent {
		rec.OfferType = "Pronájem"
	}

	rec.Price = a.findPrice(doc)

	var paragraphs []string
	doc.Find(".elementor-widget-text-editor p, .entry-content p, article p").Each(func(_ int, p *goquery.Selection) {
		if text := CollapseWhitespace(p.Text()); len([]rune(text)) > 20 {
			paragraphs = append(paragraphs, text)
		}
	})
	rec.Description = truncate(strings.Join(paragraphs, "\n\n"), 5000)

	a.applyRows(doc, rec)
	if rec.LocationText == "" {
		rec.LocationText = a.findLocationFallback(doc)
	}

	rec.PhotoURLs = a.findPhotos(doc)
	return rec, nil
}

func (a *hvRealityAdapter) findPrice(doc *goquery.Document) *float64 {
	var price *float64
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if !strings.Contains(text, "Kč") && !strings.Contains(text, "CZK") {
			return true
		}
		if len([]rune(text)) >= 50 || !strings.ContainsAny(text, "0123456789") {
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

// applyRows scans parameter rows for areas and the location label.
// Later rows overwrite earlier ones, matching the page order where the
// summary block repeats the teaser values.
func (a *hvRealityAdapter) applyRows(doc *goquery.Document, rec *models.ScrapedListing) {
	doc.Find("tr, li, .elementor-icon-list-item").Each(func(_ int, row *goquery.Selection) {
		text := strings.ToLower(CollapseWhitespace(row.Text()))

		if strings.Contains(text, "plocha") && (strings.Contains(text, "m2") || strings.Contains(text, "m²")) {
			if m := hvAreaRe.FindStringSubmatch(text); m != nil {
				if v := ParseArea(m[1]); v != nil {
					if strings.Contains(text, "pozem") || strings.Contains(text, "parcel") {
						rec.AreaLand = v
					} else {
						rec.AreaBuiltUp = v
					}
				}
			}
		}

		if strings.Contains(text, "lokalita") || strings.Contains(text, "adresa") || strings.Contains(text, "obec") || strings.Contains(text, "město") {
			clean := strings.TrimSpace(hvLocPrefixRe.ReplaceAllString(text, ""))
			if len([]rune(clean)) > 3 {
				rec.LocationText = truncate(titleWords(clean), 200)
			}
		}
	})
}

func (a *hvRealityAdapter) findLocationFallback(doc *goquery.Document) string {
	found := ""
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if hvZnojmoRe.MatchString(text) {
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

func (a *hvRealityAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(raw string) {
		if raw == "" || strings.HasSuffix(strings.ToLower(raw), ".svg") {
			return
		}
		// WordPress thumbnails carry a -{W}x{H} suffix; the original
		// file lives at the bare name.
		full := hvWPSizeRe.ReplaceAllString(AbsURL(hvBaseURL, raw), "$1")
		if !seen[full] {
			seen[full] = true
			photos = append(photos, full)
		}
	}

	doc.Find(".gallery img, .elementor-gallery-item img, .swiper-slide img, img[data-src]").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"data-src", "data-large_image", "src"} {
			if src, ok := img.Attr(attr); ok && src != "" {
				add(src)
				return
			}
		}
	})
	if len(photos) == 0 {
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			lower := strings.ToLower(src)
			if strings.Contains(lower, "foto") || strings.Contains(lower, "gallery") || strings.Contains(lower, "uploads") {
				add(src)
			}
		})
	}
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}
