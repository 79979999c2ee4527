package scrape

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const (
	idnesBaseURL    = "https://reality.idnes.cz"
	idnesSitemapURL = idnesBaseURL + "/sitemap.xml"
	idnesPriceMin   = 10_000
	idnesPriceMax   = 500_000_000
)

var (
	// nemovitosti-hledani.xml.gz holds search pages, not listings, and
	// fails the digits-only suffix on purpose.
	idnesSubSitemapRe = regexp.MustCompile(`(?i)/sitemap/nemovitosti\d*\.xml\.gz$`)
	idnesTitleClassRe = regexp.MustCompile(`title|heading|main-title`)
	idnesPriceRe      = regexp.MustCompile(`(\d[\d\s.\x{00a0}]{2,10}\d)\s*(?:Kč|CZK)`)
	idnesAreaRowRe    = regexp.MustCompile(`(?i)Plocha\D+?(\d+)\s*m`)
	idnesTitleAreaRe  = regexp.MustCompile(`(\d+)\s*m[²2]`)
)

type idnesAdapter struct {
	base
}

func newIdnes(opts Options) *idnesAdapter {
	return &idnesAdapter{base: newBase("IDNES", opts)}
}

type idnesSitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type idnesURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

func (a *idnesAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxDetails := 100
	if fullRescan {
		maxDetails = 999
	}

	urls, err := a.collectURLs(ctx, m)
	if err != nil {
		return 0, err
	}
	if len(urls) > maxDetails {
		urls = urls[:maxDetails]
	}

	a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
		rec, err := a.scrapeDetail(ctx, u)
		if err != nil {
			return err
		}
		a.save(ctx, m, rec)
		pause(ctx, 500*time.Millisecond)
		return nil
	})
	return m.savedCount(), nil
}

// collectURLs walks the sitemap index and keeps district detail pages
// from the gzipped listing sub-sitemaps.
func (a *idnesAdapter) collectURLs(ctx context.Context, m *runMetrics) ([]string, error) {
	data, err := a.opts.Client.Get(ctx, idnesSitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap index: %w", err)
	}
	m.page()

	var index idnesSitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap index: %w", err)
	}

	var urls []string
	for _, entry := range index.Sitemaps {
		loc := strings.TrimSpace(entry.Loc)
		if !idnesSubSitemapRe.MatchString(loc) {
			continue
		}
		if ctx.Err() != nil {
			return urls, ctx.Err()
		}
		batch, err := a.fetchSubSitemap(ctx, loc)
		if err != nil {
			m.fail(fmt.Sprintf("sitemap %s: %v", loc, err))
			continue
		}
		m.page()
		for _, u := range batch {
			if strings.Contains(u, "/detail/") && strings.Contains(strings.ToLower(u), "znojmo") {
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}

func (a *idnesAdapter) fetchSubSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	data, err := a.opts.Client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if reader, err := gzip.NewReader(bytes.NewReader(data)); err == nil {
		if plain, err := io.ReadAll(reader); err == nil {
			data = plain
		}
	}

	var set idnesURLSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func (a *idnesAdapter) scrapeDetail(ctx context.Context, detailURL string) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		ExternalID:   lastPathSegment(detailURL),
		URL:          detailURL,
		PropertyType: idnesPropertyTypeFromURL(detailURL),
		OfferType:    "Sale",
	}
	if strings.Contains(strings.ToLower(detailURL), "/pronajem/") {
		rec.OfferType = "Rent"
	}

	title := ""
	doc.Find("h1").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := CollapseWhitespace(h.Text())
		if text == "" {
			return true
		}
		class, _ := h.Attr("class")
		if idnesTitleClassRe.MatchString(class) {
			title = text
			return false
		}
		if title == "" {
			title = text
		}
		return true
	})
	if title == "" {
		title = "N/A"
	}
	rec.Title = truncate(title, 200)

	rec.Price = a.findPrice(doc)
	rec.LocationText = truncate(a.findLocation(doc, detailURL), 200)
	rec.Description = a.findDescription(doc)
	rec.PhotoURLs = a.findPhotos(doc)
	rec.AreaBuiltUp = a.findArea(doc, rec.Title)
	return rec, nil
}

func idnesPropertyTypeFromURL(detailURL string) string {
	lower := strings.ToLower(detailURL)
	switch {
	case strings.Contains(lower, "/byt/") || strings.Contains(lower, "/byt-"):
		return "Apartment"
	case strings.Contains(lower, "/dum/") || strings.Contains(lower, "/dum-") || strings.Contains(lower, "/domy/"):
		return "House"
	case strings.Contains(lower, "/pozemek/") || strings.Contains(lower, "/pozemek-"):
		return "Land"
	case strings.Contains(lower, "/chata/") || strings.Contains(lower, "/chalupa/") || strings.Contains(lower, "/chata-"):
		return "Cottage"
	case strings.Contains(lower, "/komercni") || strings.Contains(lower, "/komerci"):
		return "Commercial"
	case strings.Contains(lower, "/garaz/") || strings.Contains(lower, "/garaz-"):
		return "Garage"
	}
	return "Other"
}

func (a *idnesAdapter) findPrice(doc *goquery.Document) *float64 {
	for _, selector := range []string{".b-detail__price", ".cena", "[itemprop='price']"} {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if m := idnesPriceRe.FindStringSubmatch(el.Text()); m != nil {
			digits := digitRunRe.FindAllString(m[1], -1)
			v, err := strconv.ParseFloat(strings.Join(digits, ""), 64)
			if err == nil && v >= idnesPriceMin && v <= idnesPriceMax {
				return &v
			}
		}
		// Price element found but unparsable; other selectors would
		// only repeat the same block.
		return nil
	}
	return nil
}

func (a *idnesAdapter) findLocation(doc *goquery.Document, detailURL string) string {
	for _, selector := range []string{
		".b-detail__info .icoi-location",
		".b-detail__info-item--location",
		"[itemprop='addressLocality']",
		".b-detail__place",
	} {
		if text := CollapseWhitespace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}

	// URL shape: /detail/{prodej|pronajem}/{type}/{location-slug}/{id}/
	parts := strings.Split(strings.TrimRight(detailURL, "/"), "/")
	if len(parts) >= 2 {
		if slug := parts[len(parts)-2]; slug != "" {
			return titleWords(strings.ReplaceAll(slug, "-", " "))
		}
	}
	return "Znojmo"
}

func (a *idnesAdapter) findDescription(doc *goquery.Document) string {
	for _, selector := range []string{".b-detail__desc", ".b-detail__text", "[itemprop='description']"} {
		if text := CollapseWhitespace(doc.Find(selector).First().Text()); text != "" {
			return truncate(text, 5000)
		}
	}
	return ""
}

func (a *idnesAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(raw string) {
		if raw == "" || !strings.HasPrefix(raw, "http") || seen[raw] {
			return
		}
		seen[raw] = true
		photos = append(photos, raw)
	}

	doc.Find(".b-slider__item img, .photoSlider img, .gallery img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy"} {
			if src, ok := img.Attr(attr); ok && src != "" {
				add(src)
				return
			}
		}
	})
	if len(photos) == 0 {
		doc.Find(`meta[property="og:image"]`).Each(func(_ int, og *goquery.Selection) {
			content, _ := og.Attr("content")
			add(content)
		})
	}
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}

func (a *idnesAdapter) findArea(doc *goquery.Document, title string) *float64 {
	var area *float64
	doc.Find(".b-detail__info-item, .b-detail__param").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if m := idnesAreaRowRe.FindStringSubmatch(CollapseWhitespace(row.Text())); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				area = &v
				return false
			}
		}
		return true
	})
	if area != nil {
		return area
	}
	if m := idnesTitleAreaRe.FindStringSubmatch(title); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}
