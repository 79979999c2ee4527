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

const remaxBaseURL = "https://www.remax-czech.cz"

// Three Znojmo-district category searches. The portal has no rental
// inventory here, so every config is a sale.
var remaxCategories = []struct {
	url          string
	offerType    string
	propertyType string
}{
	{remaxBaseURL + "/reality/domy-a-vily/prodej/jihomoravsky-kraj/znojmo/", "Prodej", "Dům"},
	{remaxBaseURL + "/reality/pozemky/prodej/jihomoravsky-kraj/znojmo/", "Prodej", "Pozemek"},
	{remaxBaseURL + "/reality/byty/prodej/jihomoravsky-kraj/znojmo/", "Prodej", "Byt"},
}

var (
	remaxDetailIDRe    = regexp.MustCompile(`/reality/detail/(\d+)/`)
	remaxDetailSlugRe  = regexp.MustCompile(`/reality/detail/\d+/(.+)`)
	remaxAskingPriceRe = regexp.MustCompile(`Nabídková cena[^0-9]{0,40}(\d[\d\s\x{00a0}]*)\s*Kč`)
	remaxPriceRe       = regexp.MustCompile(`(\d[\d\s\x{00a0}]+)\s*Kč`)
	remaxAreaRe        = regexp.MustCompile(`(\d+)\s*m[²2]`)
)

type remaxAdapter struct {
	base
}

func newRemax(opts Options) *remaxAdapter {
	return &remaxAdapter{base: newBase("REMAX", opts)}
}

type remaxIndexItem struct {
	externalID string
	detailURL  string
	title      string
	offerType  string
	propType   string
}

func (a *remaxAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	maxPages := 5
	if fullRescan {
		maxPages = 100
	}

	seen := map[string]bool{}
	var items []remaxIndexItem
	for _, cat := range remaxCategories {
		for page := 1; page <= maxPages; page++ {
			if ctx.Err() != nil {
				return m.savedCount(), ctx.Err()
			}
			pageURL := fmt.Sprintf("%s?stranka=%d", cat.url, page)
			data, err := a.fetchPage(ctx, pageURL)
			if err != nil {
				return m.savedCount(), fmt.Errorf("failed to fetch index %s: %w", pageURL, err)
			}
			m.page()

			doc, err := parseHTML(data)
			if err != nil {
				return m.savedCount(), fmt.Errorf("failed to parse index %s: %w", pageURL, err)
			}

			added := 0
			doc.Find(`a[href*="/reality/detail/"]`).Each(func(_ int, sel *goquery.Selection) {
				href, _ := sel.Attr("href")
				idm := remaxDetailIDRe.FindStringSubmatch(href)
				if idm == nil || seen[idm[1]] {
					return
				}
				title := CollapseWhitespace(sel.Text())
				if len([]rune(title)) < 5 {
					return
				}
				seen[idm[1]] = true
				added++
				items = append(items, remaxIndexItem{
					externalID: idm[1],
					detailURL:  AbsURL(remaxBaseURL, href),
					title:      truncate(title, 200),
					offerType:  cat.offerType,
					propType:   cat.propertyType,
				})
			})
			if added == 0 {
				break
			}
			pause(ctx, time.Second)
		}
	}

	byURL := make(map[string]remaxIndexItem, len(items))
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
		return nil
	})
	return m.savedCount(), nil
}

func (a *remaxAdapter) scrapeDetail(ctx context.Context, item remaxIndexItem) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, item.detailURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapedListing{
		ExternalID: item.externalID,
		URL:        item.detailURL,
		Title:      item.title,
	}
	if h1 := CollapseWhitespace(doc.Find("h1").First().Text()); h1 != "" {
		rec.Title = truncate(h1, 200)
	}

	rec.LocationText = a.findLocation(doc, item.detailURL)

	text := doc.Text()
	if pm := remaxAskingPriceRe.FindStringSubmatch(text); pm != nil {
		rec.Price = ParsePrice(pm[1])
	} else if pm := remaxPriceRe.FindStringSubmatch(text); pm != nil {
		rec.Price = ParsePrice(pm[1])
	}

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := CollapseWhitespace(sel.Text())
		if len(t) > 100 {
			paragraphs = append(paragraphs, t)
		}
		return len(paragraphs) < 3
	})
	rec.Description = truncate(strings.Join(paragraphs, "\n\n"), 2000)

	a.findAreas(text, rec)

	var photos []string
	photoSeen := map[string]bool{}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" || !strings.Contains(src, "mlsf.remax-czech.cz") {
			return
		}
		u := AbsURL(remaxBaseURL, src)
		if !photoSeen[u] {
			photoSeen[u] = true
			photos = append(photos, u)
		}
	})
	if len(photos) > 20 {
		photos = photos[:20]
	}
	rec.PhotoURLs = photos

	if pt := InferPropertyType(rec.Title); pt != "Ostatní" {
		rec.PropertyType = pt
	} else {
		rec.PropertyType = item.propType
	}
	titleLower := strings.ToLower(rec.Title)
	if strings.Contains(titleLower, "pronáj") || strings.Contains(titleLower, "pronaj") {
		rec.OfferType = "Pronájem"
	} else if strings.Contains(titleLower, "prodej") {
		rec.OfferType = "Prodej"
	} else {
		rec.OfferType = item.offerType
	}
	return rec, nil
}

func (a *remaxAdapter) findLocation(doc *goquery.Document, detailURL string) string {
	for _, sel := range []string{`[class*="location"]`, `[class*="address"]`, `[class*="breadcrumb"]`, ".property-location"} {
		if t := CollapseWhitespace(doc.Find(sel).First().Text()); t != "" {
			return truncate(t, 200)
		}
	}
	if loc := LocationFromText(doc.Text()); loc != "" {
		return loc
	}
	// Last resort: the URL slug reads like a location sentence.
	if sm := remaxDetailSlugRe.FindStringSubmatch(detailURL); sm != nil {
		return truncate(strings.ReplaceAll(strings.Trim(sm[1], "/"), "-", " "), 200)
	}
	return ""
}

// findAreas inspects the first two area mentions; a land keyword near
// the figure marks it as plot area, otherwise it is built-up area.
func (a *remaxAdapter) findAreas(text string, rec *models.ScrapedListing) {
	locs := remaxAreaRe.FindAllStringSubmatchIndex(text, 2)
	for _, loc := range locs {
		val := ParseArea(text[loc[2]:loc[3]])
		if val == nil {
			continue
		}
		start := loc[0] - 60
		if start < 0 {
			start = 0
		}
		window := strings.ToLower(text[start:loc[0]])
		if strings.Contains(window, "pozem") || strings.Contains(window, "parcel") {
			if rec.AreaLand == nil {
				rec.AreaLand = val
			}
		} else if rec.AreaBuiltUp == nil {
			rec.AreaBuiltUp = val
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
