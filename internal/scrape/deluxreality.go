package scrape

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const (
	deluxBaseURL     = "https://deluxreality.cz"
	deluxListingsURL = deluxBaseURL + "/nemovitosti/"
)

// This portal emits the canonical English enums directly; the keyword
// maps below translate the Czech headings.
var deluxPropertyKeywords = []struct {
	keyword      string
	propertyType string
}{
	{"byt", "Apartment"},
	{"apartmán", "Apartment"},
	{"dům", "House"},
	{"dom", "House"},
	{"rodinný", "House"},
	{"vila", "House"},
	{"pozemek", "Land"},
	{"parcela", "Land"},
	{"zahrada", "Land"},
	{"stavební", "Land"},
	{"komerční", "Commercial"},
	{"sklady", "Commercial"},
	{"kanceláře", "Commercial"},
	{"chata", "Cottage"},
	{"chalupa", "Cottage"},
	{"rekreace", "Cottage"},
	{"horský", "Cottage"},
}

var (
	deluxSlugRe     = regexp.MustCompile(`/nemovitost/([^/]+)/?$`)
	deluxPriceRe    = regexp.MustCompile(`\d[\d\s\x{00a0}]+Kč`)
	deluxAreaRe     = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*m`)
	deluxBareAreaRe = regexp.MustCompile(`(\d{2,4}(?:[.,]\d+)?)\s*m[²2]`)
	deluxImageRe    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)$`)
	deluxPlaceRe    = regexp.MustCompile(`(?i)Znojmo|Hevlín|Šatov|Vrbovec|Mikulovice|Hnanice`)
)

type deluxRealityAdapter struct {
	base
}

func newDeluxReality(opts Options) *deluxRealityAdapter {
	return &deluxRealityAdapter{base: newBase("DELUXREALITY", opts)}
}

// Run walks the single listings page; the office is small enough that
// the index never paginates.
func (a *deluxRealityAdapter) Run(ctx context.Context, _ bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	data, err := a.fetchPage(ctx, deluxListingsURL)
	if err != nil {
		return 0, err
	}
	m.page()
	doc, err := parseHTML(data)
	if err != nil {
		return 0, err
	}

	var urls []string
	seen := map[string]bool{}
	doc.Find("a[href*='/nemovitost/']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		full := AbsURL(deluxBaseURL, strings.TrimSpace(href))
		if full == "" || seen[full] || strings.HasSuffix(full, "/nemovitosti/") {
			return
		}
		seen[full] = true
		urls = append(urls, full)
	})
	log.Printf("[%s] found %d listings", a.code, len(urls))

	a.eachDetail(ctx, m, urls, func(ctx context.Context, u string) error {
		rec, err := a.scrapeDetail(ctx, u)
		if err != nil {
			return err
		}
		if rec != nil {
			a.save(ctx, m, rec)
		}
		pause(ctx, 300*time.Millisecond)
		return nil
	})
	return m.savedCount(), nil
}

func (a *deluxRealityAdapter) scrapeDetail(ctx context.Context, u string) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	externalID := u
	if m := deluxSlugRe.FindStringSubmatch(u); m != nil {
		externalID = m[1]
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		log.Printf("[%s] no title at %s", a.code, u)
		return nil, nil
	}

	// The h2 subtitle spells out the deal ("Prodej rodinného domu,
	// Znojmo"); the h1 alone is often just the street.
	headline := strings.ToLower(title + " " + CollapseWhitespace(doc.Find("h2").First().Text()))

	offerType := models.OfferSale
	if !strings.Contains(headline, "prodej") && NormalizeOfferType(headline) == models.OfferRent {
		offerType = models.OfferRent
	}

	propertyType := "Other"
	for _, entry := range deluxPropertyKeywords {
		if strings.Contains(headline, entry.keyword) {
			propertyType = entry.propertyType
			break
		}
	}

	rec := &models.ScrapedListing{
		ExternalID:   externalID,
		URL:          u,
		Title:        title,
		OfferType:    offerType,
		PropertyType: propertyType,
		Price:        a.findPrice(doc),
		AreaBuiltUp:  a.findArea(doc),
		LocationText: a.findLocation(doc),
		Description:  a.findDescription(doc),
		PhotoURLs:    a.findPhotos(doc),
	}
	return rec, nil
}

func (a *deluxRealityAdapter) findPrice(doc *goquery.Document) *float64 {
	var price *float64
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if len([]rune(text)) > 60 || !deluxPriceRe.MatchString(text) {
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

// findArea tries three shapes in turn: a "Plocha" heading with the
// value in a following widget, a labelled bullet line, and finally any
// bare "NN m²" token in a plausible range.
func (a *deluxRealityAdapter) findArea(doc *goquery.Document) *float64 {
	var area *float64

	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(heading.Text()), "plocha") {
			return true
		}
		for _, scope := range []*goquery.Selection{heading.NextAll(), heading.Parent().NextAll()} {
			if m := deluxAreaRe.FindStringSubmatch(scope.Text()); m != nil {
				if v := deluxFloat(m[1]); v != nil {
					area = v
					return false
				}
			}
		}
		return true
	})
	if area != nil {
		return area
	}

	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.ToLower(CollapseWhitespace(sel.Text()))
		if !strings.Contains(text, "plocha bytu") && !strings.Contains(text, "užitná plocha") && !strings.Contains(text, "plocha domu") {
			return true
		}
		if m := deluxAreaRe.FindStringSubmatch(text); m != nil {
			if v := deluxFloat(m[1]); v != nil {
				area = v
				return false
			}
		}
		return true
	})
	if area != nil {
		return area
	}

	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		if m := deluxBareAreaRe.FindStringSubmatch(sel.Text()); m != nil {
			if v := deluxFloat(m[1]); v != nil && *v > 10 && *v < 2000 {
				area = v
				return false
			}
		}
		return true
	})
	return area
}

func (a *deluxRealityAdapter) findLocation(doc *goquery.Document) string {
	found := "Znojmo"
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if n := len([]rune(text)); n > 3 && n < 80 && deluxPlaceRe.MatchString(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

func (a *deluxRealityAdapter) findDescription(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if text := CollapseWhitespace(p.Text()); len([]rune(text)) > 80 {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 6
	})
	return strings.Join(paragraphs, "\n\n")
}

// findPhotos collects the bare gallery anchors; they point straight at
// the full-size uploads while the img tags carry thumbnails.
func (a *deluxRealityAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	doc.Find("a[href*='wp-content/uploads']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" || !deluxImageRe.MatchString(href) {
			return true
		}
		full := AbsURL(deluxBaseURL, href)
		if !seen[full] {
			seen[full] = true
			photos = append(photos, full)
		}
		return len(photos) < 20
	})
	return photos
}

func deluxFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
