package scrape

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const (
	lexamoBaseURL     = "https://www.lexamo.cz"
	lexamoListingsURL = lexamoBaseURL + "/"
	lexamoMaxPages    = 20
)

// English enums, like the other Webflow office site.
var lexamoPropertyKeywords = []struct {
	keyword      string
	propertyType string
}{
	{"byt", "Apartment"},
	{"bytov", "Apartment"},
	{"apartmán", "Apartment"},
	{"dům", "House"},
	{"domu", "House"},
	{"rodinný", "House"},
	{"rodinne", "House"},
	{"vila", "House"},
	{"pozemek", "Land"},
	{"pozemku", "Land"},
	{"parcela", "Land"},
	{"zahrada", "Land"},
	{"stavební", "Land"},
	{"komerční", "Commercial"},
	{"sklady", "Commercial"},
	{"kanceláře", "Commercial"},
	{"chata", "Cottage"},
	{"chalupa", "Cottage"},
	{"rekreace", "Cottage"},
}

var (
	lexamoDealRe       = regexp.MustCompile(`(?i)prodej|pronájem|pronajem`)
	lexamoIDSuffixRe   = regexp.MustCompile(`-(\d+)/?$`)
	lexamoUsableAreaRe = regexp.MustCompile(`(?i)užitná plocha\s*:?\s*([0-9][0-9\s,.\x{00a0}]*)\s*m`)
	lexamoTotalAreaRe  = regexp.MustCompile(`(?i)celková plocha\s*:?\s*([0-9][0-9\s,.\x{00a0}]*)\s*m`)
	lexamoPlaceRe      = regexp.MustCompile(`(?i)Znojmo|Morašice|Jaroslavice|Višňové|Hevlín|Přítluky`)
	lexamoNonDigitRe   = regexp.MustCompile(`\D`)
)

type lexamoAdapter struct {
	base
}

func newLexamo(opts Options) *lexamoAdapter {
	return &lexamoAdapter{base: newBase("LEXAMO", opts)}
}

func (a *lexamoAdapter) Run(ctx context.Context, _ bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	urls, err := a.collectURLs(ctx, m)
	if err != nil {
		return 0, err
	}
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

// collectURLs pages through the Webflow CMS collection on the
// homepage. The hex blob in the page parameter is the collection list
// id, fixed per published site.
func (a *lexamoAdapter) collectURLs(ctx context.Context, m *runMetrics) ([]string, error) {
	var urls []string
	seen := map[string]bool{}
	for page := 1; page <= lexamoMaxPages; page++ {
		pageURL := lexamoListingsURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?65cdb0cc_page=%d", lexamoListingsURL, page)
		}
		data, err := a.fetchPage(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			m.fail(fmt.Sprintf("index page %d: %v", page, err))
			break
		}
		m.page()
		doc, err := parseHTML(data)
		if err != nil {
			m.fail(fmt.Sprintf("index page %d: %v", page, err))
			break
		}

		added := false
		doc.Find("a[href*='/realman-listing/']").Each(func(_ int, link *goquery.Selection) {
			href := strings.TrimSpace(link.AttrOr("href", ""))
			full := AbsURL(lexamoBaseURL, href)
			if full == "" || seen[full] {
				return
			}
			seen[full] = true
			urls = append(urls, full)
			added = true
		})
		if !added {
			break
		}
		pause(ctx, 500*time.Millisecond)
	}
	return urls, nil
}

func (a *lexamoAdapter) scrapeDetail(ctx context.Context, u string) (*models.ScrapedListing, error) {
	data, err := a.opts.Client.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(data)
	if err != nil {
		return nil, err
	}

	externalID := u
	if m := lexamoIDSuffixRe.FindStringSubmatch(u); m != nil {
		externalID = m[1]
	}

	var headings []string
	doc.Find("h1, h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
		headings = append(headings, CollapseWhitespace(h.Text()))
	})

	// The deal heading ("Prodej rodinného domu 5+kk") is the title;
	// pages without one are company boilerplate, not listings.
	title := ""
	for _, h := range headings {
		if lexamoDealRe.MatchString(h) && len([]rune(h)) > 5 {
			title = h
			break
		}
	}
	if title == "" {
		log.Printf("[%s] no title at %s", a.code, u)
		return nil, nil
	}

	offerType := models.OfferSale
	if !strings.Contains(strings.ToLower(title), "prodej") && NormalizeOfferType(title) == models.OfferRent {
		offerType = models.OfferRent
	}

	haystack := strings.ToLower(title + " " + u)
	propertyType := "Other"
	for _, entry := range lexamoPropertyKeywords {
		if strings.Contains(haystack, entry.keyword) {
			propertyType = entry.propertyType
			break
		}
	}

	var price *float64
	for _, h := range headings {
		if !strings.Contains(h, "Kč") || !strings.ContainsAny(h, "0123456789") {
			continue
		}
		if p := ParsePrice(h); p != nil && *p > 1000 {
			price = p
			break
		}
	}

	fullText := doc.Text()
	var area *float64
	for _, re := range []*regexp.Regexp{lexamoUsableAreaRe, lexamoTotalAreaRe} {
		if m := re.FindStringSubmatch(fullText); m != nil {
			if v := lexamoNumber(m[1]); v != nil {
				area = v
				break
			}
		}
	}

	rec := &models.ScrapedListing{
		ExternalID:   externalID,
		URL:          u,
		Title:        title,
		OfferType:    offerType,
		PropertyType: propertyType,
		Price:        price,
		AreaBuiltUp:  area,
		LocationText: a.findLocation(doc, headings, title),
		Description:  a.findDescription(doc),
		PhotoURLs:    a.findPhotos(doc),
	}
	return rec, nil
}

// findLocation takes the first short heading after the deal heading
// that is neither a price nor another deal line.
func (a *lexamoAdapter) findLocation(doc *goquery.Document, headings []string, title string) string {
	for i, h := range headings {
		if h != title {
			continue
		}
		for j := i + 1; j < i+4 && j < len(headings); j++ {
			loc := headings[j]
			if loc != "" && !strings.Contains(loc, "Kč") && len([]rune(loc)) < 80 && !lexamoDealRe.MatchString(loc) {
				return loc
			}
		}
		break
	}

	found := ""
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		if n := len([]rune(text)); n > 2 && n < 60 && lexamoPlaceRe.MatchString(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

func (a *lexamoAdapter) findDescription(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if text := CollapseWhitespace(p.Text()); len([]rune(text)) > 80 {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 8
	})
	return strings.Join(paragraphs, "\n\n")
}

func (a *lexamoAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	doc.Find("img[src*='website-files.com']").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		lower := strings.ToLower(src)
		if src == "" || seen[src] || strings.HasSuffix(lower, ".svg") ||
			strings.Contains(lower, "icon") || strings.Contains(lower, "logo") {
			return true
		}
		seen[src] = true
		photos = append(photos, src)
		return len(photos) < 20
	})
	return photos
}

// lexamoNumber strips everything but digits; Webflow renders "2.059"
// for 2059 m².
func lexamoNumber(s string) *float64 {
	clean := lexamoNonDigitRe.ReplaceAllString(s, "")
	if clean == "" {
		return nil
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	return &v
}
