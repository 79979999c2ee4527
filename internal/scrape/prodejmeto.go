package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/models"
)

const (
	prodejmetoBaseURL  = "https://www.prodejme.to"
	prodejmetoListURL  = prodejmetoBaseURL + "/nabidky/"
	prodejmetoAjaxURL  = prodejmetoBaseURL + "/nabidky/ajax/"
	prodejmetoPageSize = 9
)

var prodejmetoAjaxHeaders = map[string]string{
	"Accept":           "application/json, text/javascript, */*; q=0.01",
	"Accept-Language":  "cs-CZ,cs;q=0.9",
	"Referer":          prodejmetoListURL,
	"X-Requested-With": "XMLHttpRequest",
}

var prodejmetoSoldBadges = map[string]bool{
	"Prodáno":   true,
	"Prodano":   true,
	"Pronajato": true,
}

// Param labels appear with and without diacritics depending on the
// template; both spellings collapse to one canonical key.
var prodejmetoLabels = map[string]string{
	"cena":             "Cena",
	"lokalita":         "Lokalita",
	"lokalita obec":    "Lokalita obec",
	"lokalita kraj":    "Lokalita kraj",
	"typ nabidky":      "Typ nabidky",
	"typ nabídky":      "Typ nabidky",
	"uzitna plocha":    "Uzitna plocha",
	"užitná plocha":    "Uzitna plocha",
	"velikost":         "Velikost",
	"velikost pozemku": "Velikost pozemku",
	"typ":              "Typ",
	"druh objektu":     "Druh objektu",
	"typ objektu":      "Typ objektu",
}

type prodejmeToAdapter struct {
	base
}

func newProdejmeTo(opts Options) *prodejmeToAdapter {
	return &prodejmeToAdapter{base: newBase("PRODEJMETO", opts)}
}

type prodejmetoAjaxPage struct {
	Count int    `json:"count"`
	HTML  string `json:"html"`
}

type prodejmetoItem struct {
	externalID string
	detailURL  string
	title      string
	priceText  string
	offerType  string
}

func (a *prodejmeToAdapter) Run(ctx context.Context, fullRescan bool) (int, error) {
	m := newRunMetrics(a.code)
	defer m.logSummary()

	first, err := a.fetchAjaxPage(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch listing page 1: %w", err)
	}
	m.page()

	totalPages := (first.Count + prodejmetoPageSize - 1) / prodejmetoPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if totalPages > 100 {
		totalPages = 100
	}

	seen := map[string]bool{}
	items := a.parseFragment(first.HTML, seen)
	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			return m.savedCount(), ctx.Err()
		}
		pause(ctx, 300*time.Millisecond)
		resp, err := a.fetchAjaxPage(ctx, page)
		if err != nil {
			return m.savedCount(), fmt.Errorf("failed to fetch listing page %d: %w", page, err)
		}
		m.page()
		items = append(items, a.parseFragment(resp.HTML, seen)...)
	}

	byURL := make(map[string]prodejmetoItem, len(items))
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
	return m.savedCount(), nil
}

func (a *prodejmeToAdapter) fetchAjaxPage(ctx context.Context, page int) (*prodejmetoAjaxPage, error) {
	form := url.Values{
		"page": {strconv.Itoa(page)},
		"sold": {"0"},
	}
	data, err := a.opts.Client.PostForm(ctx, prodejmetoAjaxURL, form, prodejmetoAjaxHeaders)
	if err != nil {
		return nil, err
	}
	var resp prodejmetoAjaxPage
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ajax response: %w", err)
	}
	return &resp, nil
}

func (a *prodejmeToAdapter) parseFragment(fragment string, seen map[string]bool) []prodejmetoItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var items []prodejmetoItem
	doc.Find("div.project-item").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("h3.title a, h2.title a").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		slug := lastPathSegment(href)
		if slug == "" || seen[slug] {
			return
		}

		var badges []string
		card.Find("div.badge, span.badge").Each(func(_ int, b *goquery.Selection) {
			if text := strings.TrimSpace(b.Text()); text != "" {
				badges = append(badges, text)
			}
		})
		for _, b := range badges {
			if prodejmetoSoldBadges[b] {
				return
			}
		}

		offerType := "Prodej"
		if NormalizeOfferType(strings.Join(badges, " ")) == models.OfferRent {
			offerType = "Pronájem"
		}

		seen[slug] = true
		items = append(items, prodejmetoItem{
			externalID: slug,
			detailURL:  AbsURL(prodejmetoBaseURL, href),
			title:      truncate(CollapseWhitespace(link.Text()), 200),
			priceText:  strings.TrimSpace(card.Find("div.project-content span").First().Text()),
			offerType:  offerType,
		})
	})
	return items
}

func (a *prodejmeToAdapter) scrapeDetail(ctx context.Context, item prodejmetoItem) (*models.ScrapedListing, error) {
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
		OfferType:  item.offerType,
	}

	title := CollapseWhitespace(doc.Find("h1").First().Text())
	if title == "" {
		// The detail template uses h2 for the main heading.
		title = CollapseWhitespace(doc.Find("h2").First().Text())
	}
	if title == "" {
		title = item.title
	}
	rec.Title = truncate(title, 200)

	params := a.parseParams(doc)
	if v := params["Typ nabidky"]; v != "" {
		if NormalizeOfferType(v) == models.OfferRent {
			rec.OfferType = "Pronájem"
		} else {
			rec.OfferType = "Prodej"
		}
	}
	rec.PropertyType = InferPropertyType(params["Typ"], params["Druh objektu"], params["Typ objektu"], rec.Title)

	priceText := params["Cena"]
	if priceText == "" {
		priceText = item.priceText
	}
	rec.Price = ParsePrice(priceText)

	builtUp := params["Uzitna plocha"]
	if builtUp == "" {
		builtUp = params["Velikost"]
	}
	rec.AreaBuiltUp = ParseArea(builtUp)
	rec.AreaLand = ParseArea(params["Velikost pozemku"])

	location := params["Lokalita"]
	if location == "" {
		location = params["Lokalita obec"]
	}
	if location == "" {
		location = params["Lokalita kraj"]
	}
	rec.LocationText = location

	rec.Description = a.findDescription(doc)
	rec.PhotoURLs = a.findPhotos(doc)
	return rec, nil
}

func (a *prodejmeToAdapter) parseParams(doc *goquery.Document) map[string]string {
	params := map[string]string{}
	put := func(label, value string) {
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)
		if label == "" || value == "" {
			return
		}
		if canonical, ok := prodejmetoLabels[strings.ToLower(strings.TrimSuffix(label, ":"))]; ok {
			label = canonical
		}
		params[label] = value
	}

	doc.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		text := CollapseWhitespace(li.Text())
		if label, value, ok := strings.Cut(text, ":"); ok {
			put(label, value)
		}
		spans := li.Find("span")
		if spans.Length() >= 2 {
			put(CollapseWhitespace(spans.Eq(0).Text()), CollapseWhitespace(spans.Eq(1).Text()))
		}
	})
	doc.Find(".param, .params li").Each(func(_ int, li *goquery.Selection) {
		text := CollapseWhitespace(li.Text())
		if label, value, ok := strings.Cut(text, ":"); ok {
			put(label, value)
		}
	})
	return params
}

func (a *prodejmeToAdapter) findDescription(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := CollapseWhitespace(p.Text())
		if len([]rune(text)) > 40 {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 5
	})
	return truncate(strings.Join(paragraphs, "\n\n"), 5000)
}

func (a *prodejmeToAdapter) findPhotos(doc *goquery.Document) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(raw string) {
		if raw == "" {
			return
		}
		abs := AbsURL(prodejmetoBaseURL, raw)
		if !seen[abs] {
			seen[abs] = true
			photos = append(photos, abs)
		}
	}
	doc.Find("a[href*='/upload/']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		add(href)
	})
	doc.Find("img[src*='/upload/']").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src)
	})
	if len(photos) > 20 {
		photos = photos[:20]
	}
	return photos
}

func lastPathSegment(href string) string {
	trimmed := strings.TrimRight(href, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}
