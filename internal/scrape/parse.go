package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"realscan/internal/models"
)

var (
	digitRunRe = regexp.MustCompile(`\d+`)
	// \s in Go regexps is ASCII; the portals love non-breaking and
	// narrow spaces inside prices.
	whitespaceRe = regexp.MustCompile(`[\s\x{00a0}\x{202f}]+`)
)

// Czech number formatting uses spaces (often non-breaking) and dots
// as thousands separators.
var numberCleaner = strings.NewReplacer(" ", "", " ", "", " ", "", ".", "")

// ParsePrice extracts a price in CZK from a portal string.
// "3 500 000 Kč" parses to 3500000; text without digits ("cena
// dohodou", "") yields nil.
func ParsePrice(s string) *float64 {
	cleaned := numberCleaner.Replace(s)
	m := digitRunRe.FindString(cleaned)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseArea extracts the first area value in m² from a portal string.
// "161 m² / 750 m²" parses to 161, "750m2 pozemek" to 750; no digits
// yields nil.
func ParseArea(s string) *float64 {
	cleaned := numberCleaner.Replace(s)
	m := digitRunRe.FindString(cleaned)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// NormalizeOfferType maps free text to the canonical offer enum:
// anything mentioning a rental is Rent, everything else Sale.
func NormalizeOfferType(s string) string {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "pronaj") || strings.Contains(lower, "pronáj") {
		return models.OfferRent
	}
	return models.OfferSale
}

// InferPropertyType returns the portal-vocabulary (Czech) property
// type for the first candidate string that names one. Land keywords
// are checked before cottage keywords so "chalupa s pozemkem" counts
// as land. No match yields "Ostatní".
func InferPropertyType(candidates ...string) string {
	for _, c := range candidates {
		lower := strings.ToLower(c)
		switch {
		case strings.Contains(lower, "byt"):
			return "Byt"
		case containsAny(lower, "dům", "dum", "rodinn", "vila"):
			return "Dům"
		case containsAny(lower, "pozem", "parcel", "zahrad"):
			return "Pozemek"
		case containsAny(lower, "chat", "chalup", "rekrea"):
			return "Chata"
		case containsAny(lower, "garáž", "garaz"):
			return "Garáž"
		case containsAny(lower, "komerč", "komerc", "kancelář", "kancelar", "sklad"):
			return "Komerční"
		}
	}
	return "Ostatní"
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Towns and villages of the Znojmo district, for pulling a location
// out of free text when the portal has no structured field.
var znojmoTownRe = regexp.MustCompile(`(?i)(Znojmo|Hodonice|Tasovice|Dobšice|Suchohrdly|Nový Šaldorf|Šatov|Vranov nad Dyjí|Hnanice|Chvalovice|Hrušovany nad Jevišovkou|Jaroslavice|Miroslav|Moravský Krumlov|Božice|Citonice|Kravsko|Kuchařovice|Přímětice|Olbramovice|Prosiměřice|Únanov|Vrbovec|Blížkovice|Jevišovice|Štítary|Bítov|Šumná|Lechovice|Borotice|Mašovice|Pavlice)[^,.;\n]*`)

// LocationFromText finds the first Znojmo-district town mention and
// returns it with its trailing phrase, tidied and length-bounded.
// Empty when nothing plausible is found.
func LocationFromText(text string) string {
	loc := CollapseWhitespace(znojmoTownRe.FindString(text))
	runes := []rune(loc)
	if len(runes) < 3 {
		return ""
	}
	if len(runes) > 80 {
		runes = runes[:80]
	}
	return strings.TrimSpace(string(runes))
}

// CollapseWhitespace squeezes runs of whitespace (including nbsp) to
// single spaces and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// AbsURL resolves href against base. Unparseable input comes back
// unchanged.
func AbsURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
