package scrape

import (
	"strings"
	"testing"

	"realscan/internal/models"
)

func TestRemaxFindAreas(t *testing.T) {
	t.Parallel()

	a := newRemax(Options{})

	tests := []struct {
		name     string
		text     string
		builtUp  *float64
		landArea *float64
	}{
		{
			name:    "built-up only",
			text:    "Prodej domu 161 m² se zahradou",
			builtUp: f(161),
		},
		{
			name:     "land keyword before figure",
			text:     "Prodej pozemku o výměře pozemek 750 m²",
			landArea: f(750),
		},
		{
			name:     "both areas",
			text:     "Dům 161 m², plocha parcely 750 m²",
			builtUp:  f(161),
			landArea: f(750),
		},
		{
			name: "no areas",
			text: "Prodej bytu bez výměry",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &models.ScrapedListing{}
			a.findAreas(tt.text, rec)
			if !floatPtrEq(rec.AreaBuiltUp, tt.builtUp) {
				t.Errorf("AreaBuiltUp = %v, want %v", fv(rec.AreaBuiltUp), fv(tt.builtUp))
			}
			if !floatPtrEq(rec.AreaLand, tt.landArea) {
				t.Errorf("AreaLand = %v, want %v", fv(rec.AreaLand), fv(tt.landArea))
			}
		})
	}
}

func TestRemaxFindLocation(t *testing.T) {
	t.Parallel()

	a := newRemax(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div class="property-location-box">Znojmo, Jihomoravský kraj</div>
		<p>Prodej domu</p>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.findLocation(doc, ""); got != "Znojmo, Jihomoravský kraj" {
		t.Errorf("findLocation = %q", got)
	}

	// Nothing in the markup, fall through to the URL slug.
	doc, err = parseHTML([]byte(`<html><body><p>Dům v Praze</p></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	got := a.findLocation(doc, "https://www.remax-czech.cz/reality/detail/12345/prodej-domu-hodonice/")
	if got != "prodej domu hodonice" {
		t.Errorf("findLocation from slug = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("krátký", 200); got != "krátký" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("ř", 250)
	if got := truncate(long, 200); len([]rune(got)) != 200 {
		t.Errorf("truncate long kept %d runes", len([]rune(got)))
	}
}
