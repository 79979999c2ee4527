package scrape

import (
	"testing"
)

func TestIdnesSubSitemapFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		loc  string
		want bool
	}{
		{"https://reality.idnes.cz/sitemap/nemovitosti1.xml.gz", true},
		{"https://reality.idnes.cz/sitemap/nemovitosti12.xml.gz", true},
		{"https://reality.idnes.cz/sitemap/nemovitosti.xml.gz", true},
		{"https://reality.idnes.cz/sitemap/nemovitosti-hledani.xml.gz", false},
		{"https://reality.idnes.cz/sitemap/clanky1.xml.gz", false},
		{"https://reality.idnes.cz/sitemap/nemovitosti1.xml", false},
	}

	for _, tt := range tests {
		if got := idnesSubSitemapRe.MatchString(tt.loc); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestIdnesPropertyTypeFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://reality.idnes.cz/detail/prodej/dum/znojmo/abc123/", "House"},
		{"https://reality.idnes.cz/detail/prodej/byt/znojmo-centrum/def456/", "Apartment"},
		{"https://reality.idnes.cz/detail/prodej/pozemek/hodonice/ghi789/", "Land"},
		{"https://reality.idnes.cz/detail/prodej/chata/vranov-nad-dyji/jkl/", "Cottage"},
		{"https://reality.idnes.cz/detail/pronajem/komercni-objekt/znojmo/mno/", "Commercial"},
		{"https://reality.idnes.cz/detail/prodej/garaz/znojmo/pqr/", "Garage"},
		{"https://reality.idnes.cz/detail/prodej/neco-jineho/znojmo/stu/", "Other"},
	}

	for _, tt := range tests {
		if got := idnesPropertyTypeFromURL(tt.url); got != tt.want {
			t.Errorf("idnesPropertyTypeFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIdnesFindPrice(t *testing.T) {
	t.Parallel()

	a := newIdnes(Options{})

	tests := []struct {
		name string
		html string
		want float64 // 0 means nil expected
	}{
		{
			name: "detail price block",
			html: `<div class="b-detail__price">4 590 000 Kč</div>`,
			want: 4590000,
		},
		{
			name: "nbsp separated digits",
			html: "<div class=\"cena\">2 350 000 Kč</div>",
			want: 2350000,
		},
		{
			name: "price on request",
			html: `<div class="b-detail__price">Cena na vyžádání</div>`,
			want: 0,
		},
		{
			name: "out of range",
			html: `<div class="b-detail__price">1 Kč</div>`,
			want: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := parseHTML([]byte("<html><body>" + tt.html + "</body></html>"))
			if err != nil {
				t.Fatal(err)
			}
			got := a.findPrice(doc)
			if tt.want == 0 {
				if got != nil {
					t.Errorf("findPrice = %v, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("findPrice = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdnesFindLocationFallsBackToURLSlug(t *testing.T) {
	t.Parallel()

	a := newIdnes(Options{})
	doc, err := parseHTML([]byte(`<html><body><h1>Prodej domu</h1></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	got := a.findLocation(doc, "https://reality.idnes.cz/detail/prodej/dum/znojmo-pribenice/abc123/")
	if got != "Znojmo Pribenice" {
		t.Errorf("findLocation = %q", got)
	}
}

func TestIdnesFindPhotosOGImageFallback(t *testing.T) {
	t.Parallel()

	a := newIdnes(Options{})
	doc, err := parseHTML([]byte(`<html><head>
		<meta property="og:image" content="https://img.idnes.cz/foto/1.jpg">
		<meta property="og:image" content="https://img.idnes.cz/foto/1.jpg">
		<meta property="og:image" content="relative/2.jpg">
	</head><body></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	photos := a.findPhotos(doc)
	if len(photos) != 1 || photos[0] != "https://img.idnes.cz/foto/1.jpg" {
		t.Errorf("photos = %v", photos)
	}
}

func TestIdnesFindAreaPrefersParamRow(t *testing.T) {
	t.Parallel()

	a := newIdnes(Options{})
	doc, err := parseHTML([]byte(`<html><body>
		<div class="b-detail__param">Plocha pozemku: 824 m²</div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	area := a.findArea(doc, "Prodej domu 120 m²")
	if area == nil || *area != 824 {
		t.Errorf("area = %v, want 824", area)
	}

	empty, err := parseHTML([]byte(`<html><body></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	fromTitle := a.findArea(empty, "Prodej domu 120 m²")
	if fromTitle == nil || *fromTitle != 120 {
		t.Errorf("area from title = %v, want 120", fromTitle)
	}
}
