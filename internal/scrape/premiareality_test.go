package scrape

import (
	"testing"
)

func TestPremiaParseList(t *testing.T) {
	t.Parallel()

	a := newPremiaReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div>
			<a href="/domy/prodej-rodinneho-domu-znojmo-482.html">Prodej rodinného domu Znojmo</a>
		</div>
		<div>
			<a href="/domy/prodej-rodinneho-domu-znojmo-482.html">duplikát</a>
		</div>
		<article>
			<h3>Prodej chalupy Vranov</h3>
			<a href="/rekreace/prodej-chalupy-vranov-519.html">více</a>
		</article>
		<a href="/domy/seznam.html">Domy</a>
		<a href="https://jina-domena.cz/dum-99.html">externí</a>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	items := a.parseList(doc, "Dům")
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].url != "https://www.premiareality.cz/domy/prodej-rodinneho-domu-znojmo-482.html" {
		t.Errorf("url = %q", items[0].url)
	}
	if items[0].title != "Prodej rodinného domu Znojmo" {
		t.Errorf("title = %q", items[0].title)
	}
	// Short link text falls back to the enclosing block's heading.
	if items[1].title != "Prodej chalupy Vranov" {
		t.Errorf("fallback title = %q", items[1].title)
	}
}

func TestPremiaPropertyType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		fallback string
		want     string
	}{
		{"Byt 3+1", "", "Byt"},
		{"Rodinný dům", "", "Dům"},
		{"chalupa", "", "Dům"},
		{"Stavební parcela", "", "Pozemek"},
		{"Garáž", "", "Garáž"},
		{"Vinný sklep", "", "Ostatní"},
		{"", "Pozemek", "Pozemek"},
		{"", "", "Ostatní"},
	}

	for _, tt := range tests {
		if got := premiaPropertyType(tt.raw, tt.fallback); got != tt.want {
			t.Errorf("premiaPropertyType(%q, %q) = %q, want %q", tt.raw, tt.fallback, got, tt.want)
		}
	}
}

func TestPremiaParseParamsTable(t *testing.T) {
	t.Parallel()

	a := newPremiaReality(Options{})
	doc, err := parseHTML([]byte(`<html><body><table>
		<tr><td>Cena:</td><td>3 450 000 Kč</td></tr>
		<tr><td>Město</td><td>Znojmo</td></tr>
		<tr><td>Užitná plocha:</td><td>142 m²</td></tr>
		<tr><td>jen jedna buňka</td></tr>
	</table></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	params := a.parseParamsTable(doc)
	if params["cena"] != "3 450 000 Kč" {
		t.Errorf("cena = %q", params["cena"])
	}
	if params["město"] != "Znojmo" {
		t.Errorf("město = %q", params["město"])
	}
	if params["užitná plocha"] != "142 m²" {
		t.Errorf("užitná plocha = %q", params["užitná plocha"])
	}
	if len(params) != 3 {
		t.Errorf("params = %v", params)
	}
}

func TestPremiaFindLocation(t *testing.T) {
	t.Parallel()

	a := newPremiaReality(Options{})
	empty, err := parseHTML([]byte(`<html><body></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{"street and town", map[string]string{"ulice": "Kovářská", "město": "Znojmo"}, "Kovářská, Znojmo"},
		{"town only", map[string]string{"město": "Hodonice"}, "Hodonice"},
		{"street only", map[string]string{"ulice": "Vídeňská"}, "Vídeňská"},
		{"nothing", map[string]string{}, "Znojmo a okolí"},
	}

	for _, tt := range tests {
		if got := a.findLocation(empty, tt.params); got != tt.want {
			t.Errorf("%s: findLocation = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPremiaFindPhotosRewritesThumbs(t *testing.T) {
	t.Parallel()

	a := newPremiaReality(Options{})
	doc, err := parseHTML([]byte(`<html><body>
		<div class="carousel-detail">
			<a href="/importestate/foto/thumbs_800_600/dum-1.jpg"><img src="/importestate/foto/thumbs_200_150/dum-1.jpg"></a>
			<img src="/importestate/foto/thumbs_200_150/dum-2.jpg">
		</div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	photos := a.findPhotos(doc)
	want := []string{
		"https://www.premiareality.cz/importestate/foto/dum-1.jpg",
		"https://www.premiareality.cz/importestate/foto/dum-2.jpg",
	}
	if len(photos) != len(want) {
		t.Fatalf("photos = %v", photos)
	}
	for i := range want {
		if photos[i] != want[i] {
			t.Errorf("photos[%d] = %q, want %q", i, photos[i], want[i])
		}
	}
}
