package scrape

import (
	"testing"
)

func TestZnojmoRealityParseIndex(t *testing.T) {
	t.Parallel()

	a := newZnojmoReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div class="polozka">
			<h2>Prodej rodinného domu</h2>
			<a href="/prodej-rodinneho-domu-znojmo-1234">detail</a>
			<span>2 990 000 Kč</span>
		</div>
		<div class="polozka">
			<a href="https://jina-domena.cz/prodej-55">cizí</a>
		</div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	items := a.parseIndex(doc, "Dům")
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	it := items[0]
	if it.externalID != "1234" {
		t.Errorf("externalID = %q", it.externalID)
	}
	if it.detailURL != "https://www.znojmoreality.cz/prodej-rodinneho-domu-znojmo-1234" {
		t.Errorf("detailURL = %q", it.detailURL)
	}
	if it.title != "Prodej rodinného domu" {
		t.Errorf("title = %q", it.title)
	}
	if it.priceText != "2 990 000 Kč" {
		t.Errorf("priceText = %q", it.priceText)
	}
	if it.propertyType != "Dům" {
		t.Errorf("propertyType = %q", it.propertyType)
	}
}

func TestZnojmoRealityParseIndexLinkFallback(t *testing.T) {
	t.Parallel()

	a := newZnojmoReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div><a href="/pronajem-bytu-znojmo-77">Pronájem bytu 2+kk</a></div>
		<div><a href="/o-nas">O nás</a></div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	items := a.parseIndex(doc, "Byt")
	if len(items) != 1 || items[0].externalID != "77" || items[0].title != "Pronájem bytu 2+kk" {
		t.Fatalf("items = %+v", items)
	}
}

func TestPriceFromJSONLD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payloads []map[string]interface{}
		want     string
	}{
		{
			name: "offers object with numeric price",
			payloads: []map[string]interface{}{
				{"offers": map[string]interface{}{"price": 2990000.0}},
			},
			want: "2990000",
		},
		{
			name: "offers list with priceSpecification",
			payloads: []map[string]interface{}{
				{"offers": []interface{}{
					map[string]interface{}{"priceSpecification": map[string]interface{}{"price": "2990000"}},
				}},
			},
			want: "2990000",
		},
		{
			name:     "no offers",
			payloads: []map[string]interface{}{{"name": "x"}},
			want:     "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := priceFromJSONLD(tt.payloads); got != tt.want {
				t.Errorf("priceFromJSONLD = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocationFromJSONLD(t *testing.T) {
	t.Parallel()

	payloads := []map[string]interface{}{
		{"name": "bez adresy"},
		{"address": map[string]interface{}{
			"streetAddress":   "Horní náměstí 1",
			"addressLocality": "Znojmo",
			"addressRegion":   "Jihomoravský kraj",
		}},
	}
	want := "Horní náměstí 1, Znojmo, Jihomoravský kraj"
	if got := locationFromJSONLD(payloads); got != want {
		t.Errorf("locationFromJSONLD = %q, want %q", got, want)
	}

	if got := locationFromJSONLD(nil); got != "" {
		t.Errorf("locationFromJSONLD(nil) = %q", got)
	}
}

func TestZnojmoRealityParseJSONLD(t *testing.T) {
	t.Parallel()

	a := newZnojmoReality(Options{})

	doc, err := parseHTML([]byte(`<html><head>
		<script type="application/ld+json">{"@type":"Product","name":"Dům"}</script>
		<script type="application/ld+json">[{"@type":"Offer"},{"@type":"Place"}]</script>
	</head><body></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	payloads := a.parseJSONLD(doc)
	if len(payloads) != 3 {
		t.Fatalf("payloads = %d, want 3", len(payloads))
	}
	if payloads[0]["name"] != "Dům" {
		t.Errorf("payloads[0] = %v", payloads[0])
	}
}
