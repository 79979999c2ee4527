package scrape

import (
	"testing"

	"realscan/internal/models"
)

func TestHVParseList(t *testing.T) {
	t.Parallel()

	a := newHVReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<article class="hentry">
			<h2 class="entry-title"><a href="https://hvreality.cz/nemovitost/prodej-domu-znojmo/">Prodej domu Znojmo</a></h2>
		</article>
		<article class="hentry">
			<h2 class="entry-title"><a href="https://hvreality.cz/category/domy/">Domy</a></h2>
		</article>
		<a class="next page-numbers" href="https://hvreality.cz/prodej-nemovitosti/page/2/">Další</a>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	items, next := a.parseList(doc, "https://hvreality.cz/prodej-nemovitosti/")
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].url != "https://hvreality.cz/nemovitost/prodej-domu-znojmo/" || items[0].title != "Prodej domu Znojmo" {
		t.Errorf("item = %+v", items[0])
	}
	if next != "https://hvreality.cz/prodej-nemovitosti/page/2/" {
		t.Errorf("next = %q", next)
	}
}

func TestHVParseListElementorFallback(t *testing.T) {
	t.Parallel()

	a := newHVReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div class="elementor-post__title"><a href="/nemovitost/chata-vranov/">Chata Vranov</a></div>
		<div class="elementor-post__title"><a href="#galerie">kotva</a></div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	items, next := a.parseList(doc, "https://hvreality.cz/prodej-nemovitosti/")
	if len(items) != 1 || items[0].url != "https://hvreality.cz/nemovitost/chata-vranov/" {
		t.Fatalf("items = %+v", items)
	}
	if next != "" {
		t.Errorf("next = %q", next)
	}
}

func TestHVApplyRows(t *testing.T) {
	t.Parallel()

	a := newHVReality(Options{})

	doc, err := parseHTML([]byte(`<html><body><ul>
		<li>Užitná plocha: 120 m²</li>
		<li>Plocha pozemku: 750 m2</li>
		<li>Lokalita: znojmo, přímětice</li>
	</ul></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	rec := &models.ScrapedListing{}
	a.applyRows(doc, rec)

	if !floatPtrEq(rec.AreaBuiltUp, f(120)) {
		t.Errorf("AreaBuiltUp = %v", fv(rec.AreaBuiltUp))
	}
	if !floatPtrEq(rec.AreaLand, f(750)) {
		t.Errorf("AreaLand = %v", fv(rec.AreaLand))
	}
	if rec.LocationText != "Znojmo, Přímětice" {
		t.Errorf("LocationText = %q", rec.LocationText)
	}
}

func TestHVFindPhotos(t *testing.T) {
	t.Parallel()

	a := newHVReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div class="gallery">
			<img src="https://hvreality.cz/wp-content/uploads/2024/03/dum-300x200.jpg">
			<img src="https://hvreality.cz/wp-content/uploads/2024/03/dum.jpg">
			<img src="https://hvreality.cz/wp-content/uploads/icon.svg">
			<img data-src="/wp-content/uploads/2024/03/zahrada-1024x768.jpeg">
		</div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	got := a.findPhotos(doc)
	want := []string{
		"https://hvreality.cz/wp-content/uploads/2024/03/dum.jpg",
		"https://hvreality.cz/wp-content/uploads/2024/03/zahrada.jpeg",
	}
	if len(got) != len(want) {
		t.Fatalf("photos = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("photos[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
