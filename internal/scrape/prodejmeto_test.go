package scrape

import (
	"testing"
)

func TestProdejmetoParseFragment(t *testing.T) {
	t.Parallel()

	a := newProdejmeTo(Options{})

	fragment := `
	<div class="project-item">
		<h3 class="title"><a href="https://www.prodejme.to/nemovitosti/rodinny-dum-znojmo">Rodinný dům Znojmo</a></h3>
		<div class="badge">Novinka</div>
		<div class="project-content"><span>4 250 000 Kč</span></div>
	</div>
	<div class="project-item">
		<h3 class="title"><a href="https://www.prodejme.to/nemovitosti/byt-pronajem">Pronájem bytu</a></h3>
		<div class="badge">Pronájem</div>
		<div class="project-content"><span>12 000 Kč/měs</span></div>
	</div>
	<div class="project-item">
		<h3 class="title"><a href="https://www.prodejme.to/nemovitosti/prodany-dum">Prodaný dům</a></h3>
		<div class="badge">Prodáno</div>
	</div>`

	seen := map[string]bool{}
	items := a.parseFragment(fragment, seen)
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}

	first := items[0]
	if first.externalID != "rodinny-dum-znojmo" {
		t.Errorf("externalID = %q", first.externalID)
	}
	if first.title != "Rodinný dům Znojmo" || first.offerType != "Prodej" {
		t.Errorf("item = %+v", first)
	}
	if first.priceText != "4 250 000 Kč" {
		t.Errorf("priceText = %q", first.priceText)
	}

	if items[1].offerType != "Pronájem" {
		t.Errorf("rent badge ignored: %+v", items[1])
	}

	// A second pass over the same fragment yields nothing new.
	if again := a.parseFragment(fragment, seen); len(again) != 0 {
		t.Errorf("dedup failed: %+v", again)
	}
}

func TestLastPathSegment(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"https://www.prodejme.to/nemovitosti/rodinny-dum-znojmo", "rodinny-dum-znojmo"},
		{"https://example.com/a/b/", "b"},
		{"/jen-cesta", "jen-cesta"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastPathSegment(tt.in); got != tt.want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
