package scrape

import (
	"testing"
)

func TestDeluxFindPrice(t *testing.T) {
	t.Parallel()

	a := newDeluxReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<p>Rezervační poplatek činí 5 000 Kč a je splatný do tří dnů od podpisu rezervační smlouvy.</p>
		<span>5 000 Kč</span>
		<h3>3 690 000 Kč</h3>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	// The long paragraph is skipped, the small fee fails the floor,
	// the heading carries the real price.
	if got := a.findPrice(doc); !floatPtrEq(got, f(3690000)) {
		t.Errorf("findPrice = %v", fv(got))
	}
}

func TestDeluxFindAreaHeading(t *testing.T) {
	t.Parallel()

	a := newDeluxReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<div><h3>Plocha</h3><div>175 m²</div></div>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.findArea(doc); !floatPtrEq(got, f(175)) {
		t.Errorf("findArea = %v", fv(got))
	}
}

func TestDeluxFindAreaLabelledLine(t *testing.T) {
	t.Parallel()

	a := newDeluxReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<li>užitná plocha: 120,5 m²</li>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.findArea(doc); !floatPtrEq(got, f(120.5)) {
		t.Errorf("findArea = %v", fv(got))
	}
}

func TestDeluxFindAreaBareToken(t *testing.T) {
	t.Parallel()

	a := newDeluxReality(Options{})

	doc, err := parseHTML([]byte(`<html><body>
		<span>5 m²</span>
		<span>85 m²</span>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	// Single digits fail the bare-token pattern; 85 is in range.
	if got := a.findArea(doc); !floatPtrEq(got, f(85)) {
		t.Errorf("findArea = %v", fv(got))
	}
}

func TestDeluxFindDescription(t *testing.T) {
	t.Parallel()

	a := newDeluxReality(Options{})

	long := "Nabízíme ke koupi rodinný dům po kompletní rekonstrukci v klidné části obce, s prostornou zahradou a garáží."
	doc, err := parseHTML([]byte(`<html><body>
		<p>Krátký odstavec.</p>
		<p>` + long + `</p>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.findDescription(doc); got != long {
		t.Errorf("findDescription = %q", got)
	}
}
