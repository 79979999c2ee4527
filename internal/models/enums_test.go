package models

import "testing"

func TestCanonicalPropertyType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Dům", PropertyHouse},
		{"Byt", PropertyApartment},
		{"Pozemek", PropertyLand},
		{"Chata", PropertyCottage},
		{"Komerční", PropertyCommercial},
		{"Průmyslový", PropertyIndustrial},
		{"Garáž", PropertyGarage},
		{"Ostatní", PropertyOther},
		{"House", PropertyHouse},
		{"Apartment", PropertyApartment},
		{"", PropertyOther},
		{"Zámek", PropertyOther},
	}
	for _, c := range cases {
		if got := CanonicalPropertyType(c.in); got != c.want {
			t.Errorf("CanonicalPropertyType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalOfferType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Prodej", OfferSale},
		{"Pronájem", OfferRent},
		{"Dražba", OfferAuction},
		{"Sale", OfferSale},
		{"Rent", OfferRent},
		{"", OfferSale},
		{"výměna", OfferSale},
	}
	for _, c := range cases {
		if got := CanonicalOfferType(c.in); got != c.want {
			t.Errorf("CanonicalOfferType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
