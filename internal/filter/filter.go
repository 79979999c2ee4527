// Package filter decides which scraped records are worth storing.
// Policy lives in the config document; the filter itself is immutable
// once built and safe for concurrent use.
package filter

import (
	"fmt"
	"strings"

	"realscan/internal/config"
	"realscan/internal/models"
)

// Stanza lookup is by canonical property type; the document uses
// plural section names.
var stanzaKeys = map[string]string{
	models.PropertyHouse:      "houses",
	models.PropertyApartment:  "apartments",
	models.PropertyLand:       "lands",
	models.PropertyCottage:    "cottages",
	models.PropertyCommercial: "commercial",
	models.PropertyIndustrial: "industrial",
	models.PropertyGarage:     "garages",
	models.PropertyOther:      "other",
}

// Filter is the admission policy applied to every scraped record
// before it reaches the store.
type Filter struct {
	quality   config.QualityFilters
	districts []string
	stanzas   map[string]config.TypeFilter
}

// New builds a filter from the config document. An absent
// quality_filters section and an empty search_filters section both
// fall back to the stock policy; a present-but-partial section is
// taken literally.
func New(cfg *config.Config) *Filter {
	f := &Filter{stanzas: map[string]config.TypeFilter{}}

	if cfg != nil && cfg.QualityFilters != nil {
		f.quality = *cfg.QualityFilters
	} else {
		f.quality = config.QualityFilters{
			RequirePhotos:   true,
			MinPhotos:       1,
			RequirePrice:    true,
			RequireLocation: true,
		}
	}

	var search config.SearchFilters
	if cfg != nil {
		search = cfg.SearchFilters
	}
	if len(search.TargetDistricts) == 0 && len(search.Types) == 0 {
		search = defaultSearchFilters()
	}
	for _, d := range search.TargetDistricts {
		f.districts = append(f.districts, strings.ToLower(d))
	}
	for key, stanza := range search.Types {
		f.stanzas[key] = stanza
	}
	return f
}

func defaultSearchFilters() config.SearchFilters {
	sale := []string{models.OfferSale}
	houseCap := 8_500_000.0
	landCap := 2_000_000.0
	return config.SearchFilters{
		TargetDistricts: []string{"Znojmo"},
		Types: map[string]config.TypeFilter{
			"houses": {OfferTypes: sale, MaxPrice: &houseCap},
			"lands":  {OfferTypes: sale, MaxPrice: &landCap},
		},
	}
}

// ShouldInclude reports whether the record passes the policy. The
// reason is empty on accept and a single human-readable line on
// reject.
func (f *Filter) ShouldInclude(rec *models.ScrapedListing) (bool, string) {
	if ok, reason := f.checkQuality(rec); !ok {
		return false, reason
	}
	if ok, reason := f.checkDistrict(rec); !ok {
		return false, reason
	}
	return f.checkTypeStanza(rec)
}

func (f *Filter) checkQuality(rec *models.ScrapedListing) (bool, string) {
	if f.quality.RequirePhotos {
		minPhotos := f.quality.MinPhotos
		if minPhotos < 1 {
			minPhotos = 1
		}
		if len(rec.PhotoURLs) < minPhotos {
			return false, fmt.Sprintf("too few photos (%d < %d)", len(rec.PhotoURLs), minPhotos)
		}
	}
	if f.quality.RequirePrice && rec.Price == nil {
		return false, "missing price"
	}
	if f.quality.RequireLocation && strings.TrimSpace(rec.LocationText) == "" {
		return false, "missing location"
	}
	if f.quality.RequireDescription {
		if n := len(strings.TrimSpace(rec.Description)); n < f.quality.MinDescriptionLength {
			return false, fmt.Sprintf("description too short (%d < %d)", n, f.quality.MinDescriptionLength)
		}
	}
	return true, ""
}

func (f *Filter) checkDistrict(rec *models.ScrapedListing) (bool, string) {
	if len(f.districts) == 0 {
		return true, ""
	}
	loc := strings.ToLower(rec.LocationText)
	for _, d := range f.districts {
		if strings.Contains(loc, d) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("location %q outside target districts", rec.LocationText)
}

func (f *Filter) checkTypeStanza(rec *models.ScrapedListing) (bool, string) {
	propertyType := models.CanonicalPropertyType(rec.PropertyType)
	stanza, ok := f.stanzas[stanzaKeys[propertyType]]
	if !ok {
		// No stanza means no policy for this type.
		return true, ""
	}
	if stanza.Enabled != nil && !*stanza.Enabled {
		return false, fmt.Sprintf("type %s is disabled", propertyType)
	}
	if len(stanza.OfferTypes) > 0 {
		offerType := models.CanonicalOfferType(rec.OfferType)
		if !containsString(stanza.OfferTypes, offerType) {
			return false, fmt.Sprintf("offer type %s not allowed for %s", offerType, propertyType)
		}
	}
	if rec.Price != nil {
		if stanza.MinPrice != nil && *rec.Price < *stanza.MinPrice {
			return false, fmt.Sprintf("price %.0f below minimum %.0f", *rec.Price, *stanza.MinPrice)
		}
		if stanza.MaxPrice != nil && *rec.Price > *stanza.MaxPrice {
			return false, fmt.Sprintf("price %.0f above maximum %.0f", *rec.Price, *stanza.MaxPrice)
		}
	}
	return true, ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
