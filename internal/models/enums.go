package models

// Canonical property types.
const (
	PropertyHouse      = "House"
	PropertyApartment  = "Apartment"
	PropertyLand       = "Land"
	PropertyCottage    = "Cottage"
	PropertyCommercial = "Commercial"
	PropertyIndustrial = "Industrial"
	PropertyGarage     = "Garage"
	PropertyOther      = "Other"
)

// Canonical offer types.
const (
	OfferSale    = "Sale"
	OfferRent    = "Rent"
	OfferAuction = "Auction"
)

// Scrape job statuses. Progress is forward-only.
const (
	JobQueued    = "Queued"
	JobRunning   = "Running"
	JobSucceeded = "Succeeded"
	JobFailed    = "Failed"
)

// Cadastre fetch statuses. 'manual' marks a human override that bulk
// sweeps must never touch.
const (
	CadastreFound    = "found"
	CadastreNotFound = "not_found"
	CadastreError    = "error"
	CadastrePending  = "pending"
	CadastreManual   = "manual"
)

// Portal vocabulary (Czech) to canonical enums. Adapters emit whatever
// their source says; canonicalization happens at the store gateway and
// in the policy filter so both share one vocabulary.
var propertyTypeMap = map[string]string{
	"Dům":        PropertyHouse,
	"Byt":        PropertyApartment,
	"Pozemek":    PropertyLand,
	"Chata":      PropertyCottage,
	"Komerční":   PropertyCommercial,
	"Průmyslový": PropertyIndustrial,
	"Garáž":      PropertyGarage,
	"Ostatní":    PropertyOther,
}

var offerTypeMap = map[string]string{
	"Prodej":   OfferSale,
	"Pronájem": OfferRent,
	"Dražba":   OfferAuction,
}

var validPropertyTypes = map[string]bool{
	PropertyHouse:      true,
	PropertyApartment:  true,
	PropertyLand:       true,
	PropertyCottage:    true,
	PropertyCommercial: true,
	PropertyIndustrial: true,
	PropertyGarage:     true,
	PropertyOther:      true,
}

var validOfferTypes = map[string]bool{
	OfferSale:    true,
	OfferRent:    true,
	OfferAuction: true,
}

// CanonicalPropertyType maps a portal-supplied property type to the
// canonical enum. Already-canonical values pass through; anything
// unrecognized (or empty) becomes Other.
func CanonicalPropertyType(v string) string {
	if v == "" {
		return PropertyOther
	}
	if mapped, ok := propertyTypeMap[v]; ok {
		return mapped
	}
	if validPropertyTypes[v] {
		return v
	}
	return PropertyOther
}

// CanonicalOfferType maps a portal-supplied offer type to the canonical
// enum, defaulting to Sale.
func CanonicalOfferType(v string) string {
	if v == "" {
		return OfferSale
	}
	if mapped, ok := offerTypeMap[v]; ok {
		return mapped
	}
	if validOfferTypes[v] {
		return v
	}
	return OfferSale
}

// ValidJobStatus reports whether s is a known scrape job status.
func ValidJobStatus(s string) bool {
	switch s {
	case JobQueued, JobRunning, JobSucceeded, JobFailed:
		return true
	}
	return false
}
