package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Listing represents the 'listings' table: one normalized property
// record deduplicated by (source_id, external_id).
type Listing struct {
	ID               int64      `json:"id"`
	SourceID         int        `json:"source_id"`
	SourceCode       string     `json:"source_code"`
	SourceName       string     `json:"source_name,omitempty"`
	ExternalID       string     `json:"external_id"`
	URL              string     `json:"url"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	PropertyType     string     `json:"property_type"`
	OfferType        string     `json:"offer_type"`
	Price            *float64   `json:"price,omitempty"`
	LocationText     string     `json:"location_text,omitempty"`
	Municipality     string     `json:"municipality,omitempty"`
	District         string     `json:"district,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	AreaBuiltUp      *float64   `json:"area_built_up,omitempty"`
	AreaLand         *float64   `json:"area_land,omitempty"`
	Disposition      string     `json:"disposition,omitempty"`
	Rooms            *int       `json:"rooms,omitempty"`
	Condition        string     `json:"condition,omitempty"`
	ConstructionType string     `json:"construction_type,omitempty"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
	IsActive         bool       `json:"is_active"`
	GeocodeSource    string     `json:"geocode_source,omitempty"`
	GeocodedAt       *time.Time `json:"geocoded_at,omitempty"`
	PhotoCount       int        `json:"photo_count,omitempty"`
}

// ListingPhoto represents the 'listing_photos' table. Photos are owned
// by their listing and fully replaced on every observation.
type ListingPhoto struct {
	ID          int64     `json:"id"`
	ListingID   int64     `json:"listing_id"`
	OriginalURL string    `json:"original_url"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScrapeJob represents the 'scrape_jobs' table.
type ScrapeJob struct {
	ID              uuid.UUID  `json:"job_id"`
	SourceCodes     []string   `json:"source_codes"`
	FullRescan      bool       `json:"full_rescan"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	ListingsFound   int        `json:"listings_found"`
	ListingsNew     int        `json:"listings_new"`
	ListingsUpdated int        `json:"listings_updated"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// ListingCadastreData represents the 'listing_cadastre_data' table:
// one row per listing with the cadastral lookup outcome.
type ListingCadastreData struct {
	ListingID       int64           `json:"listing_id"`
	AddressSearched string          `json:"address_searched"`
	RuianKod        string          `json:"ruian_kod,omitempty"`
	CadastreURL     string          `json:"cadastre_url,omitempty"`
	FetchStatus     string          `json:"fetch_status"`
	RawRuian        json.RawMessage `json:"raw_ruian,omitempty"`
	FetchedAt       time.Time       `json:"fetched_at"`
}

// Source represents the 'sources' table: the static portal catalog.
type Source struct {
	ID       int    `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	IsActive bool   `json:"is_active"`
}

// ScrapedListing is the flat record an adapter extracts from one portal
// listing. Adapters fill what they can; property and offer types may
// arrive as the portal's own Czech strings and are mapped to the
// canonical enums by the store gateway, not the adapter.
type ScrapedListing struct {
	SourceCode       string   `json:"source_code"`
	ExternalID       string   `json:"external_id"`
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	PropertyType     string   `json:"property_type,omitempty"`
	OfferType        string   `json:"offer_type,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	LocationText     string   `json:"location_text,omitempty"`
	Municipality     string   `json:"municipality,omitempty"`
	District         string   `json:"district,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	AreaBuiltUp      *float64 `json:"area_built_up,omitempty"`
	AreaLand         *float64 `json:"area_land,omitempty"`
	Disposition      string   `json:"disposition,omitempty"`
	Rooms            *int     `json:"rooms,omitempty"`
	Condition        string   `json:"condition,omitempty"`
	ConstructionType string   `json:"construction_type,omitempty"`
	PhotoURLs        []string `json:"photo_urls,omitempty"`
}
