package repository

import (
	"context"
	"fmt"
	"time"
)

// CoordTarget is the slice of a listing the geocoding sweep needs.
type CoordTarget struct {
	ListingID    int64
	LocationText string
	Municipality string
	District     string
}

// ListingsWithoutCoords returns active listings that have a location
// string but no coordinates, most recently seen first.
func (r *Repository) ListingsWithoutCoords(ctx context.Context, limit int) ([]CoordTarget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, location_text, municipality, district
		FROM listings
		WHERE is_active
		  AND latitude IS NULL
		  AND location_text <> ''
		ORDER BY last_seen_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list geocode targets: %w", err)
	}
	defer rows.Close()

	targets := []CoordTarget{}
	for rows.Next() {
		var t CoordTarget
		if err := rows.Scan(&t.ListingID, &t.LocationText, &t.Municipality, &t.District); err != nil {
			return nil, fmt.Errorf("failed to scan geocode target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// SetListingCoords writes resolved coordinates and their provenance.
func (r *Repository) SetListingCoords(ctx context.Context, listingID int64, lat, lon float64, source string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE listings
		SET latitude = $2, longitude = $3, geocode_source = $4, geocoded_at = $5
		WHERE id = $1`,
		listingID, lat, lon, source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set coordinates for listing %d: %w", listingID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %d not found", listingID)
	}
	return nil
}

// GeocodeStats describes coordinate coverage across active listings.
type GeocodeStats struct {
	Total      int            `json:"total"`
	WithCoords int            `json:"with_coords"`
	Missing    int            `json:"missing"`
	BySource   map[string]int `json:"by_source"`
}

// GetGeocodeStats reports coordinate coverage for active listings.
func (r *Repository) GetGeocodeStats(ctx context.Context) (*GeocodeStats, error) {
	stats := &GeocodeStats{BySource: map[string]int{}}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE latitude IS NOT NULL)
		FROM listings
		WHERE is_active`).Scan(&stats.Total, &stats.WithCoords)
	if err != nil {
		return nil, fmt.Errorf("failed to count geocode coverage: %w", err)
	}
	stats.Missing = stats.Total - stats.WithCoords

	rows, err := r.db.Query(ctx, `
		SELECT geocode_source, COUNT(*)
		FROM listings
		WHERE is_active AND latitude IS NOT NULL AND geocode_source <> ''
		GROUP BY geocode_source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count geocode sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan geocode source count: %w", err)
		}
		stats.BySource[source] = count
	}
	return stats, rows.Err()
}
