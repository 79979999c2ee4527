package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"realscan/internal/models"
)

// Photos per listing are capped; the source stays the authority on
// ordering, so the whole set is replaced on every observation.
const maxPhotosPerListing = 20

const upsertListingSQL = `
INSERT INTO listings (
    source_id, source_code, source_name, external_id, url, title, description,
    property_type, offer_type, price, location_text, municipality, district,
    latitude, longitude, area_built_up, area_land,
    disposition, rooms, condition, construction_type, geocode_source,
    first_seen_at, last_seen_at, is_active
) VALUES (
    $1, $2, $3, $4, $5, $6, $7,
    $8, $9, $10, $11, $12, $13,
    $14, $15, $16, $17,
    $18, $19, $20, $21, $22,
    NOW(), NOW(), TRUE
)
ON CONFLICT (source_id, external_id) DO UPDATE SET
    url               = EXCLUDED.url,
    title             = EXCLUDED.title,
    description       = EXCLUDED.description,
    property_type     = EXCLUDED.property_type,
    offer_type        = EXCLUDED.offer_type,
    price             = EXCLUDED.price,
    location_text     = EXCLUDED.location_text,
    municipality      = EXCLUDED.municipality,
    district          = EXCLUDED.district,
    latitude          = COALESCE(EXCLUDED.latitude, listings.latitude),
    longitude         = COALESCE(EXCLUDED.longitude, listings.longitude),
    area_built_up     = COALESCE(EXCLUDED.area_built_up, listings.area_built_up),
    area_land         = COALESCE(EXCLUDED.area_land, listings.area_land),
    disposition       = COALESCE(NULLIF(EXCLUDED.disposition, ''), listings.disposition),
    rooms             = COALESCE(EXCLUDED.rooms, listings.rooms),
    condition         = COALESCE(NULLIF(EXCLUDED.condition, ''), listings.condition),
    construction_type = COALESCE(NULLIF(EXCLUDED.construction_type, ''), listings.construction_type),
    geocode_source    = CASE WHEN EXCLUDED.latitude IS NOT NULL
                             THEN EXCLUDED.geocode_source
                             ELSE listings.geocode_source END,
    last_seen_at      = NOW(),
    is_active         = TRUE
RETURNING id, (xmax = 0) AS inserted`

// SaveListing is the atomic upsert: one statement keyed on
// (source_id, external_id) inserts or updates the row and reports the
// id either way, so two adapters racing on the same identity still
// produce a single row. Photo replacement rides in the same
// transaction. Returns the listing id and whether the row was created.
func (r *Repository) SaveListing(ctx context.Context, rec *models.ScrapedListing) (int64, bool, error) {
	src, err := r.SourceByCode(ctx, rec.SourceCode)
	if err != nil {
		return 0, false, err
	}
	if rec.ExternalID == "" {
		return 0, false, fmt.Errorf("listing from %s has no external id", rec.SourceCode)
	}

	propertyType := models.CanonicalPropertyType(rec.PropertyType)
	offerType := models.CanonicalOfferType(rec.OfferType)
	InferListingFields(rec)

	geocodeSource := ""
	if rec.Latitude != nil && rec.Longitude != nil {
		// Coordinates straight from the portal payload.
		geocodeSource = "scraper"
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	var inserted bool
	err = tx.QueryRow(ctx, upsertListingSQL,
		src.ID, src.Code, src.Name, rec.ExternalID, rec.URL, rec.Title, rec.Description,
		propertyType, offerType, rec.Price, rec.LocationText, rec.Municipality, rec.District,
		rec.Latitude, rec.Longitude, rec.AreaBuiltUp, rec.AreaLand,
		rec.Disposition, rec.Rooms, rec.Condition, rec.ConstructionType, geocodeSource,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("failed to upsert listing %s/%s: %w", rec.SourceCode, rec.ExternalID, err)
	}

	if err := replacePhotos(ctx, tx, id, rec.PhotoURLs); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit listing %s/%s: %w", rec.SourceCode, rec.ExternalID, err)
	}
	return id, inserted, nil
}

func replacePhotos(ctx context.Context, tx pgx.Tx, listingID int64, urls []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM listing_photos WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("failed to clear photos for listing %d: %w", listingID, err)
	}
	if len(urls) > maxPhotosPerListing {
		urls = urls[:maxPhotosPerListing]
	}
	for i, u := range urls {
		if _, err := tx.Exec(ctx,
			`INSERT INTO listing_photos (listing_id, original_url, order_index) VALUES ($1, $2, $3)`,
			listingID, u, i,
		); err != nil {
			return fmt.Errorf("failed to insert photo %d for listing %d: %w", i, listingID, err)
		}
	}
	return nil
}

// DeactivateUnseen flips is_active off for every listing of a source
// whose last_seen_at predates the scan start. Invoked only after a
// successful full rescan of that source, so anything the run did not
// touch is genuinely gone from the portal.
func (r *Repository) DeactivateUnseen(ctx context.Context, sourceCode string, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE listings
		SET is_active = FALSE
		WHERE source_id = (SELECT id FROM sources WHERE code = $1)
		  AND last_seen_at < $2
		  AND is_active`,
		sourceCode, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate unseen listings for %s: %w", sourceCode, err)
	}
	return tag.RowsAffected(), nil
}
