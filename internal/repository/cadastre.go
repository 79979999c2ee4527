package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"realscan/internal/models"
)

// UpsertCadastre stores one cadastre lookup outcome per listing. Rows
// already marked manual are left alone; a human set those.
func (r *Repository) UpsertCadastre(ctx context.Context, data *models.ListingCadastreData) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO listing_cadastre_data
			(listing_id, address_searched, ruian_kod, cadastre_url, fetch_status, raw_ruian, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (listing_id) DO UPDATE SET
			address_searched = EXCLUDED.address_searched,
			ruian_kod        = EXCLUDED.ruian_kod,
			cadastre_url     = EXCLUDED.cadastre_url,
			fetch_status     = EXCLUDED.fetch_status,
			raw_ruian        = EXCLUDED.raw_ruian,
			fetched_at       = NOW()
		WHERE listing_cadastre_data.fetch_status <> 'manual'`,
		data.ListingID, data.AddressSearched, data.RuianKod, data.CadastreURL,
		data.FetchStatus, data.RawRuian)
	if err != nil {
		return fmt.Errorf("failed to upsert cadastre data for listing %d: %w", data.ListingID, err)
	}
	return nil
}

// GetCadastre returns the cadastre record for a listing, or nil when
// none has been stored yet.
func (r *Repository) GetCadastre(ctx context.Context, listingID int64) (*models.ListingCadastreData, error) {
	var data models.ListingCadastreData
	err := r.db.QueryRow(ctx, `
		SELECT listing_id, address_searched, ruian_kod, cadastre_url, fetch_status, raw_ruian, fetched_at
		FROM listing_cadastre_data
		WHERE listing_id = $1`, listingID).Scan(
		&data.ListingID, &data.AddressSearched, &data.RuianKod, &data.CadastreURL,
		&data.FetchStatus, &data.RawRuian, &data.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cadastre data for listing %d: %w", listingID, err)
	}
	return &data, nil
}

// CadastreTarget is the slice of a listing the cadastre sweep needs.
type CadastreTarget struct {
	ListingID    int64
	LocationText string
	Municipality string
	District     string
}

// ListingsWithoutCadastre returns active listings the cadastre sweep
// should visit: no record yet, or a pending/error one, plus not_found
// rows when retryNotFound is set. Manual rows never qualify.
func (r *Repository) ListingsWithoutCadastre(ctx context.Context, limit int, retryNotFound bool) ([]CadastreTarget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.location_text, l.municipality, l.district
		FROM listings l
		LEFT JOIN listing_cadastre_data c ON c.listing_id = l.id
		WHERE l.is_active
		  AND l.location_text <> ''
		  AND (c.listing_id IS NULL
		       OR c.fetch_status IN ('pending', 'error')
		       OR ($2 AND c.fetch_status = 'not_found'))
		ORDER BY l.last_seen_at DESC
		LIMIT $1`, limit, retryNotFound)
	if err != nil {
		return nil, fmt.Errorf("failed to list cadastre targets: %w", err)
	}
	defer rows.Close()

	targets := []CadastreTarget{}
	for rows.Next() {
		var t CadastreTarget
		if err := rows.Scan(&t.ListingID, &t.LocationText, &t.Municipality, &t.District); err != nil {
			return nil, fmt.Errorf("failed to scan cadastre target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// CadastreStats counts cadastre records by fetch status and reports
// how many active listings still have none.
func (r *Repository) CadastreStats(ctx context.Context) (map[string]int, error) {
	stats := map[string]int{}

	rows, err := r.db.Query(ctx, `
		SELECT fetch_status, COUNT(*)
		FROM listing_cadastre_data
		GROUP BY fetch_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cadastre statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan cadastre status count: %w", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM listings l
		LEFT JOIN listing_cadastre_data c ON c.listing_id = l.id
		WHERE l.is_active AND c.listing_id IS NULL`).Scan(&missing)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings without cadastre data: %w", err)
	}
	stats["missing"] = missing
	return stats, nil
}
