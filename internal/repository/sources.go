package repository

import (
	"context"
	"fmt"
	"time"

	"realscan/internal/models"

	"github.com/jackc/pgx/v5"
)

// SourceByCode resolves a source catalog row, serving repeat lookups
// from a TTL cache so per-upsert resolution costs no roundtrip.
func (r *Repository) SourceByCode(ctx context.Context, code string) (models.Source, error) {
	r.sourceMu.RLock()
	entry, ok := r.sourceCache[code]
	r.sourceMu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.src, nil
	}

	var src models.Source
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name, base_url, is_active FROM sources WHERE code = $1`, code,
	).Scan(&src.ID, &src.Code, &src.Name, &src.BaseURL, &src.IsActive)
	if err == pgx.ErrNoRows {
		return models.Source{}, fmt.Errorf("unknown source code %q", code)
	}
	if err != nil {
		return models.Source{}, fmt.Errorf("failed to resolve source %q: %w", code, err)
	}

	r.sourceMu.Lock()
	r.sourceCache[code] = sourceCacheEntry{src: src, expiresAt: time.Now().Add(r.sourceTTL)}
	r.sourceMu.Unlock()
	return src, nil
}

// ActiveSources lists the catalog rows with is_active set, ordered by
// code. This is the default source selection for a scrape job.
func (r *Repository) ActiveSources(ctx context.Context) ([]models.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, base_url, is_active FROM sources WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.ID, &src.Code, &src.Name, &src.BaseURL, &src.IsActive); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
