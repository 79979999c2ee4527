package repository

import (
	"context"
	"fmt"

	"realscan/internal/models"
)

// SourceStatus summarizes one source's footprint in the store.
type SourceStatus struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Inactive int    `json:"inactive"`
}

// StatusSummary is the aggregate view behind the status endpoint.
type StatusSummary struct {
	TotalListings  int               `json:"total_listings"`
	ActiveListings int               `json:"active_listings"`
	Sources        []SourceStatus    `json:"sources"`
	LastJob        *models.ScrapeJob `json:"last_job,omitempty"`
}

// GetStatusSummary aggregates per-source listing counts and the most
// recent scrape job.
func (r *Repository) GetStatusSummary(ctx context.Context) (*StatusSummary, error) {
	summary := &StatusSummary{Sources: []SourceStatus{}}

	rows, err := r.db.Query(ctx, `
		SELECT s.code, s.name,
		       COUNT(l.id),
		       COUNT(l.id) FILTER (WHERE l.is_active)
		FROM sources s
		LEFT JOIN listings l ON l.source_id = s.id
		WHERE s.is_active
		GROUP BY s.code, s.name
		ORDER BY s.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate source status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st SourceStatus
		if err := rows.Scan(&st.Code, &st.Name, &st.Total, &st.Active); err != nil {
			return nil, fmt.Errorf("failed to scan source status: %w", err)
		}
		st.Inactive = st.Total - st.Active
		summary.TotalListings += st.Total
		summary.ActiveListings += st.Active
		summary.Sources = append(summary.Sources, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	job, err := r.LatestJob(ctx)
	if err != nil {
		return nil, err
	}
	summary.LastJob = job
	return summary, nil
}
