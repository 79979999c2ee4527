package runner

import (
	"context"
	"sync"
	"time"

	"realscan/internal/eventbus"
	"realscan/internal/filter"
	"realscan/internal/models"
	"realscan/internal/scrape"
)

// ListingStore is the slice of the repository the sink writes through.
type ListingStore interface {
	SaveListing(ctx context.Context, rec *models.ScrapedListing) (int64, bool, error)
}

// sink sits between the adapters and the store: every record is
// checked against the policy filter first, admitted ones are upserted,
// and the created/updated split is counted for the job record.
type sink struct {
	store  ListingStore
	filter *filter.Filter
	bus    *eventbus.Bus
	jobID  string

	mu      sync.Mutex
	created int
	updated int
}

func newSink(store ListingStore, f *filter.Filter, bus *eventbus.Bus, jobID string) *sink {
	return &sink{store: store, filter: f, bus: bus, jobID: jobID}
}

func (s *sink) Save(ctx context.Context, rec *models.ScrapedListing) (scrape.SaveOutcome, error) {
	if ok, reason := s.filter.ShouldInclude(rec); !ok {
		return scrape.SaveOutcome{Skipped: true, Reason: reason}, nil
	}

	id, created, err := s.store.SaveListing(ctx, rec)
	if err != nil {
		return scrape.SaveOutcome{}, err
	}

	s.mu.Lock()
	if created {
		s.created++
	} else {
		s.updated++
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type:      eventbus.EventListingSaved,
			JobID:     s.jobID,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"listing_id":  id,
				"source_code": rec.SourceCode,
				"external_id": rec.ExternalID,
				"created":     created,
			},
		})
	}
	return scrape.SaveOutcome{ListingID: id, Created: created}, nil
}

func (s *sink) counts() (created, updated int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, s.updated
}
