// Package runner executes scrape jobs: it fans the selected source
// adapters out in parallel, funnels their records through the policy
// filter into the store, and keeps the job record current along the
// way.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"realscan/internal/config"
	"realscan/internal/eventbus"
	"realscan/internal/fetch"
	"realscan/internal/filter"
	"realscan/internal/models"
	"realscan/internal/repository"
	"realscan/internal/scrape"
)

// Store is the slice of the repository the runner drives.
type Store interface {
	ListingStore
	UpdateJob(ctx context.Context, id uuid.UUID, upd repository.JobUpdate) error
	ActiveSources(ctx context.Context) ([]models.Source, error)
	DeactivateUnseen(ctx context.Context, sourceCode string, cutoff time.Time) (int64, error)
}

// Request selects what a job scrapes. Empty SourceCodes means every
// active source in the catalog.
type Request struct {
	SourceCodes []string `json:"source_codes,omitempty"`
	FullRescan  bool     `json:"full_rescan"`
}

// Runner owns job execution. One Runner serves the API, the scheduler
// and the CLI tools; jobs run on the caller's goroutine.
type Runner struct {
	store   Store
	cfg     *config.Config
	filter  *filter.Filter
	bus     *eventbus.Bus
	client  *fetch.Client
	browser scrape.BrowserRenderer

	// Swapped out by tests.
	newAdapter func(code string, opts scrape.Options) (scrape.Adapter, error)
}

// New builds a Runner. The browser renderer may be nil when no source
// is configured to use it.
func New(store Store, cfg *config.Config, f *filter.Filter, bus *eventbus.Bus, browser scrape.BrowserRenderer) *Runner {
	return &Runner{
		store:      store,
		cfg:        cfg,
		filter:     f,
		bus:        bus,
		client:     fetch.NewClient(fetch.Config{}),
		browser:    browser,
		newAdapter: scrape.New,
	}
}

type adapterResult struct {
	code  string
	count int
	err   error
}

// Execute runs one scrape job to completion and finalizes its record.
// Adapter failures are logged and the job still succeeds with the
// surviving totals; only runner-level failures mark the job Failed.
func (r *Runner) Execute(ctx context.Context, jobID uuid.UUID, req Request) error {
	startedAt := time.Now().UTC()
	if err := r.store.UpdateJob(ctx, jobID, repository.JobUpdate{
		Status:    models.JobRunning,
		StartedAt: &startedAt,
	}); err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", jobID, err)
	}

	total, err := r.run(ctx, jobID, req)
	finishedAt := time.Now().UTC()
	hundred := 100
	if err != nil {
		msg := err.Error()
		if uerr := r.store.UpdateJob(ctx, jobID, repository.JobUpdate{
			Status:       models.JobFailed,
			ErrorMessage: &msg,
			FinishedAt:   &finishedAt,
		}); uerr != nil {
			log.Printf("[runner] failed to mark job %s failed: %v", jobID, uerr)
		}
		r.publish(eventbus.EventJobFinished, jobID, map[string]interface{}{
			"status": models.JobFailed, "error": msg,
		})
		return err
	}

	if uerr := r.store.UpdateJob(ctx, jobID, repository.JobUpdate{
		Status:     models.JobSucceeded,
		Progress:   &hundred,
		FinishedAt: &finishedAt,
	}); uerr != nil {
		return fmt.Errorf("failed to finalize job %s: %w", jobID, uerr)
	}
	r.publish(eventbus.EventJobFinished, jobID, map[string]interface{}{
		"status": models.JobSucceeded, "listings_found": total,
	})
	log.Printf("[runner] job %s done: %d listings in %s", jobID, total, time.Since(startedAt).Round(time.Second))
	return nil
}

func (r *Runner) run(ctx context.Context, jobID uuid.UUID, req Request) (int, error) {
	codes, err := r.resolveCodes(ctx, req.SourceCodes)
	if err != nil {
		return 0, err
	}
	if len(codes) == 0 {
		return 0, fmt.Errorf("no sources selected")
	}

	snk := newSink(r.store, r.filter, r.bus, jobID.String())

	adapters := make([]scrape.Adapter, 0, len(codes))
	for _, code := range codes {
		a, err := r.newAdapter(code, r.adapterOptions(code, snk))
		if err != nil {
			return 0, err
		}
		adapters = append(adapters, a)
	}

	// Everything saved by this run carries a last_seen_at at or after
	// this instant; the deactivation sweep keys off it.
	scanStart := time.Now().UTC()

	results := make(chan adapterResult, len(adapters))
	for _, a := range adapters {
		go func(a scrape.Adapter) {
			count, err := a.Run(ctx, req.FullRescan)
			results <- adapterResult{code: a.SourceCode(), count: count, err: err}
		}(a)
	}

	total := 0
	for done := 1; done <= len(adapters); done++ {
		res := <-results
		if res.err != nil {
			log.Printf("[runner] adapter %s failed: %v", res.code, res.err)
		} else {
			total += res.count
			log.Printf("[runner] adapter %s finished: %d listings", res.code, res.count)
			if req.FullRescan {
				// Strictly after this adapter's last save.
				n, err := r.store.DeactivateUnseen(ctx, res.code, scanStart)
				if err != nil {
					log.Printf("[runner] deactivation sweep for %s failed: %v", res.code, err)
				} else if n > 0 {
					log.Printf("[runner] deactivated %d unseen listings for %s", n, res.code)
				}
			}
		}
		r.updateProgress(ctx, jobID, snk, done, len(adapters), total)
	}
	return total, nil
}

func (r *Runner) updateProgress(ctx context.Context, jobID uuid.UUID, snk *sink, done, totalAdapters, found int) {
	progress := done * 100 / totalAdapters
	created, updated := snk.counts()
	if err := r.store.UpdateJob(ctx, jobID, repository.JobUpdate{
		Progress:        &progress,
		ListingsFound:   &found,
		ListingsNew:     &created,
		ListingsUpdated: &updated,
	}); err != nil {
		log.Printf("[runner] failed to update job %s progress: %v", jobID, err)
	}
	r.publish(eventbus.EventJobProgress, jobID, map[string]interface{}{
		"progress": progress, "completed": done, "total": totalAdapters,
	})
}

// resolveCodes validates an explicit selection or falls back to every
// active catalog source that has a registered adapter.
func (r *Runner) resolveCodes(ctx context.Context, requested []string) ([]string, error) {
	registered := map[string]bool{}
	for _, code := range scrape.Codes() {
		registered[code] = true
	}

	if len(requested) > 0 {
		for _, code := range requested {
			if !registered[code] {
				return nil, fmt.Errorf("unknown source code %q", code)
			}
		}
		return requested, nil
	}

	sources, err := r.store.ActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active sources: %w", err)
	}
	var codes []string
	for _, src := range sources {
		if !registered[src.Code] {
			log.Printf("[runner] catalog source %s has no adapter, skipping", src.Code)
			continue
		}
		if r.cfg != nil && !r.cfg.SourceEnabled(src.Code) {
			continue
		}
		codes = append(codes, src.Code)
	}
	return codes, nil
}

func (r *Runner) adapterOptions(code string, snk scrape.Sink) scrape.Options {
	opts := scrape.Options{Client: r.client, Sink: snk}
	if r.cfg == nil {
		return opts
	}
	sc := r.cfg.ScraperFor(code)
	opts.DetailConcurrency = sc.DetailFetchConcurrency
	if sc.FetchDetails != nil && !*sc.FetchDetails {
		opts.SkipDetails = true
	}
	if sc.UseBrowser && r.browser != nil {
		opts.UseBrowser = true
		opts.Browser = r.browser
	}
	opts.RegionID = sc.RegionID
	opts.DistrictID = sc.DistrictID
	return opts
}

func (r *Runner) publish(eventType string, jobID uuid.UUID, data map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{
		Type:      eventType,
		JobID:     jobID.String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
