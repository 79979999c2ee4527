// Package scrape holds the per-portal adapters. Every adapter walks
// its portal's index, pulls listing details under a concurrency cap
// and hands normalized records to the sink; policy and persistence
// live behind that interface, not here.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realscan/internal/fetch"
	"realscan/internal/models"
)

// Adapter scrapes one portal. Run returns how many records reached
// the sink; an error means the whole run failed, per-listing trouble
// is logged and counted instead.
type Adapter interface {
	SourceCode() string
	Run(ctx context.Context, fullRescan bool) (int, error)
}

// SaveOutcome reports what the sink did with one record.
type SaveOutcome struct {
	ListingID int64
	Created   bool
	Skipped   bool
	Reason    string
}

// Sink receives scraped records. The production sink filters and
// stores them; tests substitute their own.
type Sink interface {
	Save(ctx context.Context, rec *models.ScrapedListing) (SaveOutcome, error)
}

// BrowserRenderer renders a page with a headless browser, for portals
// whose index only materializes client-side.
type BrowserRenderer interface {
	RenderPage(ctx context.Context, url string) (string, error)
}

// Options configures an adapter.
type Options struct {
	Client            *fetch.Client
	Sink              Sink
	DetailConcurrency int  // default 5
	SkipDetails       bool // index-only run, where the adapter supports it
	UseBrowser        bool
	Browser           BrowserRenderer
	RegionID          int // portal region filter, default 14 (Jihomoravský kraj)
	DistrictID        int // portal district filter, default 74 (Znojmo)
}

func (o Options) normalized() Options {
	if o.DetailConcurrency <= 0 {
		o.DetailConcurrency = 5
	}
	if o.RegionID == 0 {
		o.RegionID = 14
	}
	if o.DistrictID == 0 {
		o.DistrictID = 74
	}
	return o
}

// base carries what every adapter needs: options, the shared fetch
// and save plumbing, and self-throttling.
type base struct {
	code string
	opts Options
}

func newBase(code string, opts Options) base {
	return base{code: code, opts: opts.normalized()}
}

func (b *base) SourceCode() string { return b.code }

// fetchPage gets an index or detail page, through the headless
// browser when the source is configured for it.
func (b *base) fetchPage(ctx context.Context, url string) ([]byte, error) {
	if b.opts.UseBrowser && b.opts.Browser != nil {
		html, err := b.opts.Browser.RenderPage(ctx, url)
		if err != nil {
			return nil, err
		}
		return []byte(html), nil
	}
	return b.opts.Client.Get(ctx, url)
}

// save pushes one record into the sink, tagging it with the adapter's
// source code. Failures and skips are counted, never fatal.
func (b *base) save(ctx context.Context, m *runMetrics, rec *models.ScrapedListing) {
	rec.SourceCode = b.code
	out, err := b.opts.Sink.Save(ctx, rec)
	if err != nil {
		m.fail(fmt.Sprintf("save %s: %v", rec.ExternalID, err))
		log.Printf("[%s] failed to save %s: %v", b.code, rec.ExternalID, err)
		return
	}
	if out.Skipped {
		m.skip()
		log.Printf("[%s] skip %s: %s", b.code, rec.ExternalID, out.Reason)
		return
	}
	m.save()
}

// eachDetail fans fn out over urls with the configured concurrency
// cap. Per-URL errors are counted and logged; the walk continues.
func (b *base) eachDetail(ctx context.Context, m *runMetrics, urls []string, fn func(context.Context, string) error) {
	sem := make(chan struct{}, b.opts.DetailConcurrency)
	var wg sync.WaitGroup
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(ctx, u); err != nil {
				m.fail(fmt.Sprintf("%s: %v", u, err))
				log.Printf("[%s] detail %s: %v", b.code, u, err)
				return
			}
			m.detail()
		}(u)
	}
	wg.Wait()
}

// pause sleeps unless the context ends first.
func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func parseHTML(data []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(data))
}
